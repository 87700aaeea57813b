package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracktitans/layoutrt/diagnostics"
	"github.com/tracktitans/layoutrt/document"
)

var diagnoseRequireLengths bool

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [document]",
	Short: "Check a layout document for dangling references and other defects",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiagnose,
}

func init() {
	diagnoseCmd.Flags().BoolVar(&diagnoseRequireLengths, "require-lengths", false, "flag blocks/trains missing the lengths needed for trailing-window reservation")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	path := documentArg(args)
	doc, err := document.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	g, trains, _, err := document.Build(doc)
	if err != nil {
		return fmt.Errorf("building layout: %w", err)
	}

	findings := diagnostics.Diagnose(g, trains, diagnostics.Options{RequireLengths: diagnoseRequireLengths})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(findings); err != nil {
		return err
	}
	if len(findings) > 0 {
		os.Exit(1)
	}
	return nil
}

// documentArg returns the positional document path argument, defaulting
// to the config's configured path when the caller didn't name one.
func documentArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return "layout.json"
	}
	return cfg.Persistence.DocumentPath
}
