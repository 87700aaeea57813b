package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracktitans/layoutrt/diagnostics"
	"github.com/tracktitans/layoutrt/document"
)

var importCmd = &cobra.Command{
	Use:   "import <source-document>",
	Short: "Validate a layout document and install it as the configured one",
	Long: "Loads source-document, rejects it if it has unresolved block/train " +
		"references, and writes it to the configured persistence path. The " +
		"running service (if any) must be restarted to pick it up, the same " +
		"rule the operator's live \"import\" command follows.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	source := args[0]
	doc, err := document.Load(source)
	if err != nil {
		return fmt.Errorf("loading %s: %w", source, err)
	}

	g, trains, _, err := document.Build(doc)
	if err != nil {
		return fmt.Errorf("building layout: %w", err)
	}
	for _, f := range diagnostics.Diagnose(g, trains, diagnostics.Options{}) {
		if f.Kind == diagnostics.FindingDanglingTrainRef {
			return fmt.Errorf("unresolved reference: %s", f.Message)
		}
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := document.Save(cfg.Persistence.DocumentPath, doc); err != nil {
		return fmt.Errorf("saving %s: %w", cfg.Persistence.DocumentPath, err)
	}
	fmt.Printf("layout saved to %s; restart the service to load it\n", cfg.Persistence.DocumentPath)
	return nil
}
