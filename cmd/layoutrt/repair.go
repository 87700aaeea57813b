package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracktitans/layoutrt/diagnostics"
	"github.com/tracktitans/layoutrt/document"
)

var repairCmd = &cobra.Command{
	Use:   "repair [document]",
	Short: "Repair a layout document in place and report what changed",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRepair,
}

func runRepair(cmd *cobra.Command, args []string) error {
	path := documentArg(args)
	doc, err := document.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	g, trains, routes, err := document.Build(doc)
	if err != nil {
		return fmt.Errorf("building layout: %w", err)
	}

	findings := diagnostics.Repair(g, trains)

	repaired := document.Dump(g, trains, routes, doc.Geometry, doc.Scripts)
	if err := document.Save(path, repaired); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(findings)
}
