// Command layoutrt is the operator-facing entry point of the model-railway
// layout runtime: it loads the ambient config and the layout document,
// wires the topology/reservation/bus/train machinery described across the
// root packages, and either serves it over HTTP/WebSocket or runs a single
// offline document operation (diagnose/repair/import).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	log "gopkg.in/inconshreveable/log15.v2"
)

var (
	cfgPath  string
	logLevel string

	root log.Logger
)

var rootCmd = &cobra.Command{
	Use:           "layoutrt",
	Short:         "Model-railway layout runtime",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "layoutrt.toml", "path to the TOML runtime config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})); err != nil {
		fmt.Fprintf(os.Stderr, "layoutrt: adjusting GOMAXPROCS: %s\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
