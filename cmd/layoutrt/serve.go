package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tracktitans/layoutrt/internal/logging"
	"github.com/tracktitans/layoutrt/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the configured layout and serve it to operators",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger := setupLogging(cfg.Log.Level)

	doc, err := loadDocument(cfg.Persistence.DocumentPath)
	if err != nil {
		return fmt.Errorf("loading layout document: %w", err)
	}

	bus, err := openBus(cfg.Bus)
	if err != nil {
		return err
	}

	ctrl, err := buildController(doc, bus)
	if err != nil {
		return err
	}

	server.SetDocumentPath(cfg.Persistence.DocumentPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := ctrl.Run(ctx); err != nil {
			logger.Error("layout runtime stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		os.Exit(0)
	}()

	totalSteps := 0
	for _, rte := range ctrl.Routes() {
		totalSteps += rte.Len()
	}
	logger.Info("layout runtime ready",
		"trains", len(ctrl.Trains()),
		"routes", logging.FormatSteps(totalSteps),
		"address", cfg.Server.Address)
	if err := server.Run(ctrl, cfg.Server.Address); err != nil {
		return fmt.Errorf("operator server: %w", err)
	}
	return nil
}
