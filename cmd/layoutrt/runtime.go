package main

import (
	"fmt"
	"net"
	"os"

	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/tracktitans/layoutrt/busif"
	"github.com/tracktitans/layoutrt/config"
	"github.com/tracktitans/layoutrt/diagnostics"
	"github.com/tracktitans/layoutrt/document"
	"github.com/tracktitans/layoutrt/internal/logging"
	"github.com/tracktitans/layoutrt/layout"
	"github.com/tracktitans/layoutrt/reservation"
	"github.com/tracktitans/layoutrt/server"
	"github.com/tracktitans/layoutrt/train"
)

// loadConfig reads path, falling back to config.Default() when no file
// exists there yet — a fresh checkout should still start.
func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// setupLogging builds the shared log15 root logger and wires it into
// every package that declares an InitializeLogger, following this
// module's ambient "parent.New(\"module\", name)" convention.
func setupLogging(level string) log.Logger {
	root = logging.NewRoot(level)

	busif.InitializeLogger(root)
	reservation.InitializeLogger(root)
	train.InitializeLogger(root)
	layout.InitializeLogger(root)
	diagnostics.InitializeLogger(root)
	server.InitializeLogger(root)
	return root
}

// openBus constructs the control-bus collaborator named by cfg.Bus.Kind,
// or nil when the runtime should operate without one (diagnose/repair/
// import all run with no bus at all).
func openBus(cfg config.BusConfig) (busif.CommandInterface, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "frame":
		conn, err := net.Dial("tcp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("dialing bus at %s: %w", cfg.Address, err)
		}
		return busif.NewFrameAdapter(conn), nil
	default:
		return nil, fmt.Errorf("unknown bus kind %q", cfg.Kind)
	}
}

// loadDocument reads and decodes the document at path; building it into
// its graph/train/route form and applying the startup policy happen in
// buildController.
func loadDocument(path string) (*document.Document, error) {
	return document.Load(path)
}

// buildController assembles a ready-to-run layout.Controller from a
// decoded Document: topology, reservation engine, one train.Controller
// per train, and the startup policy that clears stale position/
// reservation state before anything runs.
func buildController(doc *document.Document, bus busif.CommandInterface) (*layout.Controller, error) {
	g, trains, routes, err := document.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("building layout: %w", err)
	}
	document.ApplyStartupPolicy(g, trains)

	res := reservation.New(g, bus)
	ctrl := layout.NewController(g, res, bus)
	ctrl.Geometry = doc.Geometry
	ctrl.Scripts = doc.Scripts

	for _, tr := range trains {
		rte := routes[tr.RouteID]
		tc := train.NewController(tr, rte, g, res, bus)
		ctrl.AddTrain(tc)
	}

	findings := diagnostics.Diagnose(g, trains, diagnostics.Options{})
	for _, f := range findings {
		if f.Kind == diagnostics.FindingDanglingTrainRef {
			root.Warn("startup diagnostic finding", "kind", f.Kind, "element", f.ElementID, "message", f.Message)
		}
	}

	return ctrl, nil
}
