// Copyright (C) 2008-2018 by Nicolas Piganeau and the TS2 TEAM
// (See AUTHORS file)
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program; if not, write to the
// Free Software Foundation, Inc.,
// 59 Temple Place - Suite 330, Boston, MA  02111-1307, USA.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/tracktitans/layoutrt/layout"
)

var (
	rt     *layout.Controller
	hub    *Hub
	logger log.Logger
)

// InitializeLogger creates the logger for the server module
func InitializeLogger(parentLogger log.Logger) {
	logger = parentLogger.New("module", "server")
}

// Run starts the HTTP server and WebSocket hub exposing ctrl to operators
// on addr. The hub's own goroutine must come up before HTTP starts
// accepting connections.
func Run(ctrl *layout.Controller, addr string) error {
	logger.Info("starting operator server")
	rt = ctrl
	hub = NewHub()
	registerHubObjects()

	startMetricsTicker()

	hubUp := make(chan bool)
	timer := time.After(MaxHubStartupTime)
	go hub.run(hubUp)
	select {
	case <-hubUp:
		return httpdStart(addr)
	case <-timer:
		return fmt.Errorf("server: hub did not start within %s", MaxHubStartupTime)
	}
}

// httpdStart registers every route and blocks serving HTTP.
//
//	/       - JSON status summary (no bundled UI: see Non-goals)
//	/ws     - WebSocket endpoint for operator clients
//	/api/*  - REST surface, see http_api.go
func httpdStart(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", serveHome)
	mux.HandleFunc("/ws", serveWs)
	installHTTPAPI(mux)

	logger.Info("listening", "submodule", "http", "address", addr)
	return http.ListenAndServe(addr, mux)
}

func serveHome(w http.ResponseWriter, r *http.Request) {
	logger.Debug("new HTTP connection", "submodule", "http", "remote", r.RemoteAddr)
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"service": "layoutrt",
		"pid":     os.Getpid(),
		"trains":  len(rt.Trains()),
		"ws":      "ws://" + r.Host + "/ws",
	})
}
