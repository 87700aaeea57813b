package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tracktitans/layoutrt/train"
)

// GET /api/trains — every known train with its current block/position/state.
func serveTrains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := make([]map[string]interface{}, 0)
	for _, t := range rt.Trains() {
		out = append(out, trainSummary(t))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"trains": out})
}

// POST /api/trains/{id}/route — operator command against one train: start,
// stop, finish. Routes are author-assigned ahead of time; this endpoint
// only starts, stops, or finishes the one a train already carries.
func serveTrainCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/trains/"), "/")
	if len(parts) != 2 || parts[1] != "route" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	var err error
	switch strings.ToUpper(body.Action) {
	case "START":
		err = rt.Start(id)
	case "STOP":
		err = rt.Stop(id)
	case "FINISH":
		err = rt.Finish(id)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	recordAudit("train", strings.ToUpper(body.Action), "info", map[string]interface{}{"id": id}, nil)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

// GET /api/systems/overview — block/turnout/route/train census, plus the
// latest utilization snapshot.
func serveSystemOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if rt == nil {
		http.Error(w, "runtime not initialized", http.StatusServiceUnavailable)
		return
	}

	blocks := make([]map[string]interface{}, 0)
	for id, b := range rt.Graph.Blocks() {
		blocks = append(blocks, map[string]interface{}{
			"id":       id,
			"name":     b.Name(),
			"category": b.Category(),
			"enabled":  b.Enabled(),
			"length":   b.Length(),
			"reservedBy": b.ReservedBy(),
		})
	}

	turnouts := make([]map[string]interface{}, 0)
	for id, t := range rt.Graph.Turnouts() {
		turnouts = append(turnouts, map[string]interface{}{
			"id":        id,
			"category":  t.Category(),
			"addresses": t.Addresses(),
			"state":     t.State(),
			"reserved":  t.Reserved(),
		})
	}

	routes := make([]map[string]interface{}, 0)
	for id, rte := range rt.Routes() {
		routes = append(routes, map[string]interface{}{
			"id":      id,
			"mode":    rte.Mode,
			"enabled": rte.Enabled,
			"steps":   rte.Len(),
		})
	}

	trains := make([]map[string]interface{}, 0)
	running := 0
	for _, t := range rt.Trains() {
		trains = append(trains, trainSummary(t))
		if t.State == train.StateRunning {
			running++
		}
	}

	snap := latestSnapshot()

	resp := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"totals": map[string]interface{}{
			"blocks":   len(blocks),
			"turnouts": len(turnouts),
			"routes":   len(routes),
			"trains":   map[string]int{"total": len(trains), "running": running},
		},
		"occupancy": map[string]interface{}{
			"blocksOccupied": snap.blocksOccupied,
			"blocksTotal":    snap.blocksTotal,
			"utilization":    snap.utilization,
		},
		"timerBacklog": rt.TimerBacklog(),
		"blocks":       blocks,
		"turnouts":     turnouts,
		"routes":       routes,
		"trains":       trains,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}

func trainSummary(t *train.Train) map[string]interface{} {
	return map[string]interface{}{
		"id":          t.ID,
		"name":        t.Name,
		"locoAddress": t.LocoAddress,
		"blockId":     t.BlockID,
		"direction":   t.Direction,
		"position":    t.Position,
		"routeId":     t.RouteID,
		"scheduling":  t.Scheduling,
		"state":       t.State,
		"speed":       t.Speed.Current,
		"speedMax":    t.Speed.Max,
	}
}

func installHTTPAPI(mux *http.ServeMux) {
	mux.HandleFunc("/api/trains", serveTrains)
	mux.HandleFunc("/api/trains/", serveTrainCommand)
	mux.HandleFunc("/api/systems/overview", serveSystemOverview)
	mux.HandleFunc("/api/analytics/kpis", serveKPI)
	mux.HandleFunc("/api/analytics/historical", serveKPIHistorical)
	mux.HandleFunc("/api/audit/logs", serveAuditLogs)
	mux.HandleFunc("/api/audit/stream", serveAuditStream)
}
