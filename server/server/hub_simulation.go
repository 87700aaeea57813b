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

	"github.com/tracktitans/layoutrt/diagnostics"
	"github.com/tracktitans/layoutrt/document"
)

// layoutObject handles whole-layout operations addressed to "layout":
// dump, import, diagnose, repair, and locomotive discovery. One hub object
// dispatching several whole-layout verbs, the same shape as a simulation
// control object dispatching "start"/"pause"/"restart"/"dump".
type layoutObject struct{}

func (s *layoutObject) dispatch(h *Hub, req Request, conn *connection) {
	ch := conn.pushChan
	logger.Debug("request for layout object received", "submodule", "hub", "action", req.Action)
	switch req.Action {
	case "dump":
		doc := document.Dump(rt.Graph, rt.Trains(), rt.Routes(), rt.Geometry, rt.Scripts)
		data, err := json.Marshal(doc)
		if err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("internal error: %s", err))
			return
		}
		ch <- NewResponse(req.ID, data)

	case "import":
		var doc document.Document
		if err := json.Unmarshal(req.Params, &doc); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable layout document: %s", err))
			return
		}
		uploadedGraph, uploadedTrains, _, err := document.Build(&doc)
		if err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("uploaded layout is invalid: %s", err))
			return
		}
		findings := diagnostics.Diagnose(uploadedGraph, uploadedTrains, diagnostics.Options{})
		for _, f := range findings {
			if f.Kind == diagnostics.FindingDanglingTrainRef {
				ch <- NewErrorResponse(req.ID, fmt.Errorf("uploaded layout has unresolved references: %s", f.Message))
				return
			}
		}
		if err := document.Save(documentPath(), &doc); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("saving layout: %s", err))
			return
		}
		ch <- NewOkResponse(req.ID, "layout saved; restart the service to load it")

	case "diagnose":
		findings := diagnostics.Diagnose(rt.Graph, rt.Trains(), diagnostics.Options{RequireLengths: req.Params != nil})
		ch <- NewResponse(req.ID, RawJSON(findings))

	case "repair":
		findings := diagnostics.Repair(rt.Graph, rt.Trains())
		ch <- NewResponse(req.ID, RawJSON(findings))

	case "discover":
		var p struct {
			Mode string `json:"mode"`
		}
		if req.Params != nil {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable request: %s", err))
				return
			}
		}
		if p.Mode == "" {
			p.Mode = "merge"
		}
		if err := rt.DiscoverLocomotives(p.Mode); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		ch <- NewOkResponse(req.ID, "locomotive discovery requested")

	default:
		ch <- NewErrorResponse(req.ID, fmt.Errorf("unknown action %s/%s", req.Object, req.Action))
		logger.Debug("request for unknown action received", "submodule", "hub", "object", req.Object, "action", req.Action)
	}
}

var _ hubObject = new(layoutObject)

// documentPath is overridden by cmd/layoutrt at startup to point "import"
// at the configured layout document.
var documentPathOverride string

// SetDocumentPath points the "import" action at the layout document
// cmd/layoutrt was started with.
func SetDocumentPath(path string) {
	documentPathOverride = path
}

func documentPath() string {
	if documentPathOverride != "" {
		return documentPathOverride
	}
	return "layout.json"
}

func registerHubObjects() {
	hub.objects["layout"] = new(layoutObject)
	hub.objects["train"] = new(trainObject)
	hub.objects["suggestions"] = new(suggestionsObject)
}
