// Copyright (C) 2008-2019 by Nicolas Piganeau and the TS2 TEAM
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
	"time"
)

// suggestionsObject handles the advisory engine's operator-facing verbs:
// list, accept, reject, recompute.
type suggestionsObject struct{}

func (s *suggestionsObject) dispatch(h *Hub, req Request, conn *connection) {
	ch := conn.pushChan
	switch req.Action {
	case "list":
		items := rt.Suggestions.RecomputeIfDue(time.Now())
		ch <- NewResponse(req.ID, RawJSON(items))

	case "accept":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable request: %s (%s)", err, req.Params))
			return
		}
		if err := rt.AcceptSuggestion(p.ID); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		recordAudit("suggestion", "SUGGESTION_ACCEPTED", "info", map[string]interface{}{"id": p.ID}, nil)
		ch <- NewOkResponse(req.ID, "suggestion accepted")

	case "reject":
		var p struct {
			ID      string `json:"id"`
			Minutes int    `json:"minutes"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable request: %s (%s)", err, req.Params))
			return
		}
		if p.Minutes <= 0 {
			p.Minutes = 10
		}
		rt.Suggestions.RejectUntil(p.ID, time.Now().Add(time.Duration(p.Minutes)*time.Minute))
		ch <- NewOkResponse(req.ID, "suggestion rejected")

	case "recompute":
		items := rt.Suggestions.RecomputeIfDue(time.Now())
		ch <- NewResponse(req.ID, RawJSON(items))

	default:
		ch <- NewErrorResponse(req.ID, fmt.Errorf("unknown action %s/%s", req.Object, req.Action))
		logger.Debug("request for unknown action received", "submodule", "hub", "object", req.Object, "action", req.Action)
	}
}

var _ hubObject = new(suggestionsObject)
