package server

import (
	"encoding/json"
	"fmt"
)

// trainObject handles per-train operator commands addressed to "train":
// start, stop and finish (suggestions are accepted through the
// "suggestions" object). No teacher file
// for this object was retrieved, but its shape — one object per domain
// noun, dispatch by action — follows layoutObject/suggestionsObject
// exactly.
type trainObject struct{}

func (t *trainObject) dispatch(h *Hub, req Request, conn *connection) {
	ch := conn.pushChan
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		ch <- NewErrorResponse(req.ID, fmt.Errorf("unparsable request: %s (%s)", err, req.Params))
		return
	}
	logger.Debug("request for train object received", "submodule", "hub", "action", req.Action, "train", p.ID)
	switch req.Action {
	case "start":
		if err := rt.Start(p.ID); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		ch <- NewOkResponse(req.ID, "train started")
	case "stop":
		if err := rt.Stop(p.ID); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		ch <- NewOkResponse(req.ID, "train stopped")
	case "finish":
		if err := rt.Finish(p.ID); err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		ch <- NewOkResponse(req.ID, "train finishing")
	default:
		ch <- NewErrorResponse(req.ID, fmt.Errorf("unknown action %s/%s", req.Object, req.Action))
		logger.Debug("request for unknown action received", "submodule", "hub", "object", req.Object, "action", req.Action)
	}
}

var _ hubObject = new(trainObject)
