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
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Request is one operator command arriving over the WebSocket connection,
// addressed to a named object/action pair the same way hub_simulation.go
// and hub_suggestions.go dispatch.
type Request struct {
	ID     int             `json:"id"`
	Object string          `json:"object"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request (or pushes an unsolicited notification when
// ID is zero).
type Response struct {
	ID   int             `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
	Msg  string          `json:"msg,omitempty"`
	Err  string          `json:"error,omitempty"`
}

// RawJSON marshals v and returns the encoded bytes, or nil on failure.
func RawJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// NewResponse wraps already-encoded data as a successful reply to req.
func NewResponse(id int, data json.RawMessage) Response {
	return Response{ID: id, Data: data}
}

// NewOkResponse replies to req with a plain status message and no payload.
func NewOkResponse(id int, msg string) Response {
	return Response{ID: id, Msg: msg}
}

// NewErrorResponse replies to req with err's message.
func NewErrorResponse(id int, err error) Response {
	return Response{ID: id, Err: err.Error()}
}

// hubObject dispatches every action addressed to one named object.
type hubObject interface {
	dispatch(h *Hub, req Request, conn *connection)
}

// connection wraps one WebSocket client: reads Requests off ws, and a
// dedicated goroutine drains pushChan to ws so concurrent dispatch
// handlers never write to the same connection at once.
type connection struct {
	ws       *websocket.Conn
	pushChan chan Response
	hub      *Hub
}

func (c *connection) writePump() {
	for resp := range c.pushChan {
		if err := c.ws.WriteJSON(resp); err != nil {
			logger.Debug("write to client failed", "submodule", "hub", "error", err)
			return
		}
	}
}

func (c *connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		close(c.pushChan)
		c.ws.Close()
	}()
	for {
		var req Request
		if err := c.ws.ReadJSON(&req); err != nil {
			logger.Debug("read from client failed", "submodule", "hub", "error", err)
			return
		}
		obj, ok := c.hub.objects[req.Object]
		if !ok {
			c.pushChan <- NewErrorResponse(req.ID, errUnknownObject(req.Object))
			continue
		}
		obj.dispatch(c.hub, req, c)
	}
}

// Hub fans every connected operator's Requests out to the hubObject named
// in req.Object.
type Hub struct {
	objects map[string]hubObject

	mu          sync.Mutex
	connections map[*connection]bool

	register   chan *connection
	unregister chan *connection
}

// NewHub constructs an empty Hub; registerHubObjects populates objects
// once Run has a runtime to dispatch against.
func NewHub() *Hub {
	return &Hub{
		objects:     make(map[string]hubObject),
		connections: make(map[*connection]bool),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
	}
}

// run serves connection register/unregister events until stopped; hubUp
// is closed once the hub is ready to accept connections.
func (h *Hub) run(hubUp chan bool) {
	close(hubUp)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.connections[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			delete(h.connections, c)
			h.mu.Unlock()
		}
	}
}

// broadcast pushes resp to every currently connected operator, dropping it
// for any client whose push channel is full rather than blocking.
func (h *Hub) broadcast(resp Response) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.connections {
		select {
		case c.pushChan <- resp:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func serveWs(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "submodule", "hub", "error", err)
		return
	}
	conn := &connection{ws: ws, pushChan: make(chan Response, 64), hub: hub}
	hub.register <- conn
	go conn.writePump()
	conn.readPump()
}

func errUnknownObject(object string) error {
	return &unknownObjectError{object: object}
}

type unknownObjectError struct{ object string }

func (e *unknownObjectError) Error() string {
	return "server: unknown object " + e.object
}

// MaxHubStartupTime bounds how long Run waits for the hub's run loop to
// come up before giving up.
const MaxHubStartupTime = 3 * time.Second
