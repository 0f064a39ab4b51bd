// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers binds the hub to its transports: the WebSocket event
// surface and the read-only REST API. All protocol decisions live in the
// hub; this layer only frames, validates, and dispatches.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/huddle/datatypes"
	"github.com/AleutianAI/huddle/hub"
	"github.com/AleutianAI/huddle/observability"
)

// outboundBufferSize is the per-connection send queue. A slow reader that
// falls this far behind starts losing frames rather than stalling the hub.
const outboundBufferSize = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// wsConn adapts a gorilla WebSocket to hub.Conn. Frames are queued on a
// buffered channel and drained by a dedicated writer goroutine, so the
// hub's event loop never blocks on a client's socket.
type wsConn struct {
	id       string
	outbound chan datatypes.OutboundFrame
	done     chan struct{}
	once     sync.Once
}

func newWSConn() *wsConn {
	return &wsConn{
		id:       uuid.New().String(),
		outbound: make(chan datatypes.OutboundFrame, outboundBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send implements hub.Conn. It never blocks: a full buffer drops the frame
// and reports it, a closed connection swallows it quietly.
func (c *wsConn) Send(event string, data any) bool {
	frame := datatypes.OutboundFrame{Event: event, Data: data}
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.outbound <- frame:
		return true
	default:
		return false
	}
}

// sendAck queues an ack frame echoing the request id.
func (c *wsConn) sendAck(id string, data any) {
	frame := datatypes.OutboundFrame{Event: datatypes.EventAck, ID: id, Data: data}
	select {
	case <-c.done:
	case c.outbound <- frame:
	default:
		slog.Warn("Dropped ack on full send buffer", "connID", c.id, "requestID", id)
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

// writeLoop drains the outbound queue onto the socket until the connection
// closes or a write fails.
func (c *wsConn) writeLoop(socket *websocket.Conn) {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.outbound:
			if err := socket.WriteJSON(frame); err != nil {
				slog.Warn("Failed to write WebSocket frame", "connID", c.id, "error", err)
				c.close()
				return
			}
		}
	}
}

// HandleHubWebSocket upgrades the connection and pumps inbound envelopes
// into the hub until the client goes away. Closing the socket is the
// implicit disconnect event.
func HandleHubWebSocket(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade the websocket", "error", err)
			return
		}
		defer socket.Close()

		conn := newWSConn()
		observability.DefaultMetrics.ConnOpened()
		slog.Info("WebSocket client connected", "connID", conn.id)

		go conn.writeLoop(socket)
		defer func() {
			conn.close()
			h.Disconnect(conn.id)
			observability.DefaultMetrics.ConnClosed()
		}()

		for {
			var env datatypes.Envelope
			if err := socket.ReadJSON(&env); err != nil {
				slog.Info("WebSocket client disconnected", "connID", conn.id, "error", err.Error())
				return
			}
			dispatch(h, conn, env)
		}
	}
}

// decodeInto unmarshals and validates an envelope payload.
func decodeInto[T any](raw json.RawMessage) (T, error) {
	var req T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, err
		}
	}
	if err := datatypes.Validate(&req); err != nil {
		return req, err
	}
	return req, nil
}

// dispatch routes one inbound envelope to the hub. Malformed payloads are
// answered with an ack error when the client asked for an ack, and dropped
// otherwise.
func dispatch(h *hub.Hub, conn *wsConn, env datatypes.Envelope) {
	reply := func(any) {}
	if env.ID != "" {
		requestID := env.ID
		reply = func(data any) { conn.sendAck(requestID, data) }
	}

	fail := func(err error) {
		slog.Warn("Rejected inbound frame", "connID", conn.id,
			"event", env.Event, "error", err)
		reply(datatypes.ErrorResponse{Error: err.Error()})
	}

	switch env.Event {
	case datatypes.EventRegister:
		req, err := decodeInto[datatypes.RegisterRequest](env.Data)
		if err != nil {
			fail(err)
			return
		}
		h.Register(conn, req)

	case datatypes.EventChat:
		req, err := decodeInto[datatypes.ChatRequest](env.Data)
		if err != nil {
			fail(err)
			return
		}
		h.Chat(conn.id, req)

	case datatypes.EventAgentData:
		req, err := decodeInto[datatypes.AgentDataRequest](env.Data)
		if err != nil {
			fail(err)
			return
		}
		h.AgentData(conn.id, req)

	case datatypes.EventAgentResponse:
		req, err := decodeInto[datatypes.AgentResponseRequest](env.Data)
		if err != nil {
			fail(err)
			return
		}
		h.AgentResponse(conn.id, req)

	case datatypes.EventGetHistory:
		req, err := decodeInto[datatypes.HistoryRequest](env.Data)
		if err != nil {
			fail(err)
			return
		}
		h.GetHistory(req, reply)

	case datatypes.EventGetUsers:
		h.GetUsers(reply)

	case datatypes.EventDialectic:
		req, err := decodeInto[datatypes.DialecticRequest](env.Data)
		if err != nil {
			fail(err)
			return
		}
		h.Dialectic(req, reply)

	case datatypes.EventToggleObserve:
		h.ToggleObserve(conn.id, reply)

	case datatypes.EventGetSessionSummary:
		h.GetSessionSummary(reply)

	case datatypes.EventGetPeerKnowledge:
		h.GetPeerKnowledge(reply)

	case datatypes.EventGetPeerRelationships:
		h.GetPeerRelationships(reply)

	default:
		slog.Warn("Unknown inbound event", "connID", conn.id, "event", env.Event)
	}
}
