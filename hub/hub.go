// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hub implements the realtime session hub: the participant registry,
// the bounded message history, event routing and fan-out, the summary cache,
// and the insight queries against the memory service.
//
// # Concurrency
//
// The hub runs a single event-loop goroutine (Run). Every mutation of the
// registry, the history buffer, or the summary-cache flags happens on that
// goroutine; transport handlers and timers submit work to it over a channel.
// Calls to the memory service never run on the loop: the loop snapshots the
// state the call needs, the call runs in its own goroutine, and the result
// is posted back to the loop. This removes the need for any locks on hub
// state.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/AleutianAI/huddle/datatypes"
	"github.com/AleutianAI/huddle/memory"
	"github.com/AleutianAI/huddle/observability"
)

// Conn is the hub's view of a client connection. Implementations must make
// Send non-blocking: a send that cannot be buffered returns false and the
// frame is dropped.
type Conn interface {
	// ID returns the connection handle, unique per connection.
	ID() string

	// Send queues an outbound frame. Returns false if the frame was
	// dropped because the connection's buffer was full.
	Send(event string, data any) bool
}

// Config carries the hub's dependencies and tunables.
type Config struct {
	SessionID string
	Memory    memory.Service

	// Metrics may be nil (tests).
	Metrics *observability.HubMetrics

	// HistoryCapacity defaults to DefaultHistoryCapacity when zero.
	HistoryCapacity int

	// SummaryTokenBudget defaults to SummaryTokenBudget when zero.
	SummaryTokenBudget int

	// Clock defaults to time.Now. Injected by tests.
	Clock func() time.Time
}

// Hub owns the session state and the event loop.
type Hub struct {
	sessionID string
	memory    memory.Service
	metrics   *observability.HubMetrics

	registry *Registry
	history  *History
	summary  SummaryCache

	node          *snowflake.Node
	clock         func() time.Time
	summaryBudget int

	tasks chan func()
	done  chan struct{}
}

// New builds a hub. Run must be started before the hub accepts events.
func New(cfg Config) (*Hub, error) {
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("hub: SessionID must not be empty")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("hub: Memory service must not be nil")
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("hub: failed to create snowflake node: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	budget := cfg.SummaryTokenBudget
	if budget == 0 {
		budget = SummaryTokenBudget
	}
	return &Hub{
		sessionID:     cfg.SessionID,
		memory:        cfg.Memory,
		metrics:       cfg.Metrics,
		registry:      NewRegistry(),
		history:       NewHistory(cfg.HistoryCapacity),
		node:          node,
		clock:         clock,
		summaryBudget: budget,
		tasks:         make(chan func(), 256),
		done:          make(chan struct{}),
	}, nil
}

// SessionID returns the session identifier this hub serves.
func (h *Hub) SessionID() string {
	return h.sessionID
}

// Run drives the event loop until ctx is cancelled. Call exactly once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-h.tasks:
			fn()
		}
	}
}

// submit schedules fn on the event loop. After shutdown it is a no-op so
// late completion callbacks from background goroutines cannot block.
func (h *Hub) submit(fn func()) {
	select {
	case h.tasks <- fn:
	case <-h.done:
	}
}

// newMessage stamps an id and creation timestamp. Extra metadata is laid
// over the stamped fields, matching the wire contract where kind-specific
// fields live beside the timestamp.
func (h *Hub) newMessage(kind datatypes.MessageType, username, content string,
	extra map[string]any) datatypes.Message {

	metadata := map[string]any{
		"timestamp": h.clock().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		metadata[k] = v
	}
	return datatypes.Message{
		ID:       h.node.Generate().String(),
		Type:     kind,
		Username: username,
		Content:  content,
		Metadata: metadata,
	}
}

// send delivers one frame to one connection, counting drops.
func (h *Hub) send(conn Conn, event string, data any) {
	if !conn.Send(event, data) {
		h.metrics.FrameDropped()
		slog.Warn("Dropped outbound frame on full send buffer",
			"connID", conn.ID(), "event", event)
	}
}

// broadcast delivers a message event to every connected participant.
func (h *Hub) broadcast(msg datatypes.Message) {
	h.metrics.MessageRouted(string(msg.Type))
	for _, p := range h.registry.All() {
		h.send(p.Conn, datatypes.EventMessage, msg)
	}
}

// broadcastExcept delivers a message event to everyone but one connection.
func (h *Hub) broadcastExcept(excludeID string, msg datatypes.Message) {
	h.metrics.MessageRouted(string(msg.Type))
	for _, p := range h.registry.All() {
		if p.ID == excludeID {
			continue
		}
		h.send(p.Conn, datatypes.EventMessage, msg)
	}
}

// broadcastFrame delivers an arbitrary event frame to every participant.
func (h *Hub) broadcastFrame(event string, data any) {
	for _, p := range h.registry.All() {
		h.send(p.Conn, event, data)
	}
}

// SeedHistory replays messages persisted by a previous run of this session
// into the history buffer. Intended for startup, before clients connect.
func (h *Hub) SeedHistory(stored []memory.StoredMessage) {
	h.submit(func() {
		for _, m := range stored {
			username := m.PeerID
			if username == "" {
				username = "unknown"
			}
			timestamp := m.CreatedAt
			if timestamp == "" {
				timestamp = h.clock().UTC().Format(time.RFC3339Nano)
			}
			id := m.ID
			if id == "" {
				id = h.node.Generate().String()
			}
			h.history.Append(datatypes.Message{
				ID:       id,
				Type:     datatypes.MessageChat,
				Username: username,
				Content:  m.Content,
				Metadata: map[string]any{
					"timestamp":         timestamp,
					"loadedFromSession": true,
				},
			})
		}
		slog.Info("Seeded history from existing session", "messages", len(stored))
	})
}
