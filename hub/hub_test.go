// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hub

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/huddle/datatypes"
	"github.com/AleutianAI/huddle/memory"
)

// =============================================================================
// Test Doubles
// =============================================================================

// fakeConn records every frame the hub sends it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []datatypes.OutboundFrame
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, data any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, datatypes.OutboundFrame{Event: event, Data: data})
	return true
}

// framesByEvent returns the recorded frames for one event name.
func (c *fakeConn) framesByEvent(event string) []datatypes.OutboundFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []datatypes.OutboundFrame
	for _, f := range c.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// messages returns the message events delivered to this connection.
func (c *fakeConn) messages() []datatypes.Message {
	var out []datatypes.Message
	for _, f := range c.framesByEvent(datatypes.EventMessage) {
		if msg, ok := f.Data.(datatypes.Message); ok {
			out = append(out, msg)
		}
	}
	return out
}

// fakeMemory implements memory.Service with scriptable behavior.
type fakeMemory struct {
	mu sync.Mutex

	summaryText  string
	summaryErr   error
	summaryCalls int
	summaryBlock chan struct{} // when non-nil, GetSummary waits on it

	askAnswers map[string]string // key: peer "|" target
	askErrs    map[string]error

	storedConfig *memory.PeerConfig
	setConfigErr error

	registered []string
	removed    []string
	ingested   []string
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{
		askAnswers: make(map[string]string),
		askErrs:    make(map[string]error),
	}
}

func (m *fakeMemory) RegisterPeer(_ context.Context, peer string, _ *memory.PeerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, peer)
	return nil
}

func (m *fakeMemory) RemovePeer(_ context.Context, peer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, peer)
	return nil
}

func (m *fakeMemory) GetPeerConfig(context.Context, string) (*memory.PeerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storedConfig, nil
}

func (m *fakeMemory) SetPeerConfig(context.Context, string, memory.PeerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setConfigErr
}

func (m *fakeMemory) IngestMessage(_ context.Context, peer, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingested = append(m.ingested, peer+": "+content)
	return nil
}

func (m *fakeMemory) GetSummary(context.Context, int) (string, error) {
	m.mu.Lock()
	m.summaryCalls++
	block := m.summaryBlock
	text, err := m.summaryText, m.summaryErr
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	return text, err
}

func (m *fakeMemory) AskPeer(_ context.Context, peer, _, target string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := peer + "|" + target
	if err, ok := m.askErrs[key]; ok {
		return "", err
	}
	return m.askAnswers[key], nil
}

func (m *fakeMemory) ListMessages(context.Context) ([]memory.StoredMessage, error) {
	return nil, nil
}

func (m *fakeMemory) countSummaryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryCalls
}

// =============================================================================
// Harness
// =============================================================================

// newTestHub starts a hub on a real event loop, torn down with the test.
func newTestHub(t *testing.T, mem memory.Service) *Hub {
	t.Helper()
	h, err := New(Config{SessionID: "test-session", Memory: mem})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

// flush blocks until every previously submitted task has run. The loop is
// a single FIFO consumer, so observing the marker task means everything
// before it finished.
func flush(h *Hub) {
	done := make(chan struct{})
	h.submit(func() { close(done) })
	<-done
}

// register is a shorthand for registering a participant and waiting for
// the loop to process it.
func register(h *Hub, conn Conn, req datatypes.RegisterRequest) {
	h.Register(conn, req)
	flush(h)
}
