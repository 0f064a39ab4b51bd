// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the shared data structures for the hub service.
//
// This file contains the message event types that flow through the hub's
// history buffer and over the wire. For client request/response shapes,
// see wire.go; for the insight payloads, see insights.go.
package datatypes

// MessageType classifies an event in the session.
type MessageType string

const (
	MessageChat          MessageType = "chat"
	MessageAgentResponse MessageType = "agent_response"
	MessageAgentData     MessageType = "agent_data"
	MessageSystem        MessageType = "system"
	MessageJoin          MessageType = "join"
	MessageLeave         MessageType = "leave"
)

// Message is a single event in the session. It is immutable once created:
// the router stamps the id and timestamp at creation and nothing mutates it
// afterwards, so it can be shared across the history buffer, broadcasts, and
// agent side-channel notifications without copying.
type Message struct {
	ID       string         `json:"id"`
	Type     MessageType    `json:"type"`
	Username string         `json:"username"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Timestamp returns the creation timestamp stamped into the metadata map,
// or the empty string if the message predates the router (should not happen).
func (m Message) Timestamp() string {
	ts, _ := m.Metadata["timestamp"].(string)
	return ts
}
