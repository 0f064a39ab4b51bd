// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxContentBytes is the maximum size of a single message content.
	// Checked as byte length, not rune count, to bound memory per frame.
	MaxContentBytes = 32 * 1024 // 32KB

	// MaxUsernameLength is the maximum display-name length accepted at
	// registration. Longer names are rejected, not truncated.
	MaxUsernameLength = 64

	// MaxTargets bounds the explicit target list of an agent_data frame.
	MaxTargets = 100
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// wireValidate is the validator instance for inbound wire types.
var wireValidate *validator.Validate

func init() {
	wireValidate = validator.New()
	_ = wireValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxContentBytes on string fields.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxContentBytes
}

// Validate runs struct validation on an inbound request payload.
func Validate(v any) error {
	if err := wireValidate.Struct(v); err != nil {
		return fmt.Errorf("invalid request payload: %w", err)
	}
	return nil
}

// =============================================================================
// Envelope
// =============================================================================

// Envelope is the framing for every frame on the hub WebSocket, both
// directions. Inbound frames carry an event name, an optional request id
// (present when the client expects an ack), and the event payload. Outbound
// frames reuse the same shape; acks echo the inbound id.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is the hub-to-client counterpart of Envelope with an
// already-materialized payload.
type OutboundFrame struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventRegister             = "register"
	EventChat                 = "chat"
	EventAgentData            = "agent_data"
	EventAgentResponse        = "agent_response"
	EventGetHistory           = "get_history"
	EventGetUsers             = "get_users"
	EventDialectic            = "dialectic"
	EventToggleObserve        = "toggle_observe"
	EventGetSessionSummary    = "get_session_summary"
	EventGetPeerKnowledge     = "get_peer_knowledge"
	EventGetPeerRelationships = "get_peer_relationships"
)

// Outbound event names.
const (
	EventMessage        = "message"
	EventHistory        = "history"
	EventSessionID      = "session_id"
	EventSummaryUpdated = "summary_updated"
	EventAgentEvent     = "agent_event"
	EventAck            = "ack"
)

// =============================================================================
// Inbound Requests
// =============================================================================

// RegisterRequest announces a new participant on a fresh connection.
// An empty or whitespace-only username is replaced by a generated default,
// never rejected.
type RegisterRequest struct {
	Username     string   `json:"username" validate:"max=64"`
	Type         string   `json:"type" validate:"omitempty,oneof=human agent"`
	Capabilities []string `json:"capabilities"`
	ObserveMe    *bool    `json:"observe_me"`
}

// ChatRequest is a plain chat message from a registered participant.
type ChatRequest struct {
	Content  string         `json:"content" validate:"required,maxbytes"`
	Metadata map[string]any `json:"metadata"`
}

// AgentDataRequest carries structured agent output. With Broadcast set it
// goes to everyone and into history; with Targets set it is delivered only
// to the listed connection ids and bypasses history.
type AgentDataRequest struct {
	Content       string         `json:"content" validate:"maxbytes"`
	DataType      string         `json:"dataType"`
	ProcessedData any            `json:"processedData"`
	Metadata      map[string]any `json:"metadata"`
	Broadcast     bool           `json:"broadcast"`
	Targets       []string       `json:"targets" validate:"max=100"`
}

// AgentResponseRequest is a conversational reply from an agent.
type AgentResponseRequest struct {
	Response          string   `json:"response" validate:"required,maxbytes"`
	ResponseType      string   `json:"responseType"`
	Confidence        *float64 `json:"confidence"`
	ReferencedMessage string   `json:"referencedMessage"`
}

// HistoryRequest filters the conversation history. Join/leave/system events
// are always excluded from the result.
type HistoryRequest struct {
	Limit       int    `json:"limit" validate:"min=0"`
	MessageType string `json:"messageType"`
	Since       string `json:"since"`
}

// DialecticRequest asks the memory service a free-form question about a
// participant.
type DialecticRequest struct {
	User  string `json:"user" validate:"required"`
	Query string `json:"query" validate:"required,maxbytes"`
}

// =============================================================================
// Responses
// =============================================================================

// HistoryResponse answers a get_history request. Total is the match count
// before the limit is applied.
type HistoryResponse struct {
	History []Message `json:"history"`
	Total   int       `json:"total"`
}

// UserSnapshot is the public view of a participant.
type UserSnapshot struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Type         string   `json:"type"`
	ObserveMe    *bool    `json:"observe_me,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// UsersResponse answers a get_users request.
type UsersResponse struct {
	Users  []UserSnapshot `json:"users"`
	Agents []UserSnapshot `json:"agents"`
}

// ToggleObserveResponse answers a toggle_observe request.
type ToggleObserveResponse struct {
	Success   bool   `json:"success"`
	ObserveMe bool   `json:"observe_me"`
	Message   string `json:"message"`
}

// ErrorResponse is the error shape carried inside an ack payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
