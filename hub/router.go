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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/huddle/datatypes"
	"github.com/AleutianAI/huddle/memory"
)

// registrationHistorySize is the number of history entries pushed to a
// client right after it registers.
const registrationHistorySize = 50

// agentContextSize is the number of history entries included in agent
// side-channel notifications.
const agentContextSize = 10

// defaultHistoryLimit applies to get_history requests without a limit.
const defaultHistoryLimit = 100

// Register handles a register event on a fresh connection. The caller
// receives its history snapshot and the session id; everyone else receives
// a join broadcast. Peer registration with the memory service runs in the
// background and never rolls back local state on failure.
func (h *Hub) Register(conn Conn, req datatypes.RegisterRequest) {
	h.submit(func() {
		kind := KindHuman
		if req.Type == KindAgent {
			kind = KindAgent
		}

		username := strings.TrimSpace(req.Username)
		if username == "" {
			username = generatedUsername(conn.ID())
		}

		observeMe := true
		if req.ObserveMe != nil {
			observeMe = *req.ObserveMe
		}

		p := &Participant{
			ID:           conn.ID(),
			Username:     username,
			Type:         kind,
			Capabilities: req.Capabilities,
			ObserveMe:    observeMe,
			Conn:         conn,
		}
		if err := h.registry.Register(p); err != nil {
			// A second register frame on a live connection. Drop it; the
			// original registration stands.
			slog.Error("Rejected registration", "connID", conn.ID(),
				"username", username, "error", err)
			return
		}
		slog.Info("Participant registered", "connID", conn.ID(),
			"username", username, "type", kind)

		h.send(conn, datatypes.EventHistory, h.history.Recent(registrationHistorySize))
		h.send(conn, datatypes.EventSessionID, h.sessionID)

		joinMsg := h.newMessage(datatypes.MessageJoin, "system",
			fmt.Sprintf("%s (%s) joined the chat", username, kind),
			map[string]any{"joinedUser": username, "userType": kind})
		h.broadcastExcept(conn.ID(), joinMsg)
		h.history.Append(joinMsg)

		go h.syncPeerRegistration(conn.ID(), username, kind)
	})
}

// syncPeerRegistration mirrors a registration into the memory service. For
// humans it also reads back the stored observation preference: a stored
// value wins over the registration default, true applies only when nothing
// is stored or the read fails.
func (h *Hub) syncPeerRegistration(connID, username, kind string) {
	ctx := context.Background()

	if kind == KindAgent {
		observeMe := false
		observeOthers := true
		err := h.memory.RegisterPeer(ctx, username, &memory.PeerConfig{
			ObserveMe:     &observeMe,
			ObserveOthers: &observeOthers,
		})
		if err != nil {
			h.metrics.MemoryError("register_peer")
			slog.Warn("Failed to register agent peer with memory service",
				"username", username, "error", err)
		}
		return
	}

	if err := h.memory.RegisterPeer(ctx, username, nil); err != nil {
		h.metrics.MemoryError("register_peer")
		slog.Warn("Failed to register peer with memory service",
			"username", username, "error", err)
		return
	}

	config, err := h.memory.GetPeerConfig(ctx, username)
	if err != nil {
		slog.Warn("Failed to read stored peer config, keeping default",
			"username", username, "error", err)
		return
	}
	if config == nil || config.ObserveMe == nil {
		return
	}
	stored := *config.ObserveMe
	h.submit(func() {
		if p, ok := h.registry.Lookup(connID); ok && p.Type == KindHuman {
			p.ObserveMe = stored
		}
	})
}

// Chat handles a chat event: broadcast, history append, best-effort memory
// ingestion, agent side-channel notification, and an on-demand summary
// refresh. Events from unregistered connections are dropped without error;
// a disconnect racing an in-flight frame is expected.
func (h *Hub) Chat(connID string, req datatypes.ChatRequest) {
	h.submit(func() {
		p, ok := h.registry.Lookup(connID)
		if !ok {
			return
		}

		extra := map[string]any{"userId": connID, "userType": p.Type}
		for k, v := range req.Metadata {
			extra[k] = v
		}
		msg := h.newMessage(datatypes.MessageChat, p.Username, req.Content, extra)

		h.broadcast(msg)
		h.history.Append(msg)
		h.notifyAgents(msg, "chat_message", "")

		go h.ingestMessage(p.Username, req.Content)

		h.refreshSummary()
	})
}

// ingestMessage records a chat turn with the memory service. Failures are
// logged and swallowed; local chat continuity must survive upstream
// outages.
func (h *Hub) ingestMessage(username, content string) {
	if err := h.memory.IngestMessage(context.Background(), username, content); err != nil {
		h.metrics.MemoryError("ingest")
		slog.Warn("Failed to ingest message into memory service",
			"username", username, "error", err)
	}
}

// AgentData handles structured agent output. Broadcast frames reach
// everyone and enter history; targeted frames reach only the listed
// connections and bypass history. Unknown targets are skipped silently.
func (h *Hub) AgentData(connID string, req datatypes.AgentDataRequest) {
	h.submit(func() {
		p, ok := h.registry.Lookup(connID)
		if !ok || p.Type != KindAgent {
			return
		}

		extra := map[string]any{
			"agentId":       connID,
			"dataType":      req.DataType,
			"processedData": req.ProcessedData,
		}
		for k, v := range req.Metadata {
			extra[k] = v
		}
		msg := h.newMessage(datatypes.MessageAgentData, p.Username, req.Content, extra)

		if req.Broadcast {
			h.broadcast(msg)
			h.history.Append(msg)
		} else if len(req.Targets) > 0 {
			h.metrics.MessageRouted(string(msg.Type))
			for _, targetID := range req.Targets {
				if target, ok := h.registry.Lookup(targetID); ok {
					h.send(target.Conn, datatypes.EventMessage, msg)
				}
			}
		}

		h.notifyAgents(msg, "agent_data", connID)
	})
}

// AgentResponse handles a conversational reply from an agent: broadcast,
// history append, and memory ingestion.
func (h *Hub) AgentResponse(connID string, req datatypes.AgentResponseRequest) {
	h.submit(func() {
		p, ok := h.registry.Lookup(connID)
		if !ok || p.Type != KindAgent {
			return
		}

		responseType := req.ResponseType
		if responseType == "" {
			responseType = "general"
		}
		extra := map[string]any{
			"agentId":      connID,
			"responseType": responseType,
		}
		if req.Confidence != nil {
			extra["confidence"] = *req.Confidence
		}
		if req.ReferencedMessage != "" {
			extra["referencedMessage"] = req.ReferencedMessage
		}
		msg := h.newMessage(datatypes.MessageAgentResponse, p.Username, req.Response, extra)

		h.broadcast(msg)
		h.history.Append(msg)

		go h.ingestMessage(p.Username, req.Response)
	})
}

// Disconnect removes the connection's participant and broadcasts a leave
// event. Disconnecting an unregistered connection is a no-op.
func (h *Hub) Disconnect(connID string) {
	h.submit(func() {
		p, ok := h.registry.Remove(connID)
		if !ok {
			return
		}
		slog.Info("Participant disconnected", "connID", connID,
			"username", p.Username, "type", p.Type)

		leaveMsg := h.newMessage(datatypes.MessageLeave, "system",
			fmt.Sprintf("%s (%s) left the chat", p.Username, p.Type),
			map[string]any{"leftUser": p.Username, "userType": p.Type})
		h.broadcast(leaveMsg)
		h.history.Append(leaveMsg)

		username := p.Username
		go func() {
			if err := h.memory.RemovePeer(context.Background(), username); err != nil {
				h.metrics.MemoryError("remove_peer")
				slog.Warn("Failed to remove peer from memory service",
					"username", username, "error", err)
			}
		}()
	})
}

// notifyAgents pushes the side-channel agent_event to every registered
// agent except excludeID, carrying the triggering message and a context
// snapshot.
func (h *Hub) notifyAgents(msg datatypes.Message, eventType, excludeID string) {
	agents := h.registry.Agents()
	if len(agents) == 0 {
		return
	}
	event := datatypes.AgentEvent{
		EventType: eventType,
		Message:   msg,
		Context: datatypes.AgentContext{
			TotalUsers:    h.registry.HumanCount(),
			TotalAgents:   h.registry.AgentCount(),
			RecentHistory: h.history.Recent(agentContextSize),
		},
	}
	for _, agent := range agents {
		if agent.ID == excludeID {
			continue
		}
		h.send(agent.Conn, datatypes.EventAgentEvent, event)
	}
}

// GetHistory answers a get_history request. Join/leave/system events are
// never included; Total counts matches before the limit is applied.
func (h *Hub) GetHistory(req datatypes.HistoryRequest, reply func(any)) {
	h.submit(func() {
		var since time.Time
		if req.Since != "" {
			since, _ = time.Parse(time.RFC3339Nano, req.Since)
		}

		matches := h.history.Filter(func(msg datatypes.Message) bool {
			switch msg.Type {
			case datatypes.MessageJoin, datatypes.MessageLeave, datatypes.MessageSystem:
				return false
			}
			if req.MessageType != "" && string(msg.Type) != req.MessageType {
				return false
			}
			if !since.IsZero() {
				ts, err := time.Parse(time.RFC3339Nano, msg.Timestamp())
				if err != nil || !ts.After(since) {
					return false
				}
			}
			return true
		})

		limit := req.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		total := len(matches)
		if len(matches) > limit {
			matches = matches[len(matches)-limit:]
		}
		if matches == nil {
			matches = []datatypes.Message{}
		}
		reply(datatypes.HistoryResponse{History: matches, Total: total})
	})
}

// GetUsers answers a get_users request with participant snapshots.
func (h *Hub) GetUsers(reply func(any)) {
	h.submit(func() {
		users := make([]datatypes.UserSnapshot, 0, h.registry.HumanCount())
		for _, p := range h.registry.Humans() {
			observeMe := p.ObserveMe
			users = append(users, datatypes.UserSnapshot{
				ID:        p.ID,
				Username:  p.Username,
				Type:      p.Type,
				ObserveMe: &observeMe,
			})
		}
		agents := make([]datatypes.UserSnapshot, 0, h.registry.AgentCount())
		for _, p := range h.registry.Agents() {
			agents = append(agents, datatypes.UserSnapshot{
				ID:           p.ID,
				Username:     p.Username,
				Type:         p.Type,
				Capabilities: p.Capabilities,
			})
		}
		reply(datatypes.UsersResponse{Users: users, Agents: agents})
	})
}

// DialecticResponse answers a dialectic request.
type DialecticResponse struct {
	Response string `json:"response"`
}

// Dialectic forwards a free-form question about a participant to the memory
// service. It touches no hub state, so the call runs directly in its own
// goroutine.
func (h *Hub) Dialectic(req datatypes.DialecticRequest, reply func(any)) {
	go func() {
		answer, err := h.memory.AskPeer(context.Background(), req.User, req.Query, "")
		if err != nil {
			h.metrics.MemoryError("ask")
			slog.Warn("Dialectic query failed", "user", req.User, "error", err)
		}
		if answer == "" {
			answer = "No response from agent"
		}
		reply(DialecticResponse{Response: answer})
	}()
}

// ToggleObserve flips the calling human's observation opt-in, syncs it to
// the memory service, and confirms with a system message on success. An
// unregistered or agent caller gets an error reply.
func (h *Hub) ToggleObserve(connID string, reply func(any)) {
	h.submit(func() {
		p, ok := h.registry.Lookup(connID)
		if !ok || p.Type != KindHuman {
			reply(datatypes.ErrorResponse{Error: "User not found"})
			return
		}

		newStatus := !p.ObserveMe
		p.ObserveMe = newStatus
		username := p.Username

		go func() {
			observeOthers := false
			err := h.memory.SetPeerConfig(context.Background(), username, memory.PeerConfig{
				ObserveMe:     &newStatus,
				ObserveOthers: &observeOthers,
			})
			if err != nil {
				h.metrics.MemoryError("set_peer_config")
				reply(datatypes.ErrorResponse{
					Error: fmt.Sprintf("Failed to update observation status: %v", err),
				})
				return
			}

			h.submit(func() {
				verb := "disabled"
				if newStatus {
					verb = "enabled"
				}
				statusMsg := h.newMessage(datatypes.MessageSystem, "system",
					fmt.Sprintf("%s %s observation", username, verb),
					map[string]any{"userId": connID, "observeStatus": newStatus})

				if p, ok := h.registry.Lookup(connID); ok {
					h.send(p.Conn, datatypes.EventMessage, statusMsg)
				}
				h.history.Append(statusMsg)

				reply(datatypes.ToggleObserveResponse{
					Success:   true,
					ObserveMe: newStatus,
					Message:   fmt.Sprintf("Observation %s", verb),
				})
				slog.Info("Observation toggled", "username", username, "observeMe", newStatus)
			})
		}()
	})
}

// generatedUsername derives a fallback display name from the connection
// handle for registrations with an empty username.
func generatedUsername(connID string) string {
	suffix := connID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return "guest-" + suffix
}
