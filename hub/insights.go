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
)

const (
	knowledgeQuestion = "What topics have been discussed in this session? List them as bullet points."

	relationshipQuestionFmt = "What is your relationship with %s? Describe in one sentence."

	// maxTopicsPerPeer caps the knowledge list per participant.
	maxTopicsPerPeer = 5

	// topicRecencyWindow tags topics as recent relative to now.
	topicRecencyWindow = 5 * time.Minute

	// relationshipDescLimit caps the relationship description.
	relationshipDescLimit = 100

	// relationshipStrength is a fixed placeholder until message-frequency
	// analysis lands.
	relationshipStrength = 0.5
)

// peerRef is the snapshot the event loop hands to the fan-out goroutines.
type peerRef struct {
	id       string
	username string
}

// snapshotPeers must run on the event loop.
func (h *Hub) snapshotPeers() []peerRef {
	all := h.registry.All()
	refs := make([]peerRef, 0, len(all))
	for _, p := range all {
		refs = append(refs, peerRef{id: p.ID, username: p.Username})
	}
	return refs
}

// GetPeerKnowledge queries the memory service once per known participant
// and aggregates the parsed topic lists. A per-participant failure yields
// an entry with an empty topic list; the fan-out continues.
func (h *Hub) GetPeerKnowledge(reply func(any)) {
	h.submit(func() {
		peers := h.snapshotPeers()
		go func() {
			start := time.Now()
			result := make([]datatypes.PeerKnowledge, 0, len(peers))
			for _, peer := range peers {
				answer, err := h.memory.AskPeer(context.Background(),
					peer.username, knowledgeQuestion, "")
				if err != nil {
					h.metrics.MemoryError("ask")
					slog.Warn("Knowledge query failed", "peer", peer.username, "error", err)
					result = append(result, datatypes.PeerKnowledge{
						PeerID:   peer.id,
						PeerName: peer.username,
						Topics:   []datatypes.KnowledgeItem{},
					})
					continue
				}
				result = append(result, datatypes.PeerKnowledge{
					PeerID:   peer.id,
					PeerName: peer.username,
					Topics:   parseTopics(answer, h.clock().UTC()),
				})
			}
			h.metrics.InsightObserved("knowledge", time.Since(start))
			reply(result)
		}()
	})
}

// GetPeerRelationships queries the memory service once per ordered pair of
// distinct participants. A failed pair is logged and omitted; it is neither
// retried nor defaulted.
func (h *Hub) GetPeerRelationships(reply func(any)) {
	h.submit(func() {
		peers := h.snapshotPeers()
		go func() {
			start := time.Now()
			result := make([]datatypes.PeerRelationship, 0)
			for _, from := range peers {
				for _, to := range peers {
					if from.id == to.id {
						continue
					}
					question := fmt.Sprintf(relationshipQuestionFmt, to.username)
					answer, err := h.memory.AskPeer(context.Background(),
						from.username, question, to.username)
					if err != nil {
						h.metrics.MemoryError("ask")
						slog.Warn("Relationship query failed",
							"from", from.username, "to", to.username, "error", err)
						continue
					}
					description := truncate(answer, relationshipDescLimit)
					if description == "" {
						description = "No relationship data"
					}
					result = append(result, datatypes.PeerRelationship{
						FromPeer:    from.username,
						ToPeer:      to.username,
						Sentiment:   classifySentiment(answer),
						Description: description,
						Strength:    relationshipStrength,
					})
				}
			}
			h.metrics.InsightObserved("relationships", time.Since(start))
			reply(result)
		}()
	})
}

// parseTopics extracts bullet-formatted lines from a free-text answer into
// a capped topic list, tagging each against the recency window. The answer
// carries no per-topic timestamps, so each topic is stamped at query time,
// which always lands inside the window. The comparison starts mattering
// once the memory service reports when a topic was last mentioned.
func parseTopics(answer string, now time.Time) []datatypes.KnowledgeItem {
	cutoff := now.Add(-topicRecencyWindow)
	topics := make([]datatypes.KnowledgeItem, 0, maxTopicsPerPeer)
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		var content string
		switch {
		case strings.HasPrefix(line, "-"):
			content = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		case strings.HasPrefix(line, "•"):
			content = strings.TrimSpace(strings.TrimPrefix(line, "•"))
		default:
			continue
		}
		if content == "" {
			continue
		}
		topics = append(topics, datatypes.KnowledgeItem{
			Content:   content,
			IsRecent:  now.After(cutoff),
			Timestamp: now.Format(time.RFC3339Nano),
		})
		if len(topics) == maxTopicsPerPeer {
			break
		}
	}
	return topics
}

var positiveKeywords = []string{
	"good", "great", "excellent", "helpful", "friendly", "like", "love", "wonderful",
}

var negativeKeywords = []string{
	"bad", "terrible", "awful", "unhelpful", "rude", "dislike", "hate", "poor",
}

// classifySentiment compares positive and negative keyword hits: strictly
// more positive wins, strictly more negative wins, any tie is neutral.
func classifySentiment(text string) string {
	lower := strings.ToLower(text)
	positive := 0
	for _, word := range positiveKeywords {
		if strings.Contains(lower, word) {
			positive++
		}
	}
	negative := 0
	for _, word := range negativeKeywords {
		if strings.Contains(lower, word) {
			negative++
		}
	}
	switch {
	case positive > negative:
		return "positive"
	case negative > positive:
		return "negative"
	default:
		return "neutral"
	}
}
