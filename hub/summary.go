package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/huddle/datatypes"
)

const (
	// SummaryTokenBudget bounds the size of the summary requested from
	// the memory service.
	SummaryTokenBudget = 2000

	// SummaryInitialDelay is how long after startup the first refresh
	// runs.
	SummaryInitialDelay = 2 * time.Second

	// SummaryRefreshInterval is the recurring refresh period.
	SummaryRefreshInterval = 30 * time.Second

	// summaryShortLimit caps the short form of the summary.
	summaryShortLimit = 150
)

// SummaryCache holds the latest conversation summary and the
// generation-in-progress flag. Both fields are touched only on the hub's
// event loop, which gives the single-flight guarantee: a refresh that finds
// the flag set returns immediately instead of queueing.
type SummaryCache struct {
	data       *datatypes.SessionSummary
	generating bool
}

// Data returns the cached summary, or nil before the first generation.
func (c *SummaryCache) Data() *datatypes.SessionSummary { return c.data }

// RefreshSummary schedules a summary refresh on the event loop. Safe to
// call from any goroutine; concurrent calls while a generation is in
// flight are no-ops.
func (h *Hub) RefreshSummary() {
	h.submit(h.refreshSummary)
}

// refreshSummary runs on the event loop. With no chat messages it installs
// the fixed placeholder without calling the memory service. Otherwise it
// sets the in-flight flag, snapshots the message count, and hands the slow
// call to a goroutine; finishSummary posts the result back to the loop.
func (h *Hub) refreshSummary() {
	if h.summary.generating {
		h.metrics.SummaryRefresh("skipped")
		slog.Info("Summary generation already in progress, skipping")
		return
	}

	messageCount := h.history.CountWhere(func(msg datatypes.Message) bool {
		return msg.Type == datatypes.MessageChat
	})
	now := h.clock().UTC().Format(time.RFC3339Nano)

	if messageCount == 0 {
		h.summary.data = &datatypes.SessionSummary{
			Short:        "No messages yet. Start chatting to see a summary!",
			Full:         "Once the conversation begins, this will show a summary of the key topics and interactions.",
			MessageCount: 0,
			LastUpdated:  now,
		}
		h.broadcastFrame(datatypes.EventSummaryUpdated, h.summary.data)
		return
	}

	h.summary.generating = true
	slog.Info("Generating summary", "messageCount", messageCount)

	go func() {
		text, err := h.memory.GetSummary(context.Background(), h.summaryBudget)
		h.submit(func() { h.finishSummary(messageCount, text, err) })
	}()
}

// finishSummary runs on the event loop on every exit path of a generation:
// it stores the outcome, clears the in-flight flag, and pushes the update
// to all connections.
func (h *Hub) finishSummary(messageCount int, text string, err error) {
	now := h.clock().UTC().Format(time.RFC3339Nano)
	h.summary.data = buildSummary(messageCount, text, err, now)
	h.summary.generating = false

	switch {
	case err != nil:
		h.metrics.SummaryRefresh("error")
		h.metrics.MemoryError("summary")
		slog.Error("Summary generation failed", "error", err)
	case text == "":
		h.metrics.SummaryRefresh("empty")
		slog.Warn("No summary content from memory service, using fallback")
	default:
		h.metrics.SummaryRefresh("success")
		slog.Info("Summary updated", "messageCount", messageCount)
	}

	h.broadcastFrame(datatypes.EventSummaryUpdated, h.summary.data)
}

// buildSummary converts a generation outcome into cache contents. The
// stale-looking fallbacks still carry the live message count so clients
// always render something truthful.
func buildSummary(messageCount int, text string, err error, now string) *datatypes.SessionSummary {
	if err != nil {
		return &datatypes.SessionSummary{
			Short:        fmt.Sprintf("%d messages. Summary temporarily unavailable.", messageCount),
			Full:         fmt.Sprintf("Error retrieving session summary: %v", err),
			MessageCount: messageCount,
			LastUpdated:  now,
		}
	}
	if text == "" {
		return &datatypes.SessionSummary{
			Short:        fmt.Sprintf("%d messages exchanged. Summary generation in progress...", messageCount),
			Full:         "The system is processing the conversation. Please check back in a moment.",
			MessageCount: messageCount,
			LastUpdated:  now,
		}
	}
	return &datatypes.SessionSummary{
		Short:        truncate(text, summaryShortLimit),
		Full:         text,
		MessageCount: messageCount,
		LastUpdated:  now,
	}
}

// GetSessionSummary answers a get_session_summary request from the cache.
// Before the first generation it degrades to a well-formed fallback rather
// than an error.
func (h *Hub) GetSessionSummary(reply func(any)) {
	h.submit(func() {
		if h.summary.data != nil {
			reply(*h.summary.data)
			return
		}
		messageCount := h.history.CountWhere(func(msg datatypes.Message) bool {
			return msg.Type == datatypes.MessageChat
		})
		reply(datatypes.SessionSummary{
			Short:        "No activity yet",
			Full:         "No detailed summary available",
			MessageCount: messageCount,
			LastUpdated:  h.clock().UTC().Format(time.RFC3339Nano),
		})
	})
}

// RunSummaryRefresher drives the periodic refresh: once after the initial
// delay, then on every interval tick, until ctx is cancelled.
func (h *Hub) RunSummaryRefresher(ctx context.Context, initialDelay, interval time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
		h.RefreshSummary()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.RefreshSummary()
		}
	}
}

// truncate shortens s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
