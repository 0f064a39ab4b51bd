package hub

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/huddle/datatypes"
)

func TestBuildSummary(t *testing.T) {
	now := "2026-01-02T03:04:05Z"

	t.Run("success truncates the short form", func(t *testing.T) {
		long := strings.Repeat("a", 300)
		s := buildSummary(7, long, nil, now)
		assert.Equal(t, strings.Repeat("a", 150), s.Short)
		assert.Equal(t, long, s.Full)
		assert.Equal(t, 7, s.MessageCount)
		assert.Equal(t, now, s.LastUpdated)
	})

	t.Run("short text passes through unchanged", func(t *testing.T) {
		s := buildSummary(2, "quick recap", nil, now)
		assert.Equal(t, "quick recap", s.Short)
		assert.Equal(t, "quick recap", s.Full)
	})

	t.Run("empty content falls back to processing notice", func(t *testing.T) {
		s := buildSummary(4, "", nil, now)
		assert.Contains(t, s.Short, "4 messages exchanged")
		assert.NotEmpty(t, s.Full)
		assert.Equal(t, 4, s.MessageCount)
	})

	t.Run("error keeps the live count and carries context", func(t *testing.T) {
		s := buildSummary(9, "", errors.New("connection refused"), now)
		assert.Contains(t, s.Short, "9 messages")
		assert.Contains(t, s.Full, "connection refused")
		assert.Equal(t, 9, s.MessageCount)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcd", 2))
	// Rune-aware, never splits a multi-byte character.
	assert.Equal(t, "héll", truncate("héllo", 4))
}

// TestRefreshSummaryEmptyConversation: with zero chat events the memory
// service is never called and the fixed placeholder is installed.
func TestRefreshSummaryEmptyConversation(t *testing.T) {
	mem := newFakeMemory()
	h := newTestHub(t, mem)

	ann := newFakeConn("conn-ann")
	register(h, ann, datatypes.RegisterRequest{Username: "Ann"})

	h.RefreshSummary()
	flush(h)

	assert.Equal(t, 0, mem.countSummaryCalls())

	updates := ann.framesByEvent(datatypes.EventSummaryUpdated)
	require.NotEmpty(t, updates)
	data := updates[0].Data.(*datatypes.SessionSummary)
	assert.Equal(t, "No messages yet. Start chatting to see a summary!", data.Short)
	assert.Equal(t, 0, data.MessageCount)
}

// TestRefreshSummarySingleFlight: refresh triggers that arrive while a
// generation is pending coalesce into that one collaborator call.
func TestRefreshSummarySingleFlight(t *testing.T) {
	mem := newFakeMemory()
	block := make(chan struct{})
	mem.summaryBlock = block
	mem.summaryText = "people said hello"

	h := newTestHub(t, mem)
	ann := newFakeConn("conn-ann")
	register(h, ann, datatypes.RegisterRequest{Username: "Ann"})

	// The chat itself triggers the first refresh, which now blocks inside
	// the collaborator call.
	h.Chat("conn-ann", datatypes.ChatRequest{Content: "hello"})
	flush(h)
	require.Eventually(t, func() bool {
		return mem.countSummaryCalls() == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.RefreshSummary()
	h.RefreshSummary()
	flush(h)
	assert.Equal(t, 1, mem.countSummaryCalls(), "pending generation must absorb refresh triggers")

	close(block)

	require.Eventually(t, func() bool {
		frames := ann.framesByEvent(datatypes.EventSummaryUpdated)
		for _, f := range frames {
			if s, ok := f.Data.(*datatypes.SessionSummary); ok && s.Full == "people said hello" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// The flag was released: the next trigger reaches the collaborator.
	h.RefreshSummary()
	require.Eventually(t, func() bool {
		return mem.countSummaryCalls() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

// TestGetSessionSummaryAfterCollaboratorFailure: the callback still gets a
// well-formed object with non-empty fields and the live message count.
func TestGetSessionSummaryAfterCollaboratorFailure(t *testing.T) {
	mem := newFakeMemory()
	mem.summaryErr = errors.New("memory service unreachable")

	h := newTestHub(t, mem)
	ann := newFakeConn("conn-ann")
	register(h, ann, datatypes.RegisterRequest{Username: "Ann"})

	h.Chat("conn-ann", datatypes.ChatRequest{Content: "hello"})
	flush(h)

	require.Eventually(t, func() bool {
		reply, ch := captureReply()
		h.GetSessionSummary(reply)
		resp := waitReply(t, ch).(datatypes.SessionSummary)
		return strings.Contains(resp.Full, "memory service unreachable")
	}, 2*time.Second, 10*time.Millisecond)

	reply, ch := captureReply()
	h.GetSessionSummary(reply)
	resp := waitReply(t, ch).(datatypes.SessionSummary)
	assert.NotEmpty(t, resp.Short)
	assert.NotEmpty(t, resp.Full)
	assert.Equal(t, 1, resp.MessageCount)
}

func TestGetSessionSummaryBeforeFirstGeneration(t *testing.T) {
	mem := newFakeMemory()
	h := newTestHub(t, mem)

	reply, ch := captureReply()
	h.GetSessionSummary(reply)
	resp := waitReply(t, ch).(datatypes.SessionSummary)
	assert.Equal(t, "No activity yet", resp.Short)
	assert.Equal(t, "No detailed summary available", resp.Full)
	assert.Equal(t, 0, resp.MessageCount)
}
