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

func TestParseTopics(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("extracts dash and dot bullets", func(t *testing.T) {
		answer := "Here is what came up:\n- travel plans\n• the weather\nnot a bullet\n-   \n- cooking"
		topics := parseTopics(answer, now)
		require.Len(t, topics, 3)
		assert.Equal(t, "travel plans", topics[0].Content)
		assert.Equal(t, "the weather", topics[1].Content)
		assert.Equal(t, "cooking", topics[2].Content)
		for _, topic := range topics {
			assert.True(t, topic.IsRecent)
		}
	})

	t.Run("caps at five topics", func(t *testing.T) {
		answer := "- a\n- b\n- c\n- d\n- e\n- f\n- g"
		topics := parseTopics(answer, now)
		assert.Len(t, topics, 5)
	})

	t.Run("no bullets yields empty list", func(t *testing.T) {
		topics := parseTopics("nothing was discussed", now)
		assert.Empty(t, topics)
	})
}

func TestClassifySentiment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"two positive no negative", "They are a great and helpful companion", "positive"},
		{"one each is neutral", "A good person but rude at times", "neutral"},
		{"no keywords is neutral", "We talk sometimes", "neutral"},
		{"more negative", "Terrible, awful conversations, though I like them", "negative"},
		{"case insensitive", "LOVE their WONDERFUL stories", "positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySentiment(tt.text))
		})
	}
}

// TestGetPeerKnowledge: one entry per participant; a failing participant
// keeps an entry with an empty topic list instead of aborting the batch.
func TestGetPeerKnowledge(t *testing.T) {
	mem := newFakeMemory()
	mem.askAnswers["Ann|"] = "- gardening\n- jazz"
	mem.askErrs["helper|"] = errors.New("peer not indexed")

	h := newTestHub(t, mem)
	register(h, newFakeConn("conn-ann"), datatypes.RegisterRequest{Username: "Ann"})
	register(h, newFakeConn("conn-agent"), datatypes.RegisterRequest{Username: "helper", Type: KindAgent})

	reply, ch := captureReply()
	h.GetPeerKnowledge(reply)
	result := waitReply(t, ch).([]datatypes.PeerKnowledge)

	require.Len(t, result, 2)
	byName := map[string]datatypes.PeerKnowledge{}
	for _, pk := range result {
		byName[pk.PeerName] = pk
	}

	ann := byName["Ann"]
	require.Len(t, ann.Topics, 2)
	assert.Equal(t, "gardening", ann.Topics[0].Content)
	assert.Equal(t, "conn-ann", ann.PeerID)

	helper := byName["helper"]
	assert.Empty(t, helper.Topics)
}

// TestGetPeerRelationships covers the pair-count properties: at most
// N*(N-1) entries, no self pairs, failed pairs omitted.
func TestGetPeerRelationships(t *testing.T) {
	mem := newFakeMemory()
	for _, key := range []string{
		"Ann|Bob", "Bob|Ann", "Ann|helper", "helper|Ann", "Bob|helper", "helper|Bob",
	} {
		mem.askAnswers[key] = "We have a great and friendly thing going."
	}
	mem.askErrs["Bob|helper"] = errors.New("timeout")

	h := newTestHub(t, mem)
	register(h, newFakeConn("conn-ann"), datatypes.RegisterRequest{Username: "Ann"})
	register(h, newFakeConn("conn-bob"), datatypes.RegisterRequest{Username: "Bob"})
	register(h, newFakeConn("conn-agent"), datatypes.RegisterRequest{Username: "helper", Type: KindAgent})

	reply, ch := captureReply()
	h.GetPeerRelationships(reply)
	result := waitReply(t, ch).([]datatypes.PeerRelationship)

	// 3 participants give 6 ordered pairs; the failed pair is omitted.
	require.Len(t, result, 5)
	for _, rel := range result {
		assert.NotEqual(t, rel.FromPeer, rel.ToPeer)
		assert.Equal(t, "positive", rel.Sentiment)
		assert.Equal(t, 0.5, rel.Strength)
	}
}

func TestGetPeerRelationshipsSmallSets(t *testing.T) {
	mem := newFakeMemory()
	h := newTestHub(t, mem)

	// Zero participants: empty, not nil-dereference.
	reply, ch := captureReply()
	h.GetPeerRelationships(reply)
	assert.Empty(t, waitReply(t, ch).([]datatypes.PeerRelationship))

	// One participant: still no pairs.
	register(h, newFakeConn("conn-ann"), datatypes.RegisterRequest{Username: "Ann"})
	reply, ch = captureReply()
	h.GetPeerRelationships(reply)
	assert.Empty(t, waitReply(t, ch).([]datatypes.PeerRelationship))
}

func TestGetPeerRelationshipsEmptyAnswer(t *testing.T) {
	mem := newFakeMemory()
	mem.askAnswers["Ann|Bob"] = ""
	mem.askAnswers["Bob|Ann"] = strings.Repeat("x", 150)

	h := newTestHub(t, mem)
	register(h, newFakeConn("conn-ann"), datatypes.RegisterRequest{Username: "Ann"})
	register(h, newFakeConn("conn-bob"), datatypes.RegisterRequest{Username: "Bob"})

	reply, ch := captureReply()
	h.GetPeerRelationships(reply)
	result := waitReply(t, ch).([]datatypes.PeerRelationship)
	require.Len(t, result, 2)

	byFrom := map[string]datatypes.PeerRelationship{}
	for _, rel := range result {
		byFrom[rel.FromPeer] = rel
	}
	assert.Equal(t, "No relationship data", byFrom["Ann"].Description)
	assert.Len(t, byFrom["Bob"].Description, 100)
}
