// Package memory provides the client for the conversational-memory service:
// the external collaborator that tracks session peers, ingests chat turns,
// produces contextual summaries, and answers natural-language questions
// about what each peer knows.
//
// The hub treats the service as a remote capability. Every call here can
// fail or hang; callers are expected to run the slow ones off the hub's
// event loop and to degrade gracefully when they error.
package memory

import "context"

// PeerConfig holds the per-peer observation settings stored upstream.
// Nil pointer fields mean "no stored preference".
type PeerConfig struct {
	ObserveMe     *bool `json:"observe_me,omitempty"`
	ObserveOthers *bool `json:"observe_others,omitempty"`
}

// StoredMessage is a message previously persisted in the session, returned
// when seeding the hub's history from an existing session id.
type StoredMessage struct {
	ID        string `json:"id"`
	PeerID    string `json:"peer_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Service is the conversational-memory backend.
type Service interface {
	// RegisterPeer adds a peer to the session. A nil config keeps the
	// service defaults.
	RegisterPeer(ctx context.Context, peer string, config *PeerConfig) error

	// RemovePeer detaches a peer from the session.
	RemovePeer(ctx context.Context, peer string) error

	// GetPeerConfig fetches the peer's stored observation settings.
	GetPeerConfig(ctx context.Context, peer string) (*PeerConfig, error)

	// SetPeerConfig replaces the peer's stored observation settings.
	SetPeerConfig(ctx context.Context, peer string, config PeerConfig) error

	// IngestMessage records a chat turn authored by peer.
	IngestMessage(ctx context.Context, peer, content string) error

	// GetSummary asks for a conversation summary bounded by tokenBudget.
	// An empty string with a nil error means the service has not produced
	// a summary yet.
	GetSummary(ctx context.Context, tokenBudget int) (string, error)

	// AskPeer poses a free-text question from peer's perspective. A
	// non-empty target scopes the question to that other peer.
	AskPeer(ctx context.Context, peer, question, target string) (string, error)

	// ListMessages returns the session's persisted messages in order.
	ListMessages(ctx context.Context) ([]StoredMessage, error)
}
