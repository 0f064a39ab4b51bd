package datatypes

// SessionSummary is the cached conversation summary pushed to clients on
// every refresh and returned from get_session_summary.
type SessionSummary struct {
	Short        string `json:"short"`
	Full         string `json:"full"`
	MessageCount int    `json:"messageCount"`
	LastUpdated  string `json:"lastUpdated"`
}

// KnowledgeItem is a single topic the memory service attributes to a
// participant.
type KnowledgeItem struct {
	Content   string `json:"content"`
	IsRecent  bool   `json:"isRecent"`
	Timestamp string `json:"timestamp"`
}

// PeerKnowledge is the per-participant result of the knowledge fan-out.
type PeerKnowledge struct {
	PeerID   string          `json:"peerId"`
	PeerName string          `json:"peerName"`
	Topics   []KnowledgeItem `json:"topics"`
}

// PeerRelationship is one directed edge of the relationship fan-out.
type PeerRelationship struct {
	FromPeer    string  `json:"fromPeer"`
	ToPeer      string  `json:"toPeer"`
	Sentiment   string  `json:"sentiment"`
	Description string  `json:"description"`
	Strength    float64 `json:"strength"`
}

// AgentContext is the state snapshot attached to agent side-channel
// notifications.
type AgentContext struct {
	TotalUsers    int       `json:"totalUsers"`
	TotalAgents   int       `json:"totalAgents"`
	RecentHistory []Message `json:"recentHistory"`
}

// AgentEvent is the side-channel notification delivered to agent
// participants only.
type AgentEvent struct {
	EventType string       `json:"eventType"`
	Message   Message      `json:"message"`
	Context   AgentContext `json:"context"`
}
