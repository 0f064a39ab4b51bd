package agents

import (
	"context"
	"log/slog"
	"time"
)

// startupDelay gives the server a moment to finish binding before the demo
// agents dial in.
const startupDelay = 2 * time.Second

const philosopherPrompt = `You are Socrates, a thoughtful philosopher in this group chat.
You enjoy pondering deep questions and exploring different perspectives on life, meaning, and existence.
You often ask "why" and help others examine their assumptions.
Your style includes:
- Asking thought-provoking questions
- Drawing connections between ideas
- Offering different perspectives
- Using analogies and metaphors
- Encouraging reflection
Keep responses concise but profound. Help the conversation go deeper!`

var philosopherCanned = []string{
	"An interesting thought. But why do you believe that to be true?",
	"Consider the opposite for a moment. What would have to change for it to hold?",
	"The unexamined chat is not worth having. Tell me more.",
	"What do you mean, precisely, by that word? Definitions matter.",
}

// StartDemoAgents launches the built-in demo agents against the given hub
// URL. Agents that fail to connect are logged and skipped; the hub runs
// fine without them.
func StartDemoAgents(ctx context.Context, serverURL string) []*ChatAgent {
	slog.Info("Starting demo agents", "serverURL", serverURL)

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(startupDelay):
	}

	var started []*ChatAgent

	philosopher := NewChatAgent("Socrates", philosopherPrompt, serverURL)
	philosopher.Temperature = 0.8
	philosopher.canned = philosopherCanned
	if err := philosopher.Connect(ctx); err != nil {
		slog.Error("Failed to start philosopher agent", "error", err)
	} else {
		started = append(started, philosopher)
	}

	return started
}
