// Package agents contains the built-in demo chat agents: lightweight
// WebSocket clients that register as agent participants, watch the
// conversation, and reply in a fixed persona. Replies come from an
// OpenAI-compatible endpoint when OPENAI_API_KEY is set; without one the
// agent falls back to canned persona lines so the demo works offline.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	openai "github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/huddle/datatypes"
)

// transcriptWindow is how many recent turns the agent feeds back to the
// model as context.
const transcriptWindow = 20

// ChatAgent is a single agent participant.
type ChatAgent struct {
	Name           string
	Prompt         string
	Temperature    float32
	ResponseLength int
	Capabilities   []string

	serverURL string
	llm       *openai.Client
	model     string

	mu         sync.Mutex
	socket     *websocket.Conn
	transcript []openai.ChatCompletionMessage
	cannedIdx  int
	canned     []string
}

// NewChatAgent builds an agent with the given persona. serverURL is the
// hub's HTTP base URL.
func NewChatAgent(name, prompt, serverURL string) *ChatAgent {
	agent := &ChatAgent{
		Name:           name,
		Prompt:         prompt,
		Temperature:    0.7,
		ResponseLength: 150,
		Capabilities:   []string{"conversation"},
		serverURL:      strings.TrimSuffix(serverURL, "/"),
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config := openai.DefaultConfig(key)
		if base := os.Getenv("OPENAI_API_BASE"); base != "" {
			config.BaseURL = base
		}
		agent.llm = openai.NewClientWithConfig(config)
	}
	agent.model = os.Getenv("AGENT_MODEL")
	if agent.model == "" {
		agent.model = openai.GPT4oMini
	}
	return agent
}

// Connect dials the hub, registers as an agent, and starts the read loop.
func (a *ChatAgent) Connect(ctx context.Context) error {
	wsURL, err := hubWebSocketURL(a.serverURL)
	if err != nil {
		return err
	}
	socket, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("agents: failed to dial hub at %s: %w", wsURL, err)
	}
	a.mu.Lock()
	a.socket = socket
	a.mu.Unlock()

	if err := a.sendEnvelope(datatypes.EventRegister, datatypes.RegisterRequest{
		Username:     a.Name,
		Type:         "agent",
		Capabilities: a.Capabilities,
	}); err != nil {
		socket.Close()
		return err
	}

	go a.readLoop(ctx, socket)
	slog.Info("Demo agent connected", "agent", a.Name)
	return nil
}

// Close tears down the connection.
func (a *ChatAgent) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.socket != nil {
		a.socket.Close()
		a.socket = nil
	}
}

func hubWebSocketURL(serverURL string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("agents: invalid server URL %q: %w", serverURL, err)
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = "/v1/hub/ws"
	return parsed.String(), nil
}

func (a *ChatAgent) sendEnvelope(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("agents: failed to marshal %s payload: %w", event, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.socket == nil {
		return fmt.Errorf("agents: not connected")
	}
	return a.socket.WriteJSON(datatypes.Envelope{Event: event, Data: payload})
}

// readLoop consumes server frames until the socket closes. Only chat
// messages from humans trigger a reply; everything else just lands in the
// transcript so the model has context.
func (a *ChatAgent) readLoop(ctx context.Context, socket *websocket.Conn) {
	for {
		var env datatypes.Envelope
		if err := socket.ReadJSON(&env); err != nil {
			slog.Info("Demo agent disconnected", "agent", a.Name, "error", err.Error())
			return
		}
		if env.Event != datatypes.EventMessage {
			continue
		}
		var msg datatypes.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			continue
		}
		a.observe(msg)
		if a.shouldReply(msg) {
			a.reply(ctx, msg)
		}
	}
}

// observe appends a message to the rolling transcript.
func (a *ChatAgent) observe(msg datatypes.Message) {
	if msg.Type != datatypes.MessageChat && msg.Type != datatypes.MessageAgentResponse {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	role := openai.ChatMessageRoleUser
	if msg.Username == a.Name {
		role = openai.ChatMessageRoleAssistant
	}
	a.transcript = append(a.transcript, openai.ChatCompletionMessage{
		Role:    role,
		Content: fmt.Sprintf("%s: %s", msg.Username, msg.Content),
	})
	if len(a.transcript) > transcriptWindow {
		a.transcript = a.transcript[len(a.transcript)-transcriptWindow:]
	}
}

// shouldReply keeps two agents from talking to each other forever: only
// chat messages authored by humans get a response.
func (a *ChatAgent) shouldReply(msg datatypes.Message) bool {
	if msg.Type != datatypes.MessageChat || msg.Username == a.Name {
		return false
	}
	userType, _ := msg.Metadata["userType"].(string)
	return userType == "human"
}

// reply generates and sends an agent_response for the triggering message.
func (a *ChatAgent) reply(ctx context.Context, msg datatypes.Message) {
	answer := a.generate(ctx)
	if answer == "" {
		return
	}
	confidence := 0.9
	err := a.sendEnvelope(datatypes.EventAgentResponse, datatypes.AgentResponseRequest{
		Response:          answer,
		ResponseType:      "general",
		Confidence:        &confidence,
		ReferencedMessage: msg.ID,
	})
	if err != nil {
		slog.Warn("Demo agent failed to send response", "agent", a.Name, "error", err)
	}
}

// generate produces the next persona line, via the LLM when configured.
func (a *ChatAgent) generate(ctx context.Context) string {
	if a.llm == nil {
		return a.nextCannedLine()
	}

	a.mu.Lock()
	messages := make([]openai.ChatCompletionMessage, 0, len(a.transcript)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.Prompt,
	})
	messages = append(messages, a.transcript...)
	a.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	resp, err := a.llm.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: a.Temperature,
		MaxTokens:   a.ResponseLength,
	})
	if err != nil || len(resp.Choices) == 0 {
		slog.Warn("Demo agent LLM call failed, using canned line",
			"agent", a.Name, "error", err)
		return a.nextCannedLine()
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// nextCannedLine cycles through the persona's offline lines.
func (a *ChatAgent) nextCannedLine() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.canned) == 0 {
		return ""
	}
	line := a.canned[a.cannedIdx%len(a.canned)]
	a.cannedIdx++
	return line
}
