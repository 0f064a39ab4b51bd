package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPClient talks to a memory service over its REST API. It implements
// Service.
type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	workspaceID string
	sessionID   string
}

// NewHTTPClient builds a client for the given session. The base URL comes
// from MEMORY_SERVICE_URL (default http://localhost:8000) and the workspace
// from MEMORY_WORKSPACE_ID (default "default").
func NewHTTPClient(sessionID string) (*HTTPClient, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("memory: sessionID must not be empty")
	}
	baseURL := os.Getenv("MEMORY_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	baseURL = strings.TrimSuffix(strings.Trim(baseURL, "\"' "), "/")

	workspaceID := os.Getenv("MEMORY_WORKSPACE_ID")
	if workspaceID == "" {
		workspaceID = "default"
	}

	return &HTTPClient{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		baseURL:     baseURL,
		workspaceID: workspaceID,
		sessionID:   sessionID,
	}, nil
}

// sessionPath builds a URL under the session resource.
func (c *HTTPClient) sessionPath(parts ...string) string {
	segments := []string{
		c.baseURL, "v1", "workspaces", url.PathEscape(c.workspaceID),
		"sessions", url.PathEscape(c.sessionID),
	}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

// doJSON performs a request with an optional JSON body and decodes the
// response into out when out is non-nil. Non-2xx statuses become errors
// carrying the response body.
func (c *HTTPClient) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("memory: failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("memory: failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("memory: request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("memory: failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("memory: %s %s returned status %d: %s",
			method, rawURL, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("memory: failed to decode response: %w", err)
		}
	}
	return nil
}

type peerPayload struct {
	Peer   string      `json:"peer"`
	Config *PeerConfig `json:"config,omitempty"`
}

// RegisterPeer implements Service.
func (c *HTTPClient) RegisterPeer(ctx context.Context, peer string, config *PeerConfig) error {
	return c.doJSON(ctx, http.MethodPost, c.sessionPath("peers"),
		peerPayload{Peer: peer, Config: config}, nil)
}

// RemovePeer implements Service.
func (c *HTTPClient) RemovePeer(ctx context.Context, peer string) error {
	return c.doJSON(ctx, http.MethodDelete, c.sessionPath("peers", peer), nil, nil)
}

// GetPeerConfig implements Service.
func (c *HTTPClient) GetPeerConfig(ctx context.Context, peer string) (*PeerConfig, error) {
	var config PeerConfig
	err := c.doJSON(ctx, http.MethodGet, c.sessionPath("peers", peer, "config"), nil, &config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// SetPeerConfig implements Service.
func (c *HTTPClient) SetPeerConfig(ctx context.Context, peer string, config PeerConfig) error {
	return c.doJSON(ctx, http.MethodPut, c.sessionPath("peers", peer, "config"), config, nil)
}

type ingestPayload struct {
	PeerID  string `json:"peer_id"`
	Content string `json:"content"`
}

// IngestMessage implements Service.
func (c *HTTPClient) IngestMessage(ctx context.Context, peer, content string) error {
	return c.doJSON(ctx, http.MethodPost, c.sessionPath("messages"),
		ingestPayload{PeerID: peer, Content: content}, nil)
}

type contextResponse struct {
	Summary struct {
		Content string `json:"content"`
	} `json:"summary"`
}

// GetSummary implements Service.
func (c *HTTPClient) GetSummary(ctx context.Context, tokenBudget int) (string, error) {
	rawURL := c.sessionPath("context") + "?summary=true&tokens=" + strconv.Itoa(tokenBudget)
	var resp contextResponse
	if err := c.doJSON(ctx, http.MethodGet, rawURL, nil, &resp); err != nil {
		return "", err
	}
	return resp.Summary.Content, nil
}

type chatPayload struct {
	Query  string `json:"query"`
	Target string `json:"target,omitempty"`
}

type chatResponse struct {
	Content string `json:"content"`
}

// AskPeer implements Service.
func (c *HTTPClient) AskPeer(ctx context.Context, peer, question, target string) (string, error) {
	var resp chatResponse
	err := c.doJSON(ctx, http.MethodPost, c.sessionPath("peers", peer, "chat"),
		chatPayload{Query: question, Target: target}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

type messagesResponse struct {
	Items []StoredMessage `json:"items"`
}

// ListMessages implements Service.
func (c *HTTPClient) ListMessages(ctx context.Context) ([]StoredMessage, error) {
	var resp messagesResponse
	if err := c.doJSON(ctx, http.MethodGet, c.sessionPath("messages"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
