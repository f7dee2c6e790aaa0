package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultReplyText = "I understand your question. Let me help you with that."

// EndpointClient calls a hosted completion endpoint over plain JSON HTTP.
type EndpointClient struct {
	url        string
	httpClient *http.Client
}

// NewEndpointClient creates a client for the configured endpoint URL.
func NewEndpointClient(url string) (*EndpointClient, error) {
	if url == "" {
		return nil, errors.New("assistant endpoint URL is required")
	}

	return &EndpointClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Name returns the provider name.
func (c *EndpointClient) Name() string {
	return "endpoint"
}

type endpointRequest struct {
	Question            string   `json:"question"`
	Context             string   `json:"context"`
	ConversationHistory []Turn   `json:"conversationHistory"`
	UserRole            string   `json:"userRole"`
	UserModules         []string `json:"userModules"`
	CurrentMessage      string   `json:"currentMessage"`
	Prompt              string   `json:"prompt"`
}

// Complete posts the request and extracts the reply text. A non-2xx status
// is a hard failure. The reply may expose "text" or "message", or be a bare
// JSON string; any other shape degrades to a default text.
func (c *EndpointClient) Complete(ctx context.Context, req *Request) (string, error) {
	body, err := json.Marshal(endpointRequest{
		Question:            req.Question,
		Context:             req.Context,
		ConversationHistory: req.History,
		UserRole:            req.UserRole,
		UserModules:         req.UserModules,
		CurrentMessage:      req.Question,
		Prompt:              req.Prompt,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling assistant request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building assistant request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling assistant endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("assistant endpoint returned status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decoding assistant response: %w", err)
	}

	return extractReplyText(raw), nil
}

func extractReplyText(raw json.RawMessage) string {
	var obj struct {
		Text    string `json:"text"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Text != "" {
			return obj.Text
		}
		if obj.Message != "" {
			return obj.Message
		}
	}

	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil && bare != "" {
		return bare
	}

	return defaultReplyText
}
