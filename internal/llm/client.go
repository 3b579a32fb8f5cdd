package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragline/ragline/internal/errors"
)

const chatTemperature = 0.2

// Generator produces an answer for a question given assembled context.
type Generator interface {
	// Generate calls the chat model. model overrides the configured
	// default when non-empty.
	Generate(ctx context.Context, question, contextText, model string) (string, error)

	// ModelName reports the configured default model.
	ModelName() string

	// Available reports whether the provider is reachable.
	Available(ctx context.Context) bool

	Close() error
}

// ChatClient talks to an OpenAI-compatible /chat/completions endpoint.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

var _ Generator = (*ChatClient)(nil)

// NewChatClient builds a client for baseURL (e.g.
// "https://api.openai.com/v1") with the given default model.
func NewChatClient(baseURL, apiKey, model string, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
}

func (c *ChatClient) Generate(ctx context.Context, question, contextText, model string) (string, error) {
	if model == "" {
		model = c.model
	}
	if model == "" {
		return "", errors.ChatError("no chat model configured", nil)
	}

	payload, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(question, contextText)},
		},
		Temperature: chatTemperature,
	})
	if err != nil {
		return "", errors.ChatError("marshal chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", errors.ChatError("build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.ChatError("chat request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.ChatError(
			fmt.Sprintf("chat endpoint returned status %d: %s",
				resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.ChatError("decode chat response", err)
	}
	if len(body.Choices) == 0 {
		return "", errors.ChatError("chat response has no choices", nil)
	}

	return body.Choices[0].Message.Content, nil
}

func (c *ChatClient) ModelName() string {
	return c.model
}

// Available probes the provider's models listing.
func (c *ChatClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *ChatClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
