// Package llm provides a client for an OpenAI-compatible
// chat-completion endpoint, in both blocking and streaming form.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one chat message in a completion request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCallFragment is one partial tool invocation as it arrives on the
// stream. Arguments is a fragment of a JSON string; fragments sharing
// an Index belong to the same call and are concatenated by the
// receiving client, not by us.
type ToolCallFragment struct {
	Index    *int             `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type"`
	Function FunctionFragment `json:"function"`
}

// FunctionFragment carries the function name and a partial arguments string
type FunctionFragment struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// StreamHandler receives stream events in arrival order. Returning an
// error aborts the stream.
type StreamHandler struct {
	OnContent   func(token string) error
	OnToolCalls func(calls []ToolCallFragment) error
}

// Client calls an OpenAI-compatible /chat/completions API
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a chat-completion client. timeout is a defensive
// ceiling on any single request, streaming included.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string             `json:"content"`
			ToolCalls []ToolCallFragment `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete performs a non-streaming completion and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	resp, err := c.post(ctx, completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream performs a streaming completion and delivers each content
// token and tool-call fragment to handler as it is parsed off the
// wire. Fragments are forwarded in arrival order without buffering.
func (c *Client) Stream(ctx context.Context, messages []Message, temperature float64, handler StreamHandler) error {
	resp, err := c.post(ctx, completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		Stream:      true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Skip malformed keep-alive noise rather than killing the stream.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" && handler.OnContent != nil {
			if err := handler.OnContent(delta.Content); err != nil {
				return err
			}
		}
		if len(delta.ToolCalls) > 0 && handler.OnToolCalls != nil {
			if err := handler.OnToolCalls(delta.ToolCalls); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read completion stream: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, body completionRequest) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp, nil
}
