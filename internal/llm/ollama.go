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

	"go.uber.org/zap"

	"ai-integration/internal/models"
)

const ollamaProvider = "llm"

// ModelInfo is one entry of the primary model catalog.
type ModelInfo struct {
	Model string `json:"model"`
}

// OllamaClient talks to an Ollama-compatible API: GET {base}/tags lists the
// installed models and POST {base}/chat runs a non-streaming completion.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllamaClient creates a client for baseURL, e.g. "http://localhost:11434/api".
func NewOllamaClient(baseURL string, timeout time.Duration, logger *zap.Logger) *OllamaClient {
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []models.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type chatResponse struct {
	Message *models.Message `json:"message"`
}

// ListModels returns the installed models in catalog order.
func (c *OllamaClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var tags tagsResponse
	if err := c.do(ctx, http.MethodGet, "/tags", nil, &tags); err != nil {
		return nil, err
	}
	out := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		out = append(out, ModelInfo{Model: m.Model})
	}
	return out, nil
}

// Chat sends messages to model and returns the assistant's reply.
func (c *OllamaClient) Chat(ctx context.Context, model string, messages []models.Message) (models.Message, error) {
	var resp chatResponse
	req := chatRequest{Model: model, Messages: messages, Stream: false}
	if err := c.do(ctx, http.MethodPost, "/chat", req, &resp); err != nil {
		return models.Message{}, err
	}
	if resp.Message == nil {
		return models.Message{}, models.Unavailable(ollamaProvider, fmt.Errorf("chat response has no message"))
	}
	return *resp.Message, nil
}

func (c *OllamaClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("LLM request failed", zap.String("path", path), zap.Error(err))
		return models.Unavailable(ollamaProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("LLM request returned non-OK status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return models.Unavailable(ollamaProvider, fmt.Errorf("%s returned status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.Unavailable(ollamaProvider, fmt.Errorf("malformed %s response: %w", path, err))
	}
	return nil
}
