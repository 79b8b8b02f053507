package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPInitiator starts live sessions by POSTing {"chat_id": ...} to the
// channel provider's endpoint. The provider answers {"success", "url"}.
type HTTPInitiator struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

// NewHTTPInitiator creates an initiator for endpoint. authToken, when set,
// is sent as a bearer token.
func NewHTTPInitiator(endpoint, authToken string, timeout time.Duration) *HTTPInitiator {
	return &HTTPInitiator{
		endpoint:   endpoint,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type startRequest struct {
	ChatID uuid.UUID `json:"chat_id"`
}

// StartLiveSession implements Initiator.
func (h *HTTPInitiator) StartLiveSession(ctx context.Context, sessionID uuid.UUID) (LiveSession, error) {
	payload, err := json.Marshal(startRequest{ChatID: sessionID})
	if err != nil {
		return LiveSession{}, fmt.Errorf("failed to marshal live session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return LiveSession{}, fmt.Errorf("failed to create live session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.authToken)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return LiveSession{}, fmt.Errorf("live session request to %s failed: %w", h.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return LiveSession{}, fmt.Errorf("live session endpoint returned status %d: %s", resp.StatusCode, snippet)
	}

	var live LiveSession
	if err := json.NewDecoder(resp.Body).Decode(&live); err != nil {
		return LiveSession{}, fmt.Errorf("malformed live session response: %w", err)
	}
	return live, nil
}
