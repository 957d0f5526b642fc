// Remote assistant client
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ideanator/ideanator/pkg/models"
)

var ErrAssistantNotConfigured = errors.New("assistant endpoint not configured")

// Assistant is the opaque remote collaborator: one request/response exchange
// per turn. Implementations must not retry; the user resends on failure.
type Assistant interface {
	Send(ctx context.Context, req models.AssistantRequest) (models.AssistantResponse, error)
}

// HTTPAssistant talks to the remote agent endpoint over JSON.
type HTTPAssistant struct {
	endpoint string
	client   *http.Client
}

// NewHTTPAssistant creates a client for the given endpoint URL.
func NewHTTPAssistant(endpoint string) *HTTPAssistant {
	return &HTTPAssistant{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Send posts the exchange and decodes the reply. Any transport error or
// non-2xx status is returned as an error; the caller surfaces it in-thread.
func (a *HTTPAssistant) Send(ctx context.Context, req models.AssistantRequest) (models.AssistantResponse, error) {
	var resp models.AssistantResponse

	if a.endpoint == "" {
		return resp, ErrAssistantNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("encode assistant request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return resp, fmt.Errorf("build assistant request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return resp, fmt.Errorf("contact assistant: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return resp, fmt.Errorf("read assistant response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return resp, fmt.Errorf("assistant returned %s: %s", httpResp.Status, errorText(data))
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, fmt.Errorf("decode assistant response: %w", err)
	}
	return resp, nil
}

// errorText pulls a human-readable description out of an error body.
func errorText(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}
