package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Compile-time interface satisfaction check
var _ Synthesizer = (*HTTPSynthesizer)(nil)

// Synthesizer converts text into an audio binary.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio []byte, contentType string, err error)
}

// synthRequest is the wire shape the synthesis service accepts.
type synthRequest struct {
	Text string `json:"text"`
}

// HTTPSynthesizer calls an external synthesis service over HTTP.
// A request carries {"text": ...}; a successful response is the audio
// binary. Any non-2xx status or transport failure is a synthesis failure.
type HTTPSynthesizer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSynthesizer creates a synthesizer for the given endpoint.
// The client carries no timeout: a hanging request simply leaves its
// session in Requesting until a newer session supersedes it.
func NewHTTPSynthesizer(endpoint string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	jsonBody, err := json.Marshal(synthRequest{Text: text})
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("synthesis service error (status %d): %s", resp.StatusCode, string(body))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	return body, contentType, nil
}
