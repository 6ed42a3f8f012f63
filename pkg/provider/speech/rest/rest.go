// Package rest implements [speech.Synthesizer] against the remote synthesis
// service's JSON API. Synthesis is a single POST per utterance segment; the
// response carries the audio as a base64-encoded WAV payload.
package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxboard/voxboard/pkg/provider/speech"
)

// Compile-time interface assertion.
var _ speech.Synthesizer = (*Provider)(nil)

const (
	synthesizeEndpoint = "/api/speech/synthesize"
	defaultTimeout     = 30 * time.Second
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. The configured timeout
// on the replacement client is respected as-is.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements [speech.Synthesizer] backed by the synthesis service's
// REST API. All methods are safe for concurrent use.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider targeting the synthesis service at baseURL
// (e.g., "http://localhost:8000"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("speech: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesizeRequest is the JSON body sent to the synthesis endpoint.
type synthesizeRequest struct {
	Text          string `json:"text"`
	RoutingTarget string `json:"routing_target"`
}

// synthesizeResponse is the JSON body returned on success.
type synthesizeResponse struct {
	AudioData string `json:"audio_data"` // base64-encoded WAV
}

// errorResponse is the JSON body returned with a non-2xx status.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Synthesize implements [speech.Synthesizer].
func (p *Provider) Synthesize(ctx context.Context, text string, target speech.RoutingTarget) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:          text,
		RoutingTarget: string(target),
	})
	if err != nil {
		return nil, fmt.Errorf("speech: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+synthesizeEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("speech: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("speech: decode response: %w", err)
	}
	if sr.AudioData == "" {
		return nil, errors.New("speech: response carried no audio_data")
	}

	wav, err := base64.StdEncoding.DecodeString(sr.AudioData)
	if err != nil {
		return nil, fmt.Errorf("speech: decode audio_data: %w", err)
	}
	return wav, nil
}

// decodeError turns a non-2xx response into an error, preferring the service's
// own detail message when the body parses as JSON.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Detail != "" {
		return fmt.Errorf("speech: service returned %d: %s", resp.StatusCode, er.Detail)
	}
	return fmt.Errorf("speech: service returned unexpected status %d", resp.StatusCode)
}
