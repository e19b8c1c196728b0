package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// HTTPConfig describes a speaker model served out of process.
type HTTPConfig struct {
	URL        string
	APIKeyEnv  string // optional; sent as a bearer token
	SampleRate int
	Dimension  int
	Timeout    time.Duration
}

// HTTPEncoder calls a remote model server:
//
//	POST {URL}  {"samples": [...], "sample_rate": 16000}
//	200         {"embedding": [...]}
type HTTPEncoder struct {
	url        string
	apiKey     string
	sampleRate int
	dimension  int
	client     *http.Client
}

type encodeRequest struct {
	Samples    []float64 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

type encodeResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func NewHTTPEncoder(cfg HTTPConfig) (*HTTPEncoder, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("encoder URL is required")
	}

	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &HTTPEncoder{
		url:        cfg.URL,
		apiKey:     apiKey,
		sampleRate: cfg.SampleRate,
		dimension:  cfg.Dimension,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (e *HTTPEncoder) SampleRate() int { return e.sampleRate }
func (e *HTTPEncoder) Dimension() int  { return e.dimension }

func (e *HTTPEncoder) Encode(ctx context.Context, samples []float64, sampleRate int) ([]float64, error) {
	body, err := json.Marshal(encodeRequest{Samples: samples, SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result encodeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("encoder returned status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder returned status %d: %s", resp.StatusCode, result.Error)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("encoder error: %s", result.Error)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("encoder returned an empty embedding")
	}

	return result.Embedding, nil
}
