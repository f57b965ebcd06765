package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteConfig is the [remote] table of a manifest. Endpoint is a
// TensorFlow-Serving style REST predict URL.
type RemoteConfig struct {
	Endpoint        string `toml:"endpoint"`
	Timeout         string `toml:"timeout"`
	TokenInput      string `toml:"token_input"`
	AnnotationInput string `toml:"annotation_input"`
	Attempts        int    `toml:"attempts"`
}

// Remote scores fragments by POSTing them to a model server.
type Remote struct {
	name     string
	cfg      RemoteConfig
	client   *http.Client
	backoff  time.Duration
	attempts int
}

type predictRequest struct {
	Inputs map[string]any `json:"inputs"`
}

type predictResponse struct {
	Outputs json.RawMessage `json:"outputs"`
	Error   string          `json:"error"`
}

// NewRemote returns a client for cfg.Endpoint.
func NewRemote(name string, cfg RemoteConfig) (*Remote, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: %s: remote endpoint is empty", ErrArtifact, name)
	}
	timeout := 2 * time.Minute
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: timeout: %v", ErrArtifact, name, err)
		}
		timeout = d
	}
	if cfg.TokenInput == "" {
		cfg.TokenInput = "input-seq"
	}
	if cfg.AnnotationInput == "" {
		cfg.AnnotationInput = "input-annotations"
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Remote{
		name:     name,
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		backoff:  300 * time.Millisecond,
		attempts: attempts,
	}, nil
}

func (r *Remote) Name() string { return r.name }

// Predict sends the batch in one request. Rate limiting (429) and transport
// errors are retried with a linearly growing delay.
func (r *Remote) Predict(ctx context.Context, in Input) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Inputs: map[string]any{
		r.cfg.TokenInput:      in.Tokens,
		r.cfg.AnnotationInput: in.Annotations,
	}})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		scores, retry, err := r.post(ctx, body)
		if err == nil {
			if len(scores) != in.Len() {
				return nil, fmt.Errorf("%w: %s returned %d scores for %d fragments", ErrShape, r.name, len(scores), in.Len())
			}
			return scores, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
	return nil, fmt.Errorf("%s: giving up after %d attempts: %w", r.name, r.attempts, lastErr)
}

func (r *Remote) post(ctx context.Context, body []byte) ([]float64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "protpred/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("%s: model server returned 429", r.name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("%s: model server returned %s: %s", r.name, resp.Status, string(data))
	}

	var out predictResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("%s: failed to parse response: %v (body: %s)", r.name, err, string(data))
	}
	if out.Error != "" {
		return nil, false, fmt.Errorf("%s: model server error: %s", r.name, out.Error)
	}
	scores, err := flattenOutputs(out.Outputs)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrShape, r.name, err)
	}
	return scores, false, nil
}

// flattenOutputs accepts [p, ...] or [[p], ...].
func flattenOutputs(raw json.RawMessage) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("outputs: %v", err)
	}
	flat = make([]float64, len(nested))
	for i, row := range nested {
		if len(row) != 1 {
			return nil, fmt.Errorf("outputs[%d] has %d values, want 1", i, len(row))
		}
		flat[i] = row[0]
	}
	return flat, nil
}
