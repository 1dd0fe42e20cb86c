package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"artscope/internal/domain"
	"artscope/internal/retry"
)

// HTTPExtractor asks a model server for image embeddings. The server receives
// {"model": ..., "image": <base64>} and answers {"embedding": [...]}.
type HTTPExtractor struct {
	endpoint  string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
	retry     retry.Options
}

type extractRequest struct {
	Model string `json:"model"`
	Image string `json:"image"`
}

type extractResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model,omitempty"`
	Error     *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// HTTPOptions configures an HTTPExtractor.
type HTTPOptions struct {
	Endpoint  string
	Model     string
	APIKeyEnv string
	// Dimension is the expected embedding length; 0 accepts any length.
	Dimension  int
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

func NewHTTPExtractor(opts HTTPOptions) (*HTTPExtractor, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("model server endpoint is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	var apiKey string
	if opts.APIKeyEnv != "" {
		apiKey = os.Getenv(opts.APIKeyEnv)
	}

	rc := retry.DefaultConfig()
	rc.MaxRetries = opts.MaxRetries

	return &HTTPExtractor{
		endpoint:  opts.Endpoint,
		apiKey:    apiKey,
		model:     opts.Model,
		dimension: opts.Dimension,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		retry: retry.Options{
			Config:       rc,
			ErrorChecker: retry.Transient,
			Logger:       opts.Logger,
			Name:         "model server",
		},
	}, nil
}

func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) (domain.Embedding, error) {
	if len(image) == 0 {
		return nil, &domain.ExtractionError{Model: e.model, Err: errors.New("empty image")}
	}

	jsonData, err := json.Marshal(extractRequest{
		Model: e.model,
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, &domain.ExtractionError{Model: e.model, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	emb, err := retry.Do(ctx, e.retry, func(int) (domain.Embedding, int, error) {
		return e.post(ctx, jsonData)
	})
	if err != nil {
		return nil, domain.AsExtractionError(e.model, err)
	}

	if e.dimension > 0 && len(emb) != e.dimension {
		return nil, &domain.ExtractionError{
			Model: e.model,
			Err:   fmt.Errorf("%w: model returned %d values, expected %d", domain.ErrDimensionMismatch, len(emb), e.dimension),
		}
	}
	return emb, nil
}

func (e *HTTPExtractor) post(ctx context.Context, jsonData []byte) (domain.Embedding, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, preview(body))
	}

	var out extractResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response (body: %s): %w", preview(body), err)
	}
	if out.Error != nil {
		return nil, resp.StatusCode, fmt.Errorf("model server error: %s", out.Error.Message)
	}
	if len(out.Embedding) == 0 {
		return nil, resp.StatusCode, errors.New("model server returned an empty embedding")
	}
	return out.Embedding, resp.StatusCode, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (e *HTTPExtractor) Dimension() int {
	return e.dimension
}

func (e *HTTPExtractor) ModelName() string {
	return e.model
}
