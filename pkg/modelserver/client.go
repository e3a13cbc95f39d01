// Package modelserver is a client for an external risk classifier served over
// HTTP. The server exposes POST /predict returning the predicted label and the
// per-class probabilities, and GET /health.
package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned when the server reports that no model is loaded
// (HTTP 503).
var ErrUnavailable = eris.New("modelserver: model unavailable")

// Client performs model server operations.
type Client interface {
	Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error)
	Health(ctx context.Context) error
}

// PredictRequest is a single feature vector.
type PredictRequest struct {
	PopDensity  float64 `json:"pop_density"`
	DistTPS     float64 `json:"dist_tps"`
	WasteVolume float64 `json:"waste_volume"`
	RoadAccess  string  `json:"road_access"`
	ZoneType    string  `json:"zone_type"`
}

// PredictResponse carries the server's decision and class distribution.
type PredictResponse struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a model server client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(20, 20),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Predict(ctx context.Context, in PredictRequest) (*PredictResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "modelserver: marshal request")
	}

	respBody, err := c.do(ctx, http.MethodPost, "/predict", body)
	if err != nil {
		return nil, err
	}

	var result PredictResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "modelserver: unmarshal response")
	}
	if result.Label == "" {
		return nil, eris.New("modelserver: response has no label")
	}
	return &result, nil
}

func (c *httpClient) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "modelserver: rate limit wait")
		}
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, eris.Wrap(err, "modelserver: create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "modelserver: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "modelserver: read response")
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, eris.Wrapf(ErrUnavailable, "modelserver: %s %s", method, path)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("modelserver: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
