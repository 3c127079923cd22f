package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError reports a non-2xx response from a classifier backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.StatusCode, truncate(e.Message, 200))
}

// HTTPClassifier posts the request as JSON to a model server and decodes a
// Prediction from the response body.
type HTTPClassifier struct {
	url        string
	httpClient *http.Client
}

// NewHTTPClassifier returns a classifier for endpoint. The per-call deadline
// comes from the context; timeout only bounds idle or hung connections.
func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClassifier{
		url:        endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClassifier) Name() string { return "http" }

// Model identifies the model server by its endpoint.
func (c *HTTPClassifier) Model() string { return c.url }

// ClassifyAndLink sends one request and returns the validated prediction.
func (c *HTTPClassifier) ClassifyAndLink(ctx context.Context, req Request) (*Prediction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("classifier call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Backend: c.Name(), StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var pred Prediction
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	if err := pred.Validate(len(req.Lines)); err != nil {
		return nil, err
	}
	return &pred, nil
}

// Close releases idle connections.
func (c *HTTPClassifier) Close() {
	c.httpClient.CloseIdleConnections()
}
