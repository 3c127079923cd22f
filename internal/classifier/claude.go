package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/docoutline/internal/doctree"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// ClaudeClassifier asks the Anthropic Messages API to label heading lines
// and name their parents.
type ClaudeClassifier struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewClaudeClassifier returns a classifier for model. An empty endpoint
// selects the public Messages API.
func NewClaudeClassifier(apiKey, model, endpoint string) *ClaudeClassifier {
	if endpoint == "" {
		endpoint = anthropicEndpoint
	}
	return &ClaudeClassifier{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *ClaudeClassifier) Name() string { return "claude" }

// Model reports the configured model id.
func (c *ClaudeClassifier) Model() string { return c.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// headingAnswer is one element of the model's JSON reply. Lines that are
// not listed are body text.
type headingAnswer struct {
	Index  int           `json:"index"`
	Level  doctree.Level `json:"level"`
	Parent *int          `json:"parent"`
}

// ClassifyAndLink sends the document's lines in one prompt and converts the
// reply into a full Prediction.
func (c *ClaudeClassifier) ClassifyAndLink(ctx context.Context, req Request) (*Prediction, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildLinesPrompt(req)},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Backend: c.Name(), StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("empty response from claude")
	}

	text := stripCodeBlock(apiResp.Content[0].Text)
	var answers []headingAnswer
	if err := json.Unmarshal([]byte(text), &answers); err != nil {
		return nil, fmt.Errorf("parse headings json: %w (raw: %s)", err, truncate(text, 200))
	}
	return expandAnswers(answers, len(req.Lines))
}

// expandAnswers turns the sparse heading list into dense labels and
// parents. Unlisted lines are BODY with no parent.
func expandAnswers(answers []headingAnswer, n int) (*Prediction, error) {
	pred := &Prediction{
		Labels:  make([]doctree.Level, n),
		Parents: make([]int, n),
	}
	for i := range pred.Labels {
		pred.Labels[i] = doctree.LevelBody
		pred.Parents[i] = -1
	}
	for _, a := range answers {
		if a.Index < 0 || a.Index >= n {
			return nil, fmt.Errorf("%w: heading index %d out of range", ErrInvalidPrediction, a.Index)
		}
		pred.Labels[a.Index] = a.Level
		if a.Parent != nil {
			pred.Parents[a.Index] = *a.Parent
		}
	}
	if err := pred.Validate(n); err != nil {
		return nil, err
	}
	return pred, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases resources.
func (c *ClaudeClassifier) Close() {
	c.httpClient.CloseIdleConnections()
}
