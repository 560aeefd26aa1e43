// Package generate produces the receptionist's spoken replies from caller
// utterances using the Gemini REST API.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/frontdesk/internal/receptionist"
	"github.com/antoniostano/frontdesk/internal/reliability"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Config selects the Gemini model and credentials.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the generateContent endpoint. Transient failures are
// retried once with backoff; anything else surfaces to the caller, which
// substitutes a spoken fallback.
type GeminiClient struct {
	cfg  Config
	http *http.Client
}

func NewGeminiClient(cfg Config) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &GeminiClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate returns the reply text for one prompt. An empty reply with a
// nil error means the model produced nothing speakable.
func (c *GeminiClient) Generate(ctx context.Context, prompt receptionist.PromptContext) (string, error) {
	payload, err := json.Marshal(generateRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: prompt.PersonaInstructions}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt.UserText()}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, 200*time.Millisecond, 2*time.Second)):
			}
		}

		text, retryable, err := c.doRequest(ctx, url, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *GeminiClient) doRequest(ctx context.Context, url string, payload []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", reliability.IsRetryableTransportError(err), err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", reliability.IsRetryableHTTPStatus(resp.StatusCode),
			fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", false, nil
	}
	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String()), false, nil
}
