// Package synthesize produces spoken audio clips for receptionist replies
// via the ElevenLabs text-to-speech API, with an in-process clip cache the
// HTTP layer serves back to the telephony provider.
package synthesize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Config selects the voice and credentials for synthesis.
type Config struct {
	APIKey  string
	VoiceID string
	ModelID string
	BaseURL string
	Timeout time.Duration
}

// Client synthesizes one reply at a time and parks the resulting clip in a
// cache for playback. Synthesis is best-effort: callers fall back to the
// provider's native voice when it fails.
type Client struct {
	cfg   Config
	http  *http.Client
	cache *ClipCache
}

func NewClient(cfg Config, cache *ClipCache) *Client {
	if cfg.VoiceID == "" {
		cfg.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_turbo_v2_5"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
	}
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize renders text to audio and returns the cached clip's ID.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(synthesisRequest{Text: text, ModelID: c.cfg.ModelID})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.cfg.BaseURL, c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("text-to-speech status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("text-to-speech returned no audio")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return c.cache.Put(audio, contentType), nil
}
