// Package transcribe turns caller recordings into text via a Whisper-style
// speech-to-text HTTP API.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// maxRecordingBytes caps how much audio we will download for one turn.
// Recordings are bounded to ~30s of telephony audio, so anything larger
// indicates a provider problem.
const maxRecordingBytes = 8 << 20

// Config holds the credentials for the speech service and for fetching
// recordings from the telephony provider.
type Config struct {
	// APIURL is the transcription endpoint, e.g.
	// https://api.openai.com/v1/audio/transcriptions.
	APIURL string
	APIKey string
	Model  string

	// RecordingAuthUser and RecordingAuthPass authenticate recording
	// downloads from the telephony provider (account SID and auth token).
	RecordingAuthUser string
	RecordingAuthPass string

	Timeout time.Duration
}

// Client downloads a recording and submits it for transcription.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Transcribe fetches the audio at recordingURL and returns the recognized
// text, trimmed. An empty string with a nil error means the service heard
// nothing usable.
func (c *Client) Transcribe(ctx context.Context, recordingURL string) (string, error) {
	audio, err := c.fetchRecording(ctx, recordingURL)
	if err != nil {
		return "", fmt.Errorf("fetch recording: %w", err)
	}
	text, err := c.submit(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("speech-to-text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) fetchRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.RecordingAuthUser != "" {
		req.SetBasicAuth(c.cfg.RecordingAuthUser, c.cfg.RecordingAuthPass)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recording download status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes+1))
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("recording is empty")
	}
	if len(audio) > maxRecordingBytes {
		return nil, fmt.Errorf("recording exceeds %d bytes", maxRecordingBytes)
	}
	return audio, nil
}

func (c *Client) submit(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "recording.wav")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := w.WriteField("model", c.cfg.Model); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, firstLine(payload))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Text, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
