package synthesize

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSynthesizeCachesClip(t *testing.T) {
	audio := []byte("mp3-bytes-here")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "el-key" {
			t.Errorf("xi-api-key = %q", got)
		}
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "Hello caller." {
			t.Errorf("text = %q", req.Text)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer srv.Close()

	cache := NewClipCache(time.Minute)
	c := NewClient(Config{APIKey: "el-key", VoiceID: "voice-1", BaseURL: srv.URL}, cache)

	id, err := c.Synthesize(context.Background(), "Hello caller.")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	clip, ok := cache.Get(id)
	if !ok {
		t.Fatalf("clip %q not cached", id)
	}
	if !bytes.Equal(clip.Data, audio) {
		t.Fatalf("clip data mismatch")
	}
	if clip.ContentType != "audio/mpeg" {
		t.Fatalf("ContentType = %q", clip.ContentType)
	}
}

func TestSynthesizeAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cache := NewClipCache(time.Minute)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, cache)
	if _, err := c.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatalf("Synthesize() error = nil, want failure on 429")
	}
	if cache.Len() != 0 {
		t.Fatalf("failed synthesis must not cache a clip")
	}
}

func TestClipCacheExpiry(t *testing.T) {
	cache := NewClipCache(time.Minute)
	id := cache.Put([]byte("x"), "audio/mpeg")

	cache.mu.Lock()
	clip := cache.clips[id]
	clip.storedAt = time.Now().Add(-2 * time.Minute)
	cache.clips[id] = clip
	cache.mu.Unlock()

	if _, ok := cache.Get(id); ok {
		t.Fatalf("expired clip still served")
	}
}

func TestClipCacheSweep(t *testing.T) {
	cache := NewClipCache(time.Minute)
	fresh := cache.Put([]byte("fresh"), "audio/mpeg")
	stale := cache.Put([]byte("stale"), "audio/mpeg")

	cache.mu.Lock()
	clip := cache.clips[stale]
	clip.storedAt = time.Now().Add(-2 * time.Minute)
	cache.clips[stale] = clip
	cache.mu.Unlock()

	if removed := cache.Sweep(); removed != 1 {
		t.Fatalf("Sweep() = %d, want 1", removed)
	}
	if _, ok := cache.Get(fresh); !ok {
		t.Fatalf("fresh clip evicted by sweep")
	}
}
