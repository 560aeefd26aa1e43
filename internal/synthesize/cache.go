package synthesize

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clip is one synthesized audio payload awaiting playback.
type Clip struct {
	Data        []byte
	ContentType string
	storedAt    time.Time
}

// ClipCache holds synthesized clips until the telephony provider fetches
// them. Clips are small and short-lived; anything older than the TTL is
// dropped on the next sweep.
type ClipCache struct {
	mu    sync.Mutex
	clips map[string]Clip
	ttl   time.Duration
}

func NewClipCache(ttl time.Duration) *ClipCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ClipCache{
		clips: make(map[string]Clip),
		ttl:   ttl,
	}
}

// Put stores a clip and returns its ID.
func (c *ClipCache) Put(data []byte, contentType string) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.clips[id] = Clip{Data: data, ContentType: contentType, storedAt: time.Now()}
	c.mu.Unlock()
	return id
}

// Get returns the clip for id, or ok=false if it is unknown or expired.
func (c *ClipCache) Get(id string) (Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clip, ok := c.clips[id]
	if !ok {
		return Clip{}, false
	}
	if time.Since(clip.storedAt) > c.ttl {
		delete(c.clips, id)
		return Clip{}, false
	}
	return clip, true
}

// Sweep drops expired clips and reports how many were removed.
func (c *ClipCache) Sweep() int {
	cutoff := time.Now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, clip := range c.clips {
		if clip.storedAt.Before(cutoff) {
			delete(c.clips, id)
			removed++
		}
	}
	return removed
}

// Len reports how many clips are currently cached, expired or not.
func (c *ClipCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clips)
}
