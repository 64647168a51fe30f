package relay

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"
)

// defaultOriginTTL bounds how long an origin marker waits for its echo.
// Local broker round trips are milliseconds; five seconds absorbs a
// congested remote link without letting the marker set grow unbounded.
const defaultOriginTTL = 5 * time.Second

// side identifies which broker a message arrived on or was published to.
type side int

const (
	sideLocal side = iota
	sideRemote
)

// String returns the side name used in logs.
func (s side) String() string {
	if s == sideLocal {
		return "local"
	}
	return "remote"
}

// originKey identifies one published message for echo detection.
// Payloads are hashed so retained telemetry bursts don't pin large
// payloads in memory.
type originKey struct {
	side   side
	topic  string
	digest [sha256.Size]byte
}

// originTracker records messages the relay has published so their
// broker-side echoes can be recognized and dropped.
//
// Thread Safety: all methods are safe for concurrent use.
type originTracker struct {
	mu      sync.Mutex
	entries map[originKey]time.Time
	ttl     time.Duration
}

func newOriginTracker(ttl time.Duration) *originTracker {
	if ttl <= 0 {
		ttl = defaultOriginTTL
	}
	return &originTracker{
		entries: make(map[originKey]time.Time),
		ttl:     ttl,
	}
}

// Mark records that the relay is about to publish this message to the
// given side. Called before the publish so the echo cannot outrun the
// marker.
func (t *originTracker) Mark(s side, topic string, payload []byte) {
	key := originKey{side: s, topic: topic, digest: sha256.Sum256(payload)}
	t.mu.Lock()
	t.entries[key] = time.Now().Add(t.ttl)
	t.mu.Unlock()
}

// Consume reports whether this message matches a live origin marker on
// the given side, removing the marker if so. A true result means the
// message is the relay's own publish echoed back by the broker.
func (t *originTracker) Consume(s side, topic string, payload []byte) bool {
	key := originKey{side: s, topic: topic, digest: sha256.Sum256(payload)}
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, ok := t.entries[key]
	if !ok {
		return false
	}
	delete(t.entries, key)
	return time.Now().Before(expiry)
}

// Len returns the number of live markers. Used by tests and stats.
func (t *originTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// janitor sweeps expired markers until the context is cancelled.
// Markers whose echo never arrived (message dropped by the broker,
// connection lost mid-flight) would otherwise accumulate forever.
func (t *originTracker) janitor(ctx context.Context) {
	ticker := time.NewTicker(t.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			t.mu.Lock()
			for key, expiry := range t.entries {
				if now.After(expiry) {
					delete(t.entries, key)
				}
			}
			t.mu.Unlock()
		}
	}
}
