package party

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeConn records every payload it receives.
type fakeConn struct {
	id string

	mu       sync.Mutex
	payloads [][]byte
	fail     error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

// events decodes the received payloads into generic maps.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.payloads))
	for _, p := range c.payloads {
		var m map[string]any
		if err := json.Unmarshal(p, &m); err != nil {
			t.Fatalf("invalid payload %s: %v", p, err)
		}
		out = append(out, m)
	}
	return out
}

// ofType returns the received events with the given type.
func (c *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, e := range c.events(t) {
		if e["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = nil
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestSession(t *testing.T) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := NewSession("guild-1", NewHub(zerolog.Nop()), zerolog.Nop(), WithClock(clock.Now))
	return s, clock
}

func joinAll(t *testing.T, s *Session, conns ...*fakeConn) {
	t.Helper()
	for _, c := range conns {
		if err := s.Join(context.Background(), c); err != nil {
			t.Fatalf("Join(%s): %v", c.id, err)
		}
	}
}

func track(title string, length int) Track {
	return Track{
		URL:    "https://example.com/" + title,
		Title:  title,
		Artist: "Artist",
		Length: length,
		Art:    "https://example.com/" + title + ".jpg",
	}
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	if !errors.Is(err, &Error{Kind: kind}) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}
