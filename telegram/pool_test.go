package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool := NewPool(log.NewNopLogger())
	pool.Add("one", &MockClient{})
	pool.Add("two", &MockClient{})

	ctx := context.Background()
	a, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name == b.Name {
		t.Errorf("expected two distinct sessions, got %q twice", a.Name)
	}

	// Both in use: acquisition should block until the context expires
	shortCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(shortCtx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	a.Release()
	c, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != a.Name {
		t.Errorf("expected released session %q, got %q", a.Name, c.Name)
	}
}

func TestPoolLeastRecentlyUsed(t *testing.T) {
	pool := NewPool(log.NewNopLogger())
	pool.Add("one", &MockClient{})
	pool.Add("two", &MockClient{})

	ctx := context.Background()
	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	first.Release()

	second, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Name == first.Name {
		t.Errorf("expected the fresher session, got %q again", second.Name)
	}
}

func TestPoolBansAndFloods(t *testing.T) {
	pool := NewPool(log.NewNopLogger())
	now := time.Now()
	pool.now = func() time.Time { return now }
	one := pool.Add("one", &MockClient{})
	two := pool.Add("two", &MockClient{})

	ctx := context.Background()

	one.FloodWait(time.Hour)
	s, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "two" {
		t.Errorf("expected the non-flooded session, got %q", s.Name)
	}
	s.Release()

	// Flood expires
	now = now.Add(2 * time.Hour)
	one.lastUsed = now // make "two" the LRU choice otherwise
	s, err = pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s.Release()

	one.MarkBanned()
	two.MarkBanned()
	if _, err := pool.Acquire(ctx); err != ErrNoSessions {
		t.Errorf("expected ErrNoSessions, got %v", err)
	}
}
