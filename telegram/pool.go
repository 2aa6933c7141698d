package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
)

var (
	// ErrNoSessions means every session in the pool is banned; the
	// pool cannot recover without operator intervention.
	ErrNoSessions = errors.New("no usable telegram sessions left in pool")
)

const acquirePollPeriod = 250 * time.Millisecond

// Session is one Telegram account held by the pool. Its state fields
// are guarded by the pool's mutex.
type Session struct {
	Name   string
	Client Client

	pool        *Pool
	banned      bool
	floodedTill time.Time
	inUse       bool
	lastUsed    time.Time
}

// MarkBanned retires the session; it will never be handed out again.
func (s *Session) MarkBanned() {
	s.pool.mx.Lock()
	defer s.pool.mx.Unlock()
	s.banned = true
	s.pool.logger.Log("session", s.Name, "banned", true)
}

// FloodWait makes the session unavailable for the given duration.
func (s *Session) FloodWait(d time.Duration) {
	s.pool.mx.Lock()
	defer s.pool.mx.Unlock()
	s.floodedTill = s.pool.now().Add(d)
	s.pool.logger.Log("session", s.Name, "flood_wait", d.String())
}

// Release returns the session to the pool.
func (s *Session) Release() {
	s.pool.mx.Lock()
	defer s.pool.mx.Unlock()
	s.inUse = false
}

// Pool hands out account sessions, least recently used first.
type Pool struct {
	mx       sync.Mutex
	sessions []*Session
	logger   log.Logger
	now      func() time.Time
}

func NewPool(logger log.Logger) *Pool {
	return &Pool{
		logger: logger,
		now:    time.Now,
	}
}

// Add registers an account session with the pool.
func (p *Pool) Add(name string, client Client) *Session {
	p.mx.Lock()
	defer p.mx.Unlock()
	s := &Session{
		Name:   name,
		Client: client,
		pool:   p,
	}
	p.sessions = append(p.sessions, s)
	return s
}

// Acquire blocks until a session is free (or the context is done).
// The caller must Release the session when finished with it. If every
// session has been banned, it fails immediately with ErrNoSessions.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		s, err := p.tryAcquire()
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquirePollPeriod):
		}
	}
}

func (p *Pool) tryAcquire() (*Session, error) {
	p.mx.Lock()
	defer p.mx.Unlock()

	var (
		alive     bool
		candidate *Session
	)
	now := p.now()
	for _, s := range p.sessions {
		if s.banned {
			continue
		}
		alive = true
		if s.inUse || now.Before(s.floodedTill) {
			continue
		}
		if candidate == nil || s.lastUsed.Before(candidate.lastUsed) {
			candidate = s
		}
	}
	if !alive {
		return nil, ErrNoSessions
	}
	if candidate == nil {
		return nil, nil // all busy or flooded; caller should wait
	}
	candidate.inUse = true
	candidate.lastUsed = now
	return candidate, nil
}
