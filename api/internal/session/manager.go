package session

import (
	"context"
	"log"
	"sync"
	"time"
)

// Manager keeps one Session per client key (browser cookie, chat id).
// Sessions idle longer than the idle TTL are dropped by Sweep; when the
// session cap is reached the least recently used idle session makes room.
type Manager struct {
	newSession func(id string) *Session
	now        func() time.Time

	idleTTL     time.Duration // 0 keeps sessions forever
	maxSessions int           // 0 means no cap

	mu sync.Mutex
	m  map[string]*entry
}

type entry struct {
	s        *Session
	lastSeen time.Time
}

func NewManager(rec Recognizer, opts ...Option) *Manager {
	return NewManagerFunc(func(string) Recognizer { return rec }, opts...)
}

// NewManagerFunc builds each session's recognizer from its key.
func NewManagerFunc(recFor func(key string) Recognizer, opts ...Option) *Manager {
	return &Manager{
		newSession: func(id string) *Session { return New(id, recFor(id), opts...) },
		now:        time.Now,
		m:          make(map[string]*entry),
	}
}

// WithLimits sets the idle TTL and the session cap; zero disables either.
func (m *Manager) WithLimits(idleTTL time.Duration, maxSessions int) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleTTL, m.maxSessions = idleTTL, maxSessions
	return m
}

// Get returns the session for key, creating it on first use.
func (m *Manager) Get(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.m[key]; ok {
		e.lastSeen = now
		return e.s
	}
	if m.maxSessions > 0 && len(m.m) >= m.maxSessions {
		m.sweepLocked(now)
		if len(m.m) >= m.maxSessions {
			m.evictOldestLocked()
		}
	}
	e := &entry{s: m.newSession(key), lastSeen: now}
	m.m[key] = e
	return e.s
}

// Lookup returns an existing session and marks it used. Expired sessions are
// reported as missing.
func (m *Manager) Lookup(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.m[key]
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.expired(e, now) {
		delete(m.m, key)
		return nil, false
	}
	e.lastSeen = now
	return e.s, true
}

func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, key)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}

// Sweep drops every expired session and returns how many were dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				log.Printf("sessions: dropped %d idle, %d left", n, m.Len())
			}
		}
	}
}

// expired never holds for a session with an analysis in flight.
func (m *Manager) expired(e *entry, now time.Time) bool {
	if m.idleTTL <= 0 || now.Sub(e.lastSeen) < m.idleTTL {
		return false
	}
	return e.s.State() != StateInFlight
}

func (m *Manager) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range m.m {
		if m.expired(e, now) {
			delete(m.m, k)
			n++
		}
	}
	return n
}

// evictOldestLocked drops the least recently used session that is not analyzing.
func (m *Manager) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range m.m {
		if e.s.State() == StateInFlight {
			continue
		}
		if !found || e.lastSeen.Before(oldest) {
			oldestKey, oldest, found = k, e.lastSeen, true
		}
	}
	if found {
		delete(m.m, oldestKey)
	}
}
