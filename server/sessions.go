package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/logging"
	"github.com/jonaddams/document-generator/internal/steps"
)

// FlowFactory creates the wizard flow for a new session.
type FlowFactory func() *steps.Flow

// Session is one API client's wizard. Requests against a session are
// serialised.
type Session struct {
	ID        string
	Flow      *steps.Flow
	Container *engine.StaticContainer

	op       sync.Mutex
	lastUsed atomic.Int64 // unix nanoseconds
}

func (sess *Session) touch(t time.Time) { sess.lastUsed.Store(t.UnixNano()) }

func (sess *Session) idleSince(cutoff time.Time) bool {
	return sess.lastUsed.Load() < cutoff.UnixNano()
}

// Sessions holds the live wizard sessions.
type Sessions struct {
	mu      sync.RWMutex
	items   map[string]*Session
	ttl     time.Duration
	newFlow FlowFactory
	logger  logging.Logger
	now     func() time.Time
}

// NewSessions creates an empty session table. Sessions idle longer than
// ttl are evicted by Sweep.
func NewSessions(newFlow FlowFactory, ttl time.Duration, logger logging.Logger) *Sessions {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Sessions{
		items:   make(map[string]*Session),
		ttl:     ttl,
		newFlow: newFlow,
		logger:  logger,
		now:     time.Now,
	}
}

// Create starts a new session.
func (s *Sessions) Create() *Session {
	id := uuid.NewString()
	sess := &Session{
		ID:        id,
		Flow:      s.newFlow(),
		Container: engine.NewStaticContainer(id, 100, 40),
	}
	sess.touch(s.now())
	s.mu.Lock()
	s.items[id] = sess
	s.mu.Unlock()
	s.logger.Info("session created", map[string]any{"session": id})
	return sess
}

// Get returns the session with the given id and marks it used.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	sess.touch(s.now())
	return sess, true
}

// Delete resets and removes a session.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.close()
	s.logger.Info("session deleted", map[string]any{"session": id})
	return true
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	var expired []*Session

	s.mu.Lock()
	for id, sess := range s.items {
		if sess.idleSince(cutoff) {
			expired = append(expired, sess)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
		s.logger.Info("session expired", map[string]any{"session": sess.ID})
	}
	return len(expired)
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (s *Sessions) RunJanitor(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Sweep()
		}
	}
}

// CloseAll resets and removes every session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range items {
		sess.close()
	}
}

func (sess *Session) close() {
	sess.op.Lock()
	defer sess.op.Unlock()
	sess.Container.Detach()
	sess.Flow.Close()
}
