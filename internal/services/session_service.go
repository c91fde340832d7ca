// internal/services/session_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
)

// SessionService tracks the latest resolution cycle per principal. Each cycle
// gets a generation; only the newest one may publish, and a logout invalidates
// whatever was published before it.
//
// Generations come from a single counter shared by all principals, so a
// generation is never handed out twice even after a principal's entry is
// dropped.
type SessionService struct {
	mu       sync.Mutex
	next     uint64
	sessions map[ledger.Principal]*principalSession
	now      func() time.Time
}

type principalSession struct {
	latest    uint64
	published uint64
	state     *models.AuthorizationState
	lastSeen  time.Time
}

func NewSessionService() *SessionService {
	return &SessionService{
		sessions: make(map[ledger.Principal]*principalSession),
		now:      time.Now,
	}
}

// StartCleanup drops principals idle for longer than idle. It runs for the
// life of the process.
func (s *SessionService) StartCleanup(idle time.Duration) {
	if idle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			if n := s.sweep(s.now().Add(-idle)); n > 0 {
				logrus.WithField("dropped", n).Debug("Dropped idle sessions")
			}
		}
	}()
}

func (s *SessionService) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for principal, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, principal)
			dropped++
		}
	}
	return dropped
}

// Len reports how many principals are tracked.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// lookup returns the tracked entry and refreshes its idle timer.
func (s *SessionService) lookup(principal ledger.Principal) (*principalSession, bool) {
	sess, ok := s.sessions[principal]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

// Begin opens a resolution cycle and returns its generation.
func (s *SessionService) Begin(principal ledger.Principal) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(principal)
	if !ok {
		sess = &principalSession{lastSeen: s.now()}
		s.sessions[principal] = sess
	}
	s.next++
	sess.latest = s.next
	return sess.latest
}

// Publish stores the state of a cycle. It reports false when the cycle has been
// superseded or its caller went away; the state is then discarded.
func (s *SessionService) Publish(ctx context.Context, principal ledger.Principal, generation uint64, state models.AuthorizationState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(principal)
	if !ok || generation != sess.latest || ctx.Err() != nil {
		logrus.WithFields(logrus.Fields{
			"principal":  principal,
			"generation": generation,
		}).Debug("Discarding stale resolution")
		return false
	}

	state.Generation = generation
	sess.published = generation
	sess.state = &state
	return true
}

// Logout invalidates the current generation and forgets the principal. The
// caller should route the principal to the unauthenticated flow.
func (s *SessionService) Logout(principal ledger.Principal) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, principal)
	s.next++
	return s.next
}

func (s *SessionService) Current(principal ledger.Principal) (models.AuthorizationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(principal)
	if !ok || sess.state == nil {
		return models.AuthorizationState{}, false
	}
	return *sess.state, true
}

// IsCurrent reports whether generation is the one currently published.
func (s *SessionService) IsCurrent(principal ledger.Principal, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(principal)
	return ok && sess.state != nil && sess.published == generation
}
