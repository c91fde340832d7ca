// internal/services/challenge_service.go
package services

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ntptrace/trace-backend/internal/ledger"
)

const defaultChallengeTTL = 5 * time.Minute

var (
	ErrChallengeMissing = errors.New("no pending sign-in challenge")
	ErrChallengeExpired = errors.New("sign-in challenge expired")
)

// Challenge is the message a wallet signs to prove it controls an address.
type Challenge struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeService hands out single-use sign-in nonces, one pending per
// principal. A new request replaces the previous nonce.
type ChallengeService struct {
	mu      sync.Mutex
	pending map[ledger.Principal]Challenge
	domain  string
	ttl     time.Duration
	now     func() time.Time
}

func NewChallengeService(frontendURL string, ttl time.Duration) *ChallengeService {
	if ttl <= 0 {
		ttl = defaultChallengeTTL
	}

	domain := frontendURL
	if u, err := url.Parse(frontendURL); err == nil && u.Host != "" {
		domain = u.Host
	}

	return &ChallengeService{
		pending: make(map[ledger.Principal]Challenge),
		domain:  domain,
		ttl:     ttl,
		now:     time.Now,
	}
}

// StartCleanup drops expired nonces every minute for the life of the process.
func (s *ChallengeService) StartCleanup() {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			if n := s.sweep(); n > 0 {
				logrus.WithField("dropped", n).Debug("Dropped expired sign-in challenges")
			}
		}
	}()
}

func (s *ChallengeService) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dropped := 0
	for principal, c := range s.pending {
		if now.After(c.ExpiresAt) {
			delete(s.pending, principal)
			dropped++
		}
	}
	return dropped
}

func (s *ChallengeService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *ChallengeService) Issue(principal ledger.Principal) Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	nonce := uuid.NewString()
	c := Challenge{
		Address: principal.String(),
		Nonce:   nonce,
		Message: fmt.Sprintf("%s wants you to sign in with your Ethereum account:\n%s\n\nNonce: %s\nIssued At: %s",
			s.domain, principal, nonce, now.Format(time.RFC3339)),
		ExpiresAt: now.Add(s.ttl),
	}
	s.pending[principal] = c
	return c
}

// Redeem consumes the pending nonce and checks that signature over its message
// recovers to principal. The nonce is spent whatever the outcome.
func (s *ChallengeService) Redeem(principal ledger.Principal, signature string) error {
	s.mu.Lock()
	c, ok := s.pending[principal]
	delete(s.pending, principal)
	now := s.now()
	s.mu.Unlock()

	if !ok {
		return ErrChallengeMissing
	}
	if now.After(c.ExpiresAt) {
		return ErrChallengeExpired
	}
	return ledger.VerifySignature(principal, c.Message, signature)
}
