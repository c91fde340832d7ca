// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/utils"
)

var (
	ErrStaleResolution = errors.New("resolution superseded by a newer cycle")
	// ErrProofRejected means the caller did not prove control of the address.
	ErrProofRejected = errors.New("address ownership not proven")
)

// Routes the presentation layer should transition to.
const (
	RouteHome     = "/"
	RouteRegister = "/register"
	RouteNewUser  = "/new-user"
)

type AuthService struct {
	resolver   *CapabilityResolver
	sessions   *SessionService
	challenges *ChallengeService
	cfg        *config.Config
}

type ChallengeRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

// ResolveRequest carries a personal_sign signature over the message of the
// address's pending challenge.
type ResolveRequest struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Signature string `json:"signature" validate:"required"`
}

type AuthResponse struct {
	State       models.AuthorizationState `json:"state"`
	AccessToken string                    `json:"access_token,omitempty"`
	TokenType   string                    `json:"token_type,omitempty"`
	ExpiresIn   int                       `json:"expires_in,omitempty"` // in seconds
	Redirect    string                    `json:"redirect"`
}

type LogoutResponse struct {
	Generation uint64 `json:"generation"`
	Redirect   string `json:"redirect"`
}

func NewAuthService(resolver *CapabilityResolver, sessions *SessionService, challenges *ChallengeService, cfg *config.Config) *AuthService {
	return &AuthService{
		resolver:   resolver,
		sessions:   sessions,
		challenges: challenges,
		cfg:        cfg,
	}
}

// Challenge issues the nonce message the wallet must sign before Resolve.
func (s *AuthService) Challenge(req *ChallengeRequest) (*Challenge, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	principal, err := ledger.ParsePrincipal(req.Address)
	if err != nil {
		return nil, err
	}

	c := s.challenges.Issue(principal)
	return &c, nil
}

// Resolve runs one resolution cycle for the address and publishes it. The
// caller must first prove control of the address by signing its challenge.
// Authorized principals receive a session token bound to the cycle's generation.
func (s *AuthService) Resolve(ctx context.Context, req *ResolveRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	principal, err := ledger.ParsePrincipal(req.Address)
	if err != nil {
		return nil, err
	}

	if err := s.challenges.Redeem(principal, req.Signature); err != nil {
		logrus.WithError(err).WithField("principal", principal).Warn("Rejected sign-in proof")
		return nil, fmt.Errorf("%w: %w", ErrProofRejected, err)
	}

	generation := s.sessions.Begin(principal)
	state := s.resolver.Resolve(ctx, principal)
	if !s.sessions.Publish(ctx, principal, generation, state) {
		return nil, ErrStaleResolution
	}
	state.Generation = generation

	if !state.Authorized {
		return &AuthResponse{State: state, Redirect: RouteRegister}, nil
	}

	token, err := utils.GenerateSessionToken(principal.String(), string(state.Role), generation, s.cfg.JWT.SessionTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	return &AuthResponse{
		State:       state,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.JWT.SessionTokenTTL * 3600,
		Redirect:    RouteHome,
	}, nil
}

func (s *AuthService) Logout(principal ledger.Principal) *LogoutResponse {
	return &LogoutResponse{
		Generation: s.sessions.Logout(principal),
		Redirect:   RouteNewUser,
	}
}

func (s *AuthService) Current(principal ledger.Principal) (models.AuthorizationState, bool) {
	return s.sessions.Current(principal)
}

func (s *AuthService) Sessions() *SessionService {
	return s.sessions
}
