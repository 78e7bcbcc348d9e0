package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

// Login outcomes reported to the LoginRecorder.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeThrottled = "throttled"
)

// LoginRecorder receives one outcome per login attempt.
type LoginRecorder interface {
	RecordLogin(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(string) {}

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// Service implements login and token verification.
type Service struct {
	store    IdentityStore
	tokens   *TokenIssuer
	throttle Throttle
	recorder LoginRecorder
	logger   zerolog.Logger
}

func NewService(store IdentityStore, tokens *TokenIssuer, throttle Throttle, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		throttle: throttle,
		recorder: nopRecorder{},
		logger:   logger,
	}
}

// WithRecorder attaches a metrics sink for login outcomes.
func (s *Service) WithRecorder(r LoginRecorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// Login checks the credentials and issues a token. Every credential mismatch
// produces the same unauthorized error; the log line does not say which field
// was wrong. Throttle backend errors are logged and the attempt proceeds.
func (s *Service) Login(ctx context.Context, email, password, clientIP string) (*LoginResult, error) {
	key := ThrottleKey(email, clientIP)

	blocked, err := s.throttle.Blocked(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Msg("login throttle unavailable")
	}
	if blocked {
		s.recorder.RecordLogin(OutcomeThrottled)
		s.logger.Warn().Str("remote_ip", clientIP).Msg("login throttled")
		return nil, apperr.RateLimited()
	}

	acct, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		return nil, apperr.Internal(err)
	}

	// VerifyPassword runs bcrypt even when acct is nil.
	if !s.store.VerifyPassword(ctx, acct, password) || acct == nil {
		if err := s.throttle.Fail(ctx, key); err != nil {
			s.logger.Error().Err(err).Msg("login throttle unavailable")
		}
		s.recorder.RecordLogin(OutcomeFailure)
		s.logger.Warn().Str("remote_ip", clientIP).Msg("login failed")
		return nil, apperr.Unauthorized()
	}

	if err := s.throttle.Reset(ctx, key); err != nil {
		s.logger.Error().Err(err).Msg("login throttle unavailable")
	}

	token, _, err := s.tokens.Issue(acct.Identity)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.recorder.RecordLogin(OutcomeSuccess)
	return &LoginResult{Token: token, User: acct.Identity}, nil
}

// Verify returns the identity embedded in token.
func (s *Service) Verify(token string) (*Identity, error) {
	return s.tokens.Verify(token)
}
