// Package auth implements the mocked email login with a verification code and
// federated sign-in with server-side ID token verification.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/observability"
	"github.com/kjstillabower/plants-doctor/internal/session"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

func localPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// Service runs the login flows. Email sign-in and sign-up accept any non-empty
// credentials and then require the configured verification code.
type Service struct {
	sessions *session.Manager
	code     string
	verifier Verifier
	logger   *zap.Logger
	onEnd    []func(token string)
}

// NewService returns a Service. verifier may be nil, which disables federated sign-in.
func NewService(sessions *session.Manager, verificationCode string, verifier Verifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{sessions: sessions, code: verificationCode, verifier: verifier, logger: logger}
}

// OnSessionEnd registers fn to run with the session token after a logout, or
// when a request presents a token whose session has expired.
func (s *Service) OnSessionEnd(fn func(token string)) {
	s.onEnd = append(s.onEnd, fn)
}

// SignIn starts an email login. The user's name is the email's local part.
func (s *Service) SignIn(ctx context.Context, email, password string) (session.Pending, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		observability.LoginsTotal.WithLabelValues("email", "rejected").Inc()
		return session.Pending{}, fmt.Errorf("%w: %w", validation.ErrInvalidRequest, ErrMissingCredentials)
	}
	return s.begin(ctx, models.User{Name: localPart(email), Email: email, Picture: models.AvatarURL(email)})
}

// SignUp starts an email registration. Nothing is persisted beyond the pending login.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (session.Pending, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		observability.LoginsTotal.WithLabelValues("email", "rejected").Inc()
		return session.Pending{}, fmt.Errorf("%w: %w", validation.ErrInvalidRequest, ErrMissingSignupField)
	}
	return s.begin(ctx, models.User{Name: name, Email: email, Picture: models.AvatarURL(name)})
}

func (s *Service) begin(ctx context.Context, user models.User) (session.Pending, error) {
	p, err := s.sessions.CreatePending(ctx, user)
	if err != nil {
		return session.Pending{}, err
	}
	observability.LoginsTotal.WithLabelValues("email", "pending").Inc()
	return p, nil
}

// Verify completes a pending login. A wrong code leaves the pending login in
// place so the user can try again.
func (s *Service) Verify(ctx context.Context, pendingID, code string) (session.Session, error) {
	code = strings.TrimSpace(code)
	if err := validation.ValidateVerificationCode(code); err != nil {
		return session.Session{}, err
	}
	p, err := s.sessions.Pending(ctx, pendingID)
	if errors.Is(err, session.ErrNotFound) {
		return session.Session{}, ErrPendingNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.code)) != 1 {
		observability.LoginsTotal.WithLabelValues("email", "invalid_code").Inc()
		return session.Session{}, ErrInvalidCode
	}

	if err := s.sessions.DeletePending(ctx, pendingID); err != nil {
		s.logger.Warn("delete pending login failed", zap.Error(err))
	}
	sess, err := s.sessions.CreateSession(ctx, p.User)
	if err != nil {
		return session.Session{}, err
	}
	observability.LoginsTotal.WithLabelValues("email", "success").Inc()
	s.logger.Info("user signed in", zap.String("method", "email"))
	return sess, nil
}

// GoogleSignIn verifies credential and opens a session for the asserted identity.
func (s *Service) GoogleSignIn(ctx context.Context, credential string) (session.Session, error) {
	if s.verifier == nil {
		observability.LoginsTotal.WithLabelValues("google", "rejected").Inc()
		return session.Session{}, fmt.Errorf("%w: federated sign-in not configured", ErrFederatedSignIn)
	}
	user, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		observability.LoginsTotal.WithLabelValues("google", "rejected").Inc()
		s.logger.Warn("federated sign-in rejected", zap.Error(err))
		if !errors.Is(err, ErrFederatedSignIn) {
			err = fmt.Errorf("%w: %v", ErrFederatedSignIn, err)
		}
		return session.Session{}, err
	}
	sess, err := s.sessions.CreateSession(ctx, user)
	if err != nil {
		return session.Session{}, err
	}
	observability.LoginsTotal.WithLabelValues("google", "success").Inc()
	s.logger.Info("user signed in", zap.String("method", "google"))
	return sess, nil
}

// Authenticate resolves a session token.
func (s *Service) Authenticate(ctx context.Context, token string) (session.Session, error) {
	if token == "" {
		return session.Session{}, ErrUnauthenticated
	}
	sess, err := s.sessions.Session(ctx, token)
	if errors.Is(err, session.ErrNotFound) {
		s.endSession(token)
		return session.Session{}, ErrUnauthenticated
	}
	if err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// Logout ends the session and runs the OnSessionEnd hooks.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.endSession(token)
	return nil
}

func (s *Service) endSession(token string) {
	for _, fn := range s.onEnd {
		fn(token)
	}
}
