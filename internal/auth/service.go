package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agridesk/agridesk/internal/actors"
	"github.com/agridesk/agridesk/internal/session"
	"github.com/agridesk/agridesk/internal/shared"
)

// SessionMetrics tracks the active session gauge.
type SessionMetrics interface {
	SessionOpened()
	SessionClosed()
}

// Service wraps authentication business rules: verify credentials, then
// verify the identity maps to an active administrative actor, and undo the
// authentication when that second step fails.
type Service struct {
	provider IdentityProvider
	actors   *actors.Service
	sessions *session.Manager
	audit    shared.AuditSink
	logger   *slog.Logger
	metrics  SessionMetrics
}

// SetMetrics attaches the session gauge recorder.
func (s *Service) SetMetrics(m SessionMetrics) { s.metrics = m }

// NewService constructs a new Service.
func NewService(provider IdentityProvider, actorSvc *actors.Service, sessions *session.Manager, audit shared.AuditSink, logger *slog.Logger) *Service {
	return &Service{provider: provider, actors: actorSvc, sessions: sessions, audit: audit, logger: logger}
}

// Authenticate validates credentials and issues a session for the matching
// active actor. Every failure mode surfaces as ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (session.Session, actors.AdminActor, error) {
	identityID, err := s.provider.Verify(ctx, email, password)
	if err != nil {
		return session.Session{}, actors.AdminActor{}, shared.ErrInvalidCredentials
	}

	actor, err := s.actors.GetActorByEmail(ctx, email)
	if err != nil || !actor.IsActive {
		// Authenticated at the provider but not authorized for admin
		// access: revoke the provider session before reporting failure.
		if revokeErr := s.provider.Revoke(ctx, identityID); revokeErr != nil && s.logger != nil {
			s.logger.Warn("revoke identity after failed authorization", slog.Any("error", revokeErr))
		}
		return session.Session{}, actors.AdminActor{}, shared.ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, actor.ID, identityID)
	if err != nil {
		return session.Session{}, actors.AdminActor{}, fmt.Errorf("auth: create session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SessionOpened()
	}
	s.recordAudit(ctx, actor.ID, "auth.login", sess.ID, "signed in")
	return sess, actor, nil
}

// ValidateSession resolves the session to its actor. Expired sessions return
// ErrSessionExpired; unknown sessions and sessions whose actor lost admin
// eligibility return ErrSessionInvalid.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (actors.AdminActor, error) {
	sess, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		return actors.AdminActor{}, err
	}
	actor, err := s.actors.GetActor(ctx, sess.ActorID)
	if err != nil || !actor.IsActive {
		if signOutErr := s.signOut(ctx, sess); signOutErr != nil && s.logger != nil {
			s.logger.Warn("clear session for ineligible actor", slog.Any("error", signOutErr))
		}
		if err == nil || errors.Is(err, shared.ErrNotFound) {
			return actors.AdminActor{}, shared.ErrSessionInvalid
		}
		return actors.AdminActor{}, err
	}
	return actor, nil
}

// SignOut clears the session and revokes the identity-provider session.
// Explicit sign-out and timeout expiry converge on the same cleared state.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrSessionInvalid) {
			return nil
		}
		return err
	}
	if err := s.signOut(ctx, sess); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SessionClosed()
	}
	s.recordAudit(ctx, sess.ActorID, "auth.logout", sess.ID, "signed out")
	return nil
}

func (s *Service) signOut(ctx context.Context, sess session.Session) error {
	if err := s.sessions.SignOut(ctx, sess.ID); err != nil {
		return err
	}
	if sess.IdentityID != "" {
		return s.provider.Revoke(ctx, sess.IdentityID)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, sessionID, description string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:     actorID,
		Action:      action,
		Entity:      "session",
		EntityID:    sessionID,
		Description: description,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
