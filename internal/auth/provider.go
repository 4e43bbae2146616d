package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/agridesk/agridesk/internal/actors"
	"github.com/agridesk/agridesk/internal/shared"
)

// IdentityProvider verifies raw credentials and manages the underlying
// identity session. Kept behind an interface so a hosted provider can stand
// in for the local password store.
type IdentityProvider interface {
	// Verify checks the credentials and returns an opaque identity ID.
	// Failures are generic: callers cannot distinguish unknown users from
	// wrong passwords.
	Verify(ctx context.Context, email, password string) (string, error)
	// Revoke invalidates the provider-side session for the identity.
	Revoke(ctx context.Context, identityID string) error
}

// LocalProvider verifies credentials against bcrypt hashes in the actor
// directory. The identity ID is the actor's email.
type LocalProvider struct {
	actors *actors.Service
}

// NewLocalProvider constructs a LocalProvider.
func NewLocalProvider(actorSvc *actors.Service) *LocalProvider {
	return &LocalProvider{actors: actorSvc}
}

// Verify implements IdentityProvider.
func (p *LocalProvider) Verify(ctx context.Context, email, password string) (string, error) {
	actor, err := p.actors.GetActorByEmail(ctx, email)
	if err != nil {
		// Burn a comparison anyway so response timing does not reveal
		// whether the account exists.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000"), []byte(password))
		return "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(password)); err != nil {
		return "", shared.ErrInvalidCredentials
	}
	return actor.Email, nil
}

// Revoke implements IdentityProvider. Local identities have no provider-side
// session beyond the engine's own, so this is a no-op.
func (p *LocalProvider) Revoke(ctx context.Context, identityID string) error {
	return nil
}
