package service

import (
	"context"
	"errors"
	"time"

	"github.com/havenlist/authcore/internal/db"
	"github.com/havenlist/authcore/internal/repository"
)

// RegistrationGate decides whether self-service account creation is
// currently open.
type RegistrationGate struct {
	identities repository.IdentityRepository
	policies   repository.PolicyRepository
}

func NewRegistrationGate(identities repository.IdentityRepository, policies repository.PolicyRepository) *RegistrationGate {
	return &RegistrationGate{identities: identities, policies: policies}
}

// CanRegister is always true for an empty store (the bootstrap account
// may always register); otherwise it follows the stored policy,
// defaulting to open when no policy record exists yet.
func (g *RegistrationGate) CanRegister(ctx context.Context) (bool, error) {
	n, err := g.identities.Count(ctx)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return true, nil
	}

	p, err := g.policies.GetPolicy(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return p.Enabled, nil
}

// OnFirstAccountCreated closes open registration. The first account is
// the implicit administrator; anyone after it needs the policy to be
// re-enabled explicitly. Two racing "first" signups may both land here;
// both write Enabled=false, which is a safe outcome.
func (g *RegistrationGate) OnFirstAccountCreated(ctx context.Context) error {
	return g.policies.SetPolicy(ctx, &db.RegistrationPolicy{
		Enabled:   false,
		UpdatedAt: time.Now().UTC(),
	})
}
