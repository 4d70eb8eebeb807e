package repository

import (
	"context"
	"errors"

	"github.com/havenlist/authcore/internal/db"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrDuplicateExternalID = errors.New("external id already linked")
)

// IdentityRepository is the persistence contract for account records.
// Implementations must enforce uniqueness of email and of non-empty
// external ids; those constraints are the race-safety boundary for
// concurrent signups and provider links.
type IdentityRepository interface {
	GetByID(ctx context.Context, id string) (*db.Identity, error)
	GetByEmail(ctx context.Context, email string) (*db.Identity, error)
	GetByExternalID(ctx context.Context, externalID string) (*db.Identity, error)
	Create(ctx context.Context, identity *db.Identity) error
	Update(ctx context.Context, identity *db.Identity) error
	Count(ctx context.Context) (int64, error)
}

// PolicyRepository stores the singleton registration policy. GetPolicy
// returns ErrNotFound until a policy record has been written.
type PolicyRepository interface {
	GetPolicy(ctx context.Context) (*db.RegistrationPolicy, error)
	SetPolicy(ctx context.Context, policy *db.RegistrationPolicy) error
}
