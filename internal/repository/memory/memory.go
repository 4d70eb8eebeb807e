package memory

import (
	"context"
	"sync"

	"github.com/havenlist/authcore/internal/db"
	"github.com/havenlist/authcore/internal/repository"
)

// MemoryRepository is the in-process store used in tests and single-node
// deployments without a database.
type MemoryRepository struct {
	mu         sync.RWMutex
	identities map[string]*db.Identity // id -> identity
	emails     map[string]string       // email -> id
	externals  map[string]string       // external id -> id, empty ids unindexed
	policy     *db.RegistrationPolicy
}

func New() *MemoryRepository {
	return &MemoryRepository{
		identities: make(map[string]*db.Identity),
		emails:     make(map[string]string),
		externals:  make(map[string]string),
	}
}

// Identity Repo Implementation

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*db.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ident, ok := r.identities[id]; ok {
		cp := *ident
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*db.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.emails[email]; ok {
		cp := *r.identities[id]
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) GetByExternalID(ctx context.Context, externalID string) (*db.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.externals[externalID]; ok {
		cp := *r.identities[id]
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) Create(ctx context.Context, identity *db.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emails[identity.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	if identity.ExternalID != "" {
		if _, ok := r.externals[identity.ExternalID]; ok {
			return repository.ErrDuplicateExternalID
		}
	}
	cp := *identity
	r.identities[cp.ID] = &cp
	r.emails[cp.Email] = cp.ID
	if cp.ExternalID != "" {
		r.externals[cp.ExternalID] = cp.ID
	}
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, identity *db.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.identities[identity.ID]
	if !ok {
		return repository.ErrNotFound
	}
	// All uniqueness checks before any index mutation, so a rejected
	// update leaves both indexes untouched.
	if identity.Email != existing.Email {
		if _, taken := r.emails[identity.Email]; taken {
			return repository.ErrDuplicateEmail
		}
	}
	if identity.ExternalID != "" && identity.ExternalID != existing.ExternalID {
		if _, taken := r.externals[identity.ExternalID]; taken {
			return repository.ErrDuplicateExternalID
		}
	}
	if identity.Email != existing.Email {
		delete(r.emails, existing.Email)
		r.emails[identity.Email] = identity.ID
	}
	if identity.ExternalID != existing.ExternalID {
		if existing.ExternalID != "" {
			delete(r.externals, existing.ExternalID)
		}
		if identity.ExternalID != "" {
			r.externals[identity.ExternalID] = identity.ID
		}
	}
	cp := *identity
	r.identities[cp.ID] = &cp
	return nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.identities)), nil
}

// Policy Repo Implementation

func (r *MemoryRepository) GetPolicy(ctx context.Context) (*db.RegistrationPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.policy == nil {
		return nil, repository.ErrNotFound
	}
	cp := *r.policy
	return &cp, nil
}

func (r *MemoryRepository) SetPolicy(ctx context.Context, policy *db.RegistrationPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *policy
	r.policy = &cp
	return nil
}

// Interface check
var _ repository.IdentityRepository = (*MemoryRepository)(nil)
var _ repository.PolicyRepository = (*MemoryRepository)(nil)
