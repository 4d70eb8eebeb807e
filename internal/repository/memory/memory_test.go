package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenlist/authcore/internal/db"
	"github.com/havenlist/authcore/internal/repository"
)

func TestCreateAndLookup(t *testing.T) {
	repo := New()
	ctx := context.Background()

	identity := &db.Identity{
		ID:           "id-1",
		Email:        "a@x.com",
		DisplayName:  "A",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.Create(ctx, identity))

	byID, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", byEmail.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := New()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-1", Email: "a@x.com"}))

	err := repo.Create(ctx, &db.Identity{ID: "id-2", Email: "a@x.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestUpdate(t *testing.T) {
	repo := New()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-1", Email: "a@x.com"}))
	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-2", Email: "b@x.com"}))

	updated := &db.Identity{ID: "id-1", Email: "a@x.com", ExternalID: "ext-1", LastLoginAt: time.Now()}
	require.NoError(t, repo.Update(ctx, updated))

	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", got.ExternalID)
	assert.False(t, got.LastLoginAt.IsZero())

	// Email change onto a taken address fails and keeps the index sane.
	err = repo.Update(ctx, &db.Identity{ID: "id-1", Email: "b@x.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
	_, err = repo.GetByEmail(ctx, "a@x.com")
	assert.NoError(t, err)

	err = repo.Update(ctx, &db.Identity{ID: "missing", Email: "c@x.com"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateEmailReindexes(t *testing.T) {
	repo := New()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-1", Email: "a@x.com"}))
	require.NoError(t, repo.Update(ctx, &db.Identity{ID: "id-1", Email: "new@x.com"}))

	_, err := repo.GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.GetByEmail(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
}

func TestExternalIDUniqueness(t *testing.T) {
	repo := New()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-1", Email: "a@x.com", ExternalID: "ext-1"}))

	err := repo.Create(ctx, &db.Identity{ID: "id-2", Email: "b@x.com", ExternalID: "ext-1"})
	assert.ErrorIs(t, err, repository.ErrDuplicateExternalID)

	// Empty external ids are not indexed and may repeat.
	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-2", Email: "b@x.com"}))
	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-3", Email: "c@x.com"}))

	err = repo.Update(ctx, &db.Identity{ID: "id-2", Email: "b@x.com", ExternalID: "ext-1"})
	assert.ErrorIs(t, err, repository.ErrDuplicateExternalID)

	got, err := repo.GetByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
}

func TestUpdateExternalIDReindexes(t *testing.T) {
	repo := New()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-1", Email: "a@x.com", ExternalID: "ext-1"}))
	require.NoError(t, repo.Update(ctx, &db.Identity{ID: "id-1", Email: "a@x.com", ExternalID: "ext-new"}))

	_, err := repo.GetByExternalID(ctx, "ext-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.GetByExternalID(ctx, "ext-new")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)

	// The freed id is reusable by another identity.
	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-2", Email: "b@x.com", ExternalID: "ext-1"}))
}

func TestCount(t *testing.T) {
	repo := New()
	ctx := context.Background()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-1", Email: "a@x.com"}))
	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-2", Email: "b@x.com"}))

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPolicy(t *testing.T) {
	repo := New()
	ctx := context.Background()

	_, err := repo.GetPolicy(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.SetPolicy(ctx, &db.RegistrationPolicy{Enabled: false, UpdatedAt: time.Now()}))

	p, err := repo.GetPolicy(ctx)
	require.NoError(t, err)
	assert.False(t, p.Enabled)
}

func TestLookupReturnsCopies(t *testing.T) {
	repo := New()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db.Identity{ID: "id-1", Email: "a@x.com", DisplayName: "A"}))

	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	got.DisplayName = "mutated"

	again, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "A", again.DisplayName, "callers must not mutate stored records")
}
