package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenlist/authcore/internal/db"
	"github.com/havenlist/authcore/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	external_id   TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	last_login_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS identities_external_id_uq
	ON identities (external_id) WHERE external_id <> '';

CREATE TABLE IF NOT EXISTS registration_policy (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	enabled    BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Store is the postgres-backed identity store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects, pings and bootstraps the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Identity Repo Implementation

const identityColumns = `id, email, display_name, password_hash, external_id, avatar_url, created_at, last_login_at`

func (s *Store) GetByID(ctx context.Context, id string) (*db.Identity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*db.Identity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	return scanIdentity(row)
}

func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*db.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE external_id = $1 AND external_id <> ''`, externalID)
	return scanIdentity(row)
}

func (s *Store) Create(ctx context.Context, identity *db.Identity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identities (id, email, display_name, password_hash, external_id, avatar_url, created_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		identity.ID, identity.Email, identity.DisplayName, identity.PasswordHash,
		identity.ExternalID, identity.AvatarURL, identity.CreatedAt, nullableTime(identity.LastLoginAt))
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, identity *db.Identity) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities
		 SET email = $2, display_name = $3, password_hash = $4, external_id = $5, avatar_url = $6, last_login_at = $7
		 WHERE id = $1`,
		identity.ID, identity.Email, identity.DisplayName, identity.PasswordHash,
		identity.ExternalID, identity.AvatarURL, nullableTime(identity.LastLoginAt))
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n)
	return n, err
}

// Policy Repo Implementation

func (s *Store) GetPolicy(ctx context.Context) (*db.RegistrationPolicy, error) {
	var p db.RegistrationPolicy
	err := s.pool.QueryRow(ctx,
		`SELECT enabled, updated_at FROM registration_policy WHERE id = 1`).Scan(&p.Enabled, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetPolicy(ctx context.Context, policy *db.RegistrationPolicy) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO registration_policy (id, enabled, updated_at) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		policy.Enabled, policy.UpdatedAt)
	return err
}

// Helpers

func scanIdentity(row pgx.Row) (*db.Identity, error) {
	var ident db.Identity
	var lastLogin *time.Time
	err := row.Scan(&ident.ID, &ident.Email, &ident.DisplayName, &ident.PasswordHash,
		&ident.ExternalID, &ident.AvatarURL, &ident.CreatedAt, &lastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastLogin != nil {
		ident.LastLoginAt = *lastLogin
	}
	return &ident, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// mapUniqueViolation translates a postgres unique violation to the
// repository sentinel for the constraint it hit.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "external_id") {
		return repository.ErrDuplicateExternalID
	}
	return repository.ErrDuplicateEmail
}

// Interface check
var _ repository.IdentityRepository = (*Store)(nil)
var _ repository.PolicyRepository = (*Store)(nil)
