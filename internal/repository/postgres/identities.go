package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository wires an identity repository backed by any executor
// that satisfies pgExecutor.
func NewIdentityRepository(exec pgExecutor) *IdentityRepository {
	return &IdentityRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new identity row.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	query := r.builder.Insert("roster.identities").
		Columns(
			"id",
			"email",
			"display_name",
			"password_hash",
			"confirmed",
			"created_at",
			"confirmed_at",
		).
		Values(
			identity.ID,
			identity.Email,
			identity.DisplayName,
			identity.PasswordHash,
			identity.Confirmed,
			identity.CreatedAt,
			identity.ConfirmedAt,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

// GetByEmail retrieves an identity by normalized email.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

// GetByID retrieves an identity by identifier.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *IdentityRepository) getOne(ctx context.Context, pred squirrel.Eq) (*domain.Identity, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"email",
			"display_name",
			"password_hash",
			"confirmed",
			"created_at",
			"confirmed_at",
		).
		From("roster.identities").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		identity    domain.Identity
		confirmedAt *time.Time
	)

	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&identity.PasswordHash,
		&identity.Confirmed,
		&identity.CreatedAt,
		&confirmedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	identity.ConfirmedAt = confirmedAt
	return &identity, nil
}

// UpdateCredentials replaces the password hash and display name of an
// unconfirmed identity.
func (r *IdentityRepository) UpdateCredentials(ctx context.Context, id, passwordHash, displayName string) error {
	stmt, args, err := r.builder.
		Update("roster.identities").
		Set("password_hash", passwordHash).
		Set("display_name", displayName).
		Where(squirrel.Eq{"id": id, "confirmed": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update credentials sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Confirm marks the identity confirmed. Re-confirming is a no-op.
func (r *IdentityRepository) Confirm(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.
		Update("roster.identities").
		Set("confirmed", true).
		Set("confirmed_at", at).
		Where(squirrel.Eq{"id": id, "confirmed": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build confirm identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("confirm identity: %w", err)
	}

	return nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
