package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

// ProvisioningRepository implements port.ProvisioningRepository using
// PostgreSQL. Idempotency is keyed on the processed-sessions ledger: the
// ledger insert and the team write share one transaction, so a crash can
// never mark a session processed without its team, or vice versa.
type ProvisioningRepository struct {
	pool    pgPool
	builder squirrel.StatementBuilderType
}

// NewProvisioningRepository wires a provisioning repository backed by any
// pool that satisfies pgPool.
func NewProvisioningRepository(pool pgPool) *ProvisioningRepository {
	return &ProvisioningRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Processed reports whether the checkout session has already been applied.
func (r *ProvisioningRepository) Processed(ctx context.Context, sessionID string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From("roster.processed_checkout_sessions").
		Where(squirrel.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build processed check sql: %w", err)
	}

	var one int
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check processed session: %w", err)
	}

	return true, nil
}

// markProcessed claims the session inside tx. Returns false when another
// delivery already claimed it.
func (r *ProvisioningRepository) markProcessed(ctx context.Context, tx pgx.Tx, sessionID string) (bool, error) {
	stmt, args, err := r.builder.
		Insert("roster.processed_checkout_sessions").
		Columns("session_id", "processed_at").
		Values(sessionID, squirrel.Expr("now()")).
		Suffix("ON CONFLICT (session_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build ledger insert sql: %w", err)
	}

	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("insert ledger row: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CreateTeamFromCheckout claims the session and materializes the team in one
// transaction. A slug collision returns repository.ErrConflict with nothing
// committed.
func (r *ProvisioningRepository) CreateTeamFromCheckout(ctx context.Context, sessionID string, team domain.Team) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin provisioning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := r.markProcessed(ctx, tx, sessionID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	var logoURL any
	if team.Branding.LogoURL != "" {
		logoURL = team.Branding.LogoURL
	}

	stmt, args, err := r.builder.
		Insert("roster.teams").
		Columns(
			"id",
			"name",
			"school_name",
			"slug",
			"primary_color",
			"secondary_color",
			"logo_url",
			"status",
			"subscription_status",
			"checkout_session_id",
			"created_by",
			"created_at",
		).
		Values(
			team.ID,
			team.Name,
			team.SchoolName,
			team.Slug,
			team.Branding.PrimaryColor,
			team.Branding.SecondaryColor,
			logoURL,
			team.Status,
			team.SubscriptionStatus,
			team.CheckoutSessionID,
			team.CreatedBy,
			team.CreatedAt,
		).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert team sql: %w", err)
	}

	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, repository.ErrConflict
		}
		return false, fmt.Errorf("insert team: %w", err)
	}

	if team.CreatedBy != "" {
		stmt, args, err = r.builder.
			Insert("roster.team_memberships").
			Columns("team_id", "identity_id", "role", "created_at").
			Values(team.ID, team.CreatedBy, domain.RoleCoach, team.CreatedAt).
			ToSql()
		if err != nil {
			return false, fmt.Errorf("build insert membership sql: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return false, fmt.Errorf("insert coach membership: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit provisioning tx: %w", err)
	}

	return true, nil
}

// RenewSubscription claims the session and reactivates an existing team.
func (r *ProvisioningRepository) RenewSubscription(ctx context.Context, sessionID, teamID, subscriptionID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin renewal tx: %w", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := r.markProcessed(ctx, tx, sessionID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	update := r.builder.
		Update("roster.teams").
		Set("status", domain.TeamStatusActive).
		Set("subscription_status", "active").
		Set("checkout_session_id", sessionID).
		Where(squirrel.Eq{"id": teamID})
	if subscriptionID != "" {
		update = update.Set("subscription_id", subscriptionID)
	}

	stmt, args, err := update.ToSql()
	if err != nil {
		return false, fmt.Errorf("build renewal sql: %w", err)
	}

	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("renew subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, repository.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit renewal tx: %w", err)
	}

	return true, nil
}

// RecordConflict stores a lost slug race for reconciliation. Replays of the
// same session are collapsed into one row.
func (r *ProvisioningRepository) RecordConflict(ctx context.Context, conflict domain.ProvisioningConflict) error {
	stmt, args, err := r.builder.
		Insert("roster.provisioning_conflicts").
		Columns("id", "session_id", "slug", "detail", "created_at").
		Values(conflict.ID, conflict.SessionID, conflict.Slug, conflict.Detail, conflict.CreatedAt).
		Suffix("ON CONFLICT (session_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert conflict sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert provisioning conflict: %w", err)
	}

	return nil
}

var _ port.ProvisioningRepository = (*ProvisioningRepository)(nil)
