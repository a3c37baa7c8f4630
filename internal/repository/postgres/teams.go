package postgres

import (
	"context"
	"database/sql"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

// TeamRepository implements port.TeamRepository using PostgreSQL.
type TeamRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTeamRepository wires a team repository backed by any executor that
// satisfies pgExecutor.
func NewTeamRepository(exec pgExecutor) *TeamRepository {
	return &TeamRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a team by identifier.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	stmt, args, err := r.builder.
		Select(
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
		From("roster.teams").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select team sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		team      domain.Team
		logoURL   sql.NullString
		sessionID sql.NullString
		createdBy sql.NullString
	)

	if err := row.Scan(
		&team.ID,
		&team.Name,
		&team.SchoolName,
		&team.Slug,
		&team.Branding.PrimaryColor,
		&team.Branding.SecondaryColor,
		&logoURL,
		&team.Status,
		&team.SubscriptionStatus,
		&sessionID,
		&createdBy,
		&team.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan team: %w", err)
	}

	if logoURL.Valid {
		team.Branding.LogoURL = logoURL.String
	}
	if sessionID.Valid {
		team.CheckoutSessionID = sessionID.String
	}
	if createdBy.Valid {
		team.CreatedBy = createdBy.String
	}

	return &team, nil
}

// SlugActive reports whether an active team already owns the slug.
func (r *TeamRepository) SlugActive(ctx context.Context, slug string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From("roster.teams").
		Where(squirrel.Eq{"slug": slug, "status": domain.TeamStatusActive}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build slug check sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check slug: %w", err)
	}

	return true, nil
}

// HasRole reports whether the identity holds the given role on the team.
func (r *TeamRepository) HasRole(ctx context.Context, teamID, identityID string, role domain.MembershipRole) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From("roster.team_memberships").
		Where(squirrel.Eq{
			"team_id":     teamID,
			"identity_id": identityID,
			"role":        role,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build membership check sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check membership: %w", err)
	}

	return true, nil
}

var _ port.TeamRepository = (*TeamRepository)(nil)
