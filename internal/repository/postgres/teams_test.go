package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/repository"
)

func TestTeamRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTeamRepository(mock)

	createdAt := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "name", "school_name", "slug", "primary_color", "secondary_color",
		"logo_url", "status", "subscription_status", "checkout_session_id", "created_by", "created_at",
	}).AddRow(
		"team-123", "Cardinal Track", "Cardinal High School", "cardinal-hs", "#1e3a5f", "#c5a900",
		nil, domain.TeamStatusActive, "active", nil, nil, createdAt,
	)

	mock.ExpectQuery(`SELECT .+ FROM roster\.teams`).
		WithArgs("team-123").
		WillReturnRows(rows)

	team, err := repo.GetByID(context.Background(), "team-123")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if team.Slug != "cardinal-hs" {
		t.Fatalf("expected slug cardinal-hs, got %s", team.Slug)
	}
	if team.Status != domain.TeamStatusActive {
		t.Fatalf("expected active status, got %s", team.Status)
	}
	if team.Branding.LogoURL != "" {
		t.Fatalf("expected empty logo for NULL column, got %q", team.Branding.LogoURL)
	}
	if team.CheckoutSessionID != "" || team.CreatedBy != "" {
		t.Fatalf("expected empty strings for NULL columns")
	}
}

func TestTeamRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTeamRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM roster\.teams`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTeamRepository_SlugActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTeamRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM roster\.teams`).
		WithArgs("cardinal-hs", domain.TeamStatusActive).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	taken, err := repo.SlugActive(context.Background(), "cardinal-hs")
	if err != nil {
		t.Fatalf("SlugActive returned error: %v", err)
	}
	if !taken {
		t.Fatalf("expected slug to be taken")
	}
}

func TestTeamRepository_SlugActiveMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTeamRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM roster\.teams`).
		WithArgs("fresh-slug", domain.TeamStatusActive).
		WillReturnError(pgx.ErrNoRows)

	taken, err := repo.SlugActive(context.Background(), "fresh-slug")
	if err != nil {
		t.Fatalf("SlugActive returned error: %v", err)
	}
	if taken {
		t.Fatalf("expected slug to be free")
	}
}

func TestTeamRepository_HasRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTeamRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM roster\.team_memberships`).
		WithArgs("identity-123", domain.RoleCoach, "team-123").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	isCoach, err := repo.HasRole(context.Background(), "team-123", "identity-123", domain.RoleCoach)
	if err != nil {
		t.Fatalf("HasRole returned error: %v", err)
	}
	if !isCoach {
		t.Fatalf("expected coach membership")
	}
}
