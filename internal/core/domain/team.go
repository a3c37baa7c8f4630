package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TeamStatus tracks whether a team is live.
type TeamStatus string

const (
	TeamStatusActive   TeamStatus = "active"
	TeamStatusInactive TeamStatus = "inactive"
)

// MembershipRole is the role an identity holds on a team.
type MembershipRole string

const (
	RoleCoach   MembershipRole = "coach"
	RoleParent  MembershipRole = "parent"
	RoleAthlete MembershipRole = "athlete"
)

// IntentMode distinguishes billing an existing team from provisioning a new one.
type IntentMode string

const (
	IntentExistingTeam IntentMode = "existing_team"
	IntentNewTeam      IntentMode = "new_team"
)

// TeamBranding holds the customizable look of a team page.
type TeamBranding struct {
	PrimaryColor   string
	SecondaryColor string
	LogoURL        string
}

// Team is the tenant record. Its creation is deferred until the payment
// provider confirms checkout; nothing in the checkout path writes one.
type Team struct {
	ID                 string
	Name               string
	SchoolName         string
	Slug               string
	Branding           TeamBranding
	Status             TeamStatus
	SubscriptionStatus string
	CheckoutSessionID  string
	CreatedBy          string
	CreatedAt          time.Time
}

// NewTeamPayload carries everything needed to materialize a team that does
// not exist yet.
type NewTeamPayload struct {
	Name           string
	SchoolName     string
	Slug           string
	PrimaryColor   string
	SecondaryColor string
	LogoURL        string
}

// ProvisioningIntent is a validated checkout request. For IntentExistingTeam
// only TeamID is set; for IntentNewTeam the full payload travels in checkout
// metadata so the webhook consumer needs no other lookups.
type ProvisioningIntent struct {
	Mode           IntentMode
	TeamID         string
	NewTeam        *NewTeamPayload
	TrialRequested bool
}

// ProvisioningConflict records a checkout whose materialization lost a slug
// race. It is queued for operator reconciliation, never silently dropped.
type ProvisioningConflict struct {
	ID        string
	SessionID string
	Slug      string
	Detail    string
	CreatedAt time.Time
}

// Checkout metadata keys. The bag must reconstruct the intent with no
// database lookups, so every new-team field has a key.
const (
	metaMode           = "mode"
	metaRequesterID    = "requester_id"
	metaTeamID         = "team_id"
	metaTeamName       = "team_name"
	metaSchoolName     = "school_name"
	metaSlug           = "slug"
	metaPrimaryColor   = "primary_color"
	metaSecondaryColor = "secondary_color"
	metaLogoURL        = "logo_url"
	metaTrial          = "trial"
)

// IntentMetadata flattens an intent into the checkout session metadata bag.
func IntentMetadata(intent ProvisioningIntent, requesterID string) map[string]string {
	meta := map[string]string{
		metaMode:        string(intent.Mode),
		metaRequesterID: requesterID,
		metaTrial:       strconv.FormatBool(intent.TrialRequested),
	}

	switch intent.Mode {
	case IntentExistingTeam:
		meta[metaTeamID] = intent.TeamID
	case IntentNewTeam:
		if intent.NewTeam != nil {
			meta[metaTeamName] = intent.NewTeam.Name
			meta[metaSchoolName] = intent.NewTeam.SchoolName
			meta[metaSlug] = intent.NewTeam.Slug
			meta[metaPrimaryColor] = intent.NewTeam.PrimaryColor
			meta[metaSecondaryColor] = intent.NewTeam.SecondaryColor
			if intent.NewTeam.LogoURL != "" {
				meta[metaLogoURL] = intent.NewTeam.LogoURL
			}
		}
	}

	return meta
}

// IntentFromMetadata rebuilds the intent the checkout session was created
// with. The requester id is returned alongside so the consumer can attribute
// the created team.
func IntentFromMetadata(meta map[string]string) (ProvisioningIntent, string, error) {
	mode := IntentMode(meta[metaMode])
	requesterID := meta[metaRequesterID]
	trial, _ := strconv.ParseBool(meta[metaTrial])

	switch mode {
	case IntentExistingTeam:
		teamID := strings.TrimSpace(meta[metaTeamID])
		if teamID == "" {
			return ProvisioningIntent{}, "", fmt.Errorf("checkout metadata missing team_id")
		}
		return ProvisioningIntent{Mode: mode, TeamID: teamID, TrialRequested: trial}, requesterID, nil
	case IntentNewTeam:
		payload := NewTeamPayload{
			Name:           strings.TrimSpace(meta[metaTeamName]),
			SchoolName:     strings.TrimSpace(meta[metaSchoolName]),
			Slug:           strings.TrimSpace(meta[metaSlug]),
			PrimaryColor:   meta[metaPrimaryColor],
			SecondaryColor: meta[metaSecondaryColor],
			LogoURL:        meta[metaLogoURL],
		}
		if payload.Name == "" || payload.SchoolName == "" || payload.Slug == "" {
			return ProvisioningIntent{}, "", fmt.Errorf("checkout metadata missing new team fields")
		}
		return ProvisioningIntent{Mode: mode, NewTeam: &payload, TrialRequested: trial}, requesterID, nil
	default:
		return ProvisioningIntent{}, "", fmt.Errorf("checkout metadata has unknown mode %q", meta[metaMode])
	}
}
