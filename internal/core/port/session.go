package port

import (
	"context"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/domain"
)

// SessionMinter issues a login session for a confirmed identity. Session
// establishment failing never undoes an already-committed confirmation.
type SessionMinter interface {
	MintSession(ctx context.Context, identity domain.Identity) (*domain.Session, error)
}
