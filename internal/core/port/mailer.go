package port

import (
	"context"
	"time"
)

// CodeMailer delivers verification codes out of band. Transport failures are
// surfaced to the caller; the already-persisted challenge is not rolled back
// because a re-issue simply overwrites it.
type CodeMailer interface {
	SendVerificationCode(ctx context.Context, to, displayName, code string, expiresAt time.Time) error
}
