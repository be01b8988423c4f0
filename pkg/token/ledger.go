package token

import (
	"context"
	"time"
)

// Record is the ledger entry behind one refresh token.
type Record struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Family    string    `json:"family"`
	Revoked   bool      `json:"revoked"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger stores refresh records. Implementations must be safe for
// concurrent use; Rotate must be atomic across every process sharing the
// backend.
type Ledger interface {
	// Create inserts a new live record.
	Create(ctx context.Context, rec Record) error

	// Get returns the record for id, or ErrRecordNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Rotate revokes the live record oldID and inserts next, as one atomic
	// step. The old record must belong to next.Subject and be unexpired at
	// next.CreatedAt. Returns ErrRecordRevoked when the old record was
	// already revoked and ErrRecordNotFound when it is missing, expired or
	// owned by another subject. On error nothing is written.
	Rotate(ctx context.Context, oldID string, next Record) error

	// Revoke marks the record revoked. It reports whether the record exists.
	Revoke(ctx context.Context, id string) (bool, error)

	// RevokeFamily revokes every live record in family.
	RevokeFamily(ctx context.Context, family string) (int, error)

	// RevokeSubject revokes every live record of subject.
	RevokeSubject(ctx context.Context, subject string) (int, error)

	// Sweep deletes records that expired before now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
