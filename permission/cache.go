package permission

import (
	"context"
	"time"
)

// Cache stores individual permission decisions keyed by (user, org, code).
// Implementations must store negative decisions the same as positive ones and
// must support exact invalidation of every decision cached for one
// (user, org) pair without touching any other pair.
type Cache interface {
	// Get returns the cached decision and whether an entry was present.
	Get(ctx context.Context, userID, orgID, code string) (decision bool, found bool, err error)
	// Set records a decision with the given TTL.
	Set(ctx context.Context, userID, orgID, code string, decision bool, ttl time.Duration) error
	// Invalidate removes every decision cached for the (user, org) pair.
	Invalidate(ctx context.Context, userID, orgID string) error
}
