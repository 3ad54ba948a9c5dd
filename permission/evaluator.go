package permission

import (
	"context"
	"time"
)

// DefaultTTL is the decision cache lifetime when none is configured.
const DefaultTTL = 5 * time.Minute

// Source answers permission questions from authoritative storage. The
// evaluator consults it only on cache miss.
type Source interface {
	// ActiveMembershipRole returns the role id of the user's active
	// membership in the org, or ok=false when no active membership exists.
	ActiveMembershipRole(ctx context.Context, userID, orgID string) (roleID string, ok bool, err error)
	// RoleHasPermission reports whether the role grants the permission code.
	RoleHasPermission(ctx context.Context, roleID, code string) (bool, error)
}

// Evaluator answers "may user U perform action C in org O" with read-through
// caching. Both grant and deny decisions are cached, so a burst of denied
// requests cannot hammer storage.
type Evaluator struct {
	source Source
	cache  Cache
	ttl    time.Duration
}

// NewEvaluator builds an Evaluator. cache may be nil, in which case every
// check goes to the source.
func NewEvaluator(source Source, cache Cache, ttl time.Duration) *Evaluator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Evaluator{source: source, cache: cache, ttl: ttl}
}

// Check returns the permission decision for (userID, orgID, code).
//
// A missing or inactive membership is a deny, not an error, and the deny is
// cached like any other decision. A cache read failure falls through to the
// source; a cache write failure is reported to the caller alongside the
// computed decision via the CacheErr field of the result.
func (e *Evaluator) Check(ctx context.Context, userID, orgID, code string) (Decision, error) {
	if e.cache != nil {
		allowed, found, err := e.cache.Get(ctx, userID, orgID, code)
		if err == nil && found {
			return Decision{Allowed: allowed, FromCache: true}, nil
		}
		if err != nil {
			decision, srcErr := e.resolve(ctx, userID, orgID, code)
			if srcErr != nil {
				return Decision{}, srcErr
			}
			decision.CacheErr = err
			return decision, nil
		}
	}

	decision, err := e.resolve(ctx, userID, orgID, code)
	if err != nil {
		return Decision{}, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, userID, orgID, code, decision.Allowed, e.ttl); err != nil {
			decision.CacheErr = err
		}
	}
	return decision, nil
}

// Invalidate removes every cached decision for the (user, org) pair. Callers
// invoke it after any role or membership change.
func (e *Evaluator) Invalidate(ctx context.Context, userID, orgID string) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Invalidate(ctx, userID, orgID)
}

func (e *Evaluator) resolve(ctx context.Context, userID, orgID, code string) (Decision, error) {
	roleID, ok, err := e.source.ActiveMembershipRole(ctx, userID, orgID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{Allowed: false}, nil
	}

	allowed, err := e.source.RoleHasPermission(ctx, roleID, code)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: allowed}, nil
}

// Decision is the outcome of a permission check.
type Decision struct {
	// Allowed is the authorization verdict.
	Allowed bool
	// FromCache reports whether the verdict was served from cache.
	FromCache bool
	// CacheErr carries a non-fatal cache failure encountered while serving
	// the check. The verdict is still authoritative.
	CacheErr error
}
