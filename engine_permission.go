package tenauth

import (
	"context"
	"fmt"
)

// CheckPermission reports whether the user may perform the permission code
// inside the organization. Decisions, including denials, are cached for the
// configured TTL; a cache outage degrades to uncached storage lookups.
func (e *Engine) CheckPermission(ctx context.Context, userID, orgID, code string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if orgID == "" {
		return false, ErrMissingTenant
	}
	if code == "" {
		return false, validationErr("code", "required")
	}

	start := e.now()
	decision, err := e.evaluator.Check(ctx, userID, orgID, code)
	if err != nil {
		return false, err
	}
	e.metrics.Observe(e.now().Sub(start))

	if decision.CacheErr != nil {
		e.logger.Warn(ctx, "permission cache degraded", "error", decision.CacheErr)
	}
	if decision.FromCache {
		e.metricInc(MetricPermissionCacheHit)
	}
	if decision.Allowed {
		e.metricInc(MetricPermissionGrant)
	} else {
		e.metricInc(MetricPermissionDeny)
	}
	return decision.Allowed, nil
}

// RequirePermission is CheckPermission that turns a deny into
// [ErrPermissionDenied].
func (e *Engine) RequirePermission(ctx context.Context, userID, orgID, code string) error {
	allowed, err := e.CheckPermission(ctx, userID, orgID, code)
	if err != nil {
		return err
	}
	if !allowed {
		e.emitAudit(ctx, EventPermissionDenied, userID, orgID, false, ErrPermissionDenied)
		return ErrPermissionDenied
	}
	return nil
}

// InvalidatePermissions drops every cached decision for the (user, org)
// pair. Membership and role mutations call this; it is exported for callers
// that mutate authorization state outside the engine.
func (e *Engine) InvalidatePermissions(ctx context.Context, userID, orgID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.metricInc(MetricPermissionInvalidation)
	if err := e.evaluator.Invalidate(ctx, userID, orgID); err != nil {
		e.logger.Error(ctx, "permission invalidation failed",
			"user_id", userID, "org_id", orgID, "error", err)
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
