package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tenantkit/tenauth"
)

// TenantHeader is the request header carrying the organization id.
const TenantHeader = "X-Organization-Id"

type identityContextKey struct{}

// IdentityFromContext returns the identity injected by [RequireAuth].
func IdentityFromContext(ctx context.Context) (*tenauth.AccessIdentity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*tenauth.AccessIdentity)
	return id, ok
}

// RequireAuth validates the bearer token and injects the proven identity
// into the request context. No tenant resolution happens here.
func RequireAuth(engine *tenauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authenticate(engine, w, r)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant validates the bearer token, reads the organization id from
// the X-Organization-Id header, resolves the tenant, and injects both
// identity and tenant context. A missing header is a 400; a denied or
// inactive tenant is a 403.
func RequireTenant(engine *tenauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authenticate(engine, w, r)
			if !ok {
				return
			}

			orgID := r.Header.Get(TenantHeader)
			tc, err := engine.ResolveTenant(r.Context(), identity.UserID, orgID)
			if err != nil {
				writeTenantError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			ctx = tenauth.WithTenant(ctx, tc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission wraps a handler behind a tenant-scoped permission check.
// It must run inside [RequireTenant].
func RequirePermission(engine *tenauth.Engine, code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			tc := tenauth.TenantFromContext(r.Context())
			if tc == nil {
				http.Error(w, "missing tenant", http.StatusBadRequest)
				return
			}

			if err := engine.RequirePermission(r.Context(), identity.UserID, tc.OrgID(), code); err != nil {
				if errors.Is(err, tenauth.ErrPermissionDenied) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(engine *tenauth.Engine, w http.ResponseWriter, r *http.Request) (*tenauth.AccessIdentity, bool) {
	if engine == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	identity, err := engine.ValidateAccess(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return identity, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

func writeTenantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenauth.ErrMissingTenant):
		http.Error(w, "missing organization header", http.StatusBadRequest)
	case errors.Is(err, tenauth.ErrTenantAccessDenied), errors.Is(err, tenauth.ErrTenantInactive):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
}
