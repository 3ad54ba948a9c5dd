// Package middleware exposes HTTP adapters for authentication, tenant
// resolution, and permission enforcement built on tenauth.Engine.
//
// # Guards
//
//   - [RequireAuth] — bearer token validation only.
//   - [RequireTenant] — validation plus X-Organization-Id tenant resolution.
//   - [RequirePermission] — tenant-scoped permission check inside RequireTenant.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It makes no
// authentication or authorization decisions of its own.
package middleware
