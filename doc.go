// Package tenauth provides a multi-tenant authentication engine with JWT
// access tokens, rotating opaque refresh tokens, account lockout, and
// tenant-scoped permission evaluation backed by a Redis decision cache.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tenauth is the public surface. It exposes [Engine], [Builder], [Config],
// the store interfaces, and value types (TokenPair, TenantContext,
// MetricsSnapshot, etc.). Flow orchestration, audit dispatch, and token
// material generation live under internal/ and are never exported.
//
// Persistence is a collaborator, not a dependency: the engine talks to the
// [Stores] interfaces and ships a Postgres implementation in store/postgres,
// but any backend satisfying the interfaces works.
//
// # Hot path contract
//
// ValidateAccess is purely computational: signature check plus expiry, no
// storage round-trip. CheckPermission is one Redis round-trip on a cache hit
// and at most two storage queries on a miss.
package tenauth
