// Package permission evaluates tenant-scoped permission checks with
// read-through Redis caching.
//
// # Decision model
//
// A check is the triple (user, org, code) where code is a resource.action
// string such as "invoices.create". The authoritative answer comes from a
// [Source]; the evaluator caches each decision, grant or deny, under its own
// Redis key for a short TTL.
//
// # Exact invalidation
//
// Every decision key for a (user, org) pair is tracked in a per-pair registry
// set. Invalidation runs a Lua script that deletes the set and all tracked
// keys atomically, so role changes take effect within one round trip while
// decisions for every other pair stay cached.
//
// # Architecture boundaries
//
// This package never resolves tenants and never touches user records. It
// answers exactly one question and leaves orchestration to the engine.
package permission
