// Package password provides argon2id password hashing in PHC string format
// and a configurable strength policy.
//
// Hashes embed their own cost parameters, so verification keeps working after
// the configured costs are raised; NeedsRehash reports when a stored hash
// should be upgraded on next successful login.
package password
