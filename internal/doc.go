// Package internal holds cross-cutting helpers shared by the engine and its
// sub-packages: opaque token generation and digest comparison. Nothing in here
// is part of the public API surface.
package internal
