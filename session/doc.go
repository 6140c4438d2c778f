// Package session provides the Redis-backed session store used by the
// authentication engine.
//
// A session is created after a fully verified login and lives until its TTL
// lapses or the engine revokes it. Records are JSON-encoded under a
// configurable key prefix, and a per-user index set supports revoking every
// session a user holds in one call.
//
// The store has no opinion about tokens: access tokens reference sessions by
// ID, and the engine decides when a missing session means "logged out".
package session
