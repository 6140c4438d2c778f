// Package jwt manages access-token issuance and verification for the
// authentication engine. Tokens carry the account ID and the opaque session
// ID; revocation lives in the session store, not here.
package jwt
