// Package password implements one-way password hashing and verification with
// Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Each hash carries its own random salt and parameters, so verification needs
// nothing beyond the stored string.
//
// # Failure semantics
//
// [Hasher.Verify] treats a malformed or unsupported stored hash as a
// verification failure, not an error: the caller sees the same (false, nil)
// it would see for a wrong password. Nothing about where a mismatch occurred
// is exposed; the digest comparison itself is constant-time.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other sshauth package.
//   - Log plaintext passwords at runtime.
package password
