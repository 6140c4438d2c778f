// Package sshauth implements the authentication and session-trust core of the
// SSH client backend: password credentials, TOTP multi-factor authentication
// with backup codes, account lockout, password-reset token lifecycle, and a
// trusted-device mechanism that lets previously verified devices skip MFA.
//
// The package is the public surface. It exposes [Engine], [Builder], [Config],
// the persistence interfaces ([UserProvider], [DeviceProvider]) and the
// [Notifier] collaborator. Engine methods are safe to call from multiple
// goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// The engine owns every security decision: when an account locks, when MFA is
// required, when a device is trusted, and how tokens expire. It does NOT own
// transport or storage mechanics — account and trusted-device rows live behind
// [UserProvider] and [DeviceProvider], reset-link delivery behind [Notifier],
// and session credentials behind the jwt and session sub-packages.
//
// # What this package must NOT do
//
//   - Read ambient process state (environment, files); all configuration
//     arrives through [Config].
//   - Distinguish "unknown account" from "wrong credential" in any result
//     visible to a caller of Authenticate or RequestPasswordReset.
//   - Fail a password-reset request because the notification could not be
//     delivered; the token stays valid and the failure is audited.
package sshauth
