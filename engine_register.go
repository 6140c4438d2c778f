package sshauth

import (
	"context"
	"errors"
	"strings"
)

// Register creates a new account from an email and a plaintext password.
// The password is hashed before it reaches the provider; the plaintext is
// never stored. Returns [ErrDuplicateEmail] when the email is taken.
func (e *Engine) Register(ctx context.Context, email, password string) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	passwordHash, err := e.passwordHash.Hash(password)
	if err != nil {
		return nil, err
	}

	account, err := e.users.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreateDuplicate, false, 0, "", ErrDuplicateEmail, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return account, nil
}
