package app

import (
	"context"
	"fmt"
	"strings"

	"wisechat/pkg/domain"
)

// Authenticate checks a username/password pair and issues a bearer token.
// An unknown username yields ErrNotFound and a wrong password ErrInvalidPassword.
func (a *App) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, ok, err := a.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	if !a.VerifyPassword(user, password) {
		return "", ErrInvalidPassword
	}
	token, err := a.sessions.NewSession(user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// ResolveCaller maps a bearer token onto the account it was issued for.
func (a *App) ResolveCaller(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrInvalidCredential
	}
	username, ok, err := a.sessions.GetSubjectByToken(token)
	if err != nil || !ok {
		return domain.User{}, ErrInvalidCredential
	}
	user, found, err := a.FindByUsername(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, ErrInactiveOrMissingUser
	}
	if _, known := domain.ParseUserRole(string(user.Role)); !known {
		return domain.User{}, ErrInactiveOrMissingUser
	}
	return user, nil
}

// RequireRole fails with ErrPermissionDenied unless caller holds role.
func RequireRole(caller domain.User, role domain.UserRole) error {
	if caller.Role != role {
		return ErrPermissionDenied
	}
	return nil
}

// Logout revokes the token for the remainder of its lifetime.
func (a *App) Logout(token string) error {
	if err := a.sessions.DeleteSession(strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
