package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"wisechat/internal/util"
	"wisechat/pkg/auth"
	"wisechat/pkg/domain"
	"wisechat/pkg/store"
)

const (
	minUsernameLen = 2
	maxUsernameLen = 50
)

// FindByUsername looks up an account by exact, case-sensitive username.
func (a *App) FindByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	user, ok, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("fetch user: %w", err)
	}
	return user, ok, nil
}

// Register creates a guest account and posts the opening message, which
// lazily creates the guest's chat with the superuser.
func (a *App) Register(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return domain.User{}, err
	}
	if password == "" {
		return domain.User{}, fmt.Errorf("%w: password required", ErrInvalidInput)
	}
	user, err := a.createAccount(ctx, username, password, domain.RoleGuest)
	if err != nil {
		return domain.User{}, err
	}
	if _, err := a.SendMessage(ctx, a.openingMessage, 0, user.ID, nil); err != nil {
		util.LoggerFromContext(ctx).Warn("seed opening message failed", "user_id", user.ID, "err", err)
	}
	return user, nil
}

// EnsureSuperuser provisions the superuser account once. Repeated calls return
// the existing superuser without touching its password.
func (a *App) EnsureSuperuser(ctx context.Context, username, password string) (domain.User, error) {
	existing, ok, err := a.store.GetSuperuser(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch superuser: %w", err)
	}
	if ok {
		if existing.Username != username {
			util.LoggerFromContext(ctx).Warn("configured admin username differs from provisioned superuser",
				"configured", username, "provisioned", existing.Username)
		}
		return existing, nil
	}
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return domain.User{}, err
	}
	if password == "" {
		return domain.User{}, fmt.Errorf("%w: admin password required", ErrInvalidInput)
	}
	if _, taken, err := a.store.GetUserByUsername(ctx, username); err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	} else if taken {
		return domain.User{}, fmt.Errorf("admin username %q is held by a guest: %w", username, ErrAlreadyExists)
	}
	user, err := a.createAccount(ctx, username, password, domain.RoleSuperuser)
	if err != nil {
		return domain.User{}, err
	}
	util.LoggerFromContext(ctx).Info("superuser provisioned", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// VerifyPassword compares candidate against the account's stored hash.
func (a *App) VerifyPassword(user domain.User, candidate string) bool {
	return auth.CheckPassword(candidate, user.PasswordHash)
}

// GetUser returns an account by id.
func (a *App) GetUser(ctx context.Context, id int64) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// ListUsers returns a page of accounts.
func (a *App) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	users, err := a.store.ListUsers(ctx, pageLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (a *App) createAccount(ctx context.Context, username, password string, role domain.UserRole) (domain.User, error) {
	if _, exists, err := a.store.GetUserByUsername(ctx, username); err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	} else if exists {
		return domain.User{}, ErrAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := a.store.CreateUser(ctx, domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    a.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrAlreadyExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidInput, minUsernameLen, maxUsernameLen)
	}
	return nil
}
