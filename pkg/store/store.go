package store

import (
	"context"
	"errors"

	"wisechat/pkg/domain"
)

var (
	// ErrDuplicate reports a unique constraint violation (username, file path, guest chat).
	ErrDuplicate = errors.New("duplicate record")
	// ErrUserNotFound is returned when an operation references an unknown account.
	ErrUserNotFound = errors.New("user not found")
	// ErrSuperuserMissing means no superuser account has been provisioned yet.
	ErrSuperuserMissing = errors.New("superuser not provisioned")
	// ErrNotGuest is returned when a guest-only chat operation targets a superuser.
	ErrNotGuest = errors.New("account is not a guest")
)

// Store defines persistence operations for accounts, chats, messages, and files.
// Lookups return (value, found, error); a miss is not an error.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id int64) (domain.User, bool, error)
	GetSuperuser(ctx context.Context) (domain.User, bool, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)

	// chats
	EnsureGuestChat(ctx context.Context, guestID int64) (domain.Chat, error)
	ListChats(ctx context.Context, limit, offset int) ([]domain.Chat, error)
	GetChat(ctx context.Context, id int64) (domain.Chat, bool, error)
	ListChatsByUser(ctx context.Context, userID int64) ([]domain.Chat, error)
	DeleteChat(ctx context.Context, id int64) (domain.Chat, []string, bool, error)

	// messages
	CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	GetMessage(ctx context.Context, id int64) (domain.Message, bool, error)
	ListMessagesByChat(ctx context.Context, chatID int64) ([]domain.Message, error)
	ListMessagesByUser(ctx context.Context, userID int64) ([]domain.Message, error)
	DeleteMessages(ctx context.Context, ids []int64) ([]string, error)

	// files
	CreateFile(ctx context.Context, f domain.File) (domain.File, error)
	GetFile(ctx context.Context, id int64) (domain.File, bool, error)
	GetFileByPath(ctx context.Context, path string) (domain.File, bool, error)
	GetFileForMessage(ctx context.Context, messageID, fileID int64) (domain.File, bool, error)
	ListFiles(ctx context.Context, limit, offset int) ([]domain.File, error)
	DeleteFile(ctx context.Context, id int64) (string, bool, error)
	UpdateFileSize(ctx context.Context, path string, size int64) (bool, error)
}

// SessionStore issues and resolves bearer credentials bound to a subject.
type SessionStore interface {
	NewSession(subject string) (string, error)
	GetSubjectByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
