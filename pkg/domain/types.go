package domain

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleGuest     UserRole = "guest"
	RoleSuperuser UserRole = "superuser"
)

// ParseUserRole maps a stored role string onto the closed set of roles.
// Unknown values are rejected instead of being treated as guests.
func ParseUserRole(raw string) (UserRole, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleGuest):
		return RoleGuest, true
	case string(RoleSuperuser):
		return RoleSuperuser, true
	default:
		return "", false
	}
}

// Counterpart returns the role on the other side of a guest/superuser chat.
func (r UserRole) Counterpart() UserRole {
	if r == RoleSuperuser {
		return RoleGuest
	}
	return RoleSuperuser
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserName is the short participant view used in chat listings.
type UserName struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

func (u User) Name() UserName {
	return UserName{ID: u.ID, Username: u.Username, Role: u.Role}
}

type Chat struct {
	ID       int64      `json:"id"`
	GuestID  int64      `json:"-"`
	Users    []UserName `json:"users"`
	Messages []Message  `json:"messages"`
}

type Message struct {
	ID        int64     `json:"id"`
	Body      string    `json:"message"`
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Files     []File    `json:"files"`
}

type File struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"-"`
	Size      int64  `json:"size"`
	MessageID int64  `json:"message_id"`
}

// LastMessage summarizes the newest message of a chat for admin listings.
type LastMessage struct {
	ID        int64     `json:"id"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Username  string    `json:"username"`
}

// ChatSummary is a chat seen from one participant: the counterpart and the last message.
type ChatSummary struct {
	ID          int64       `json:"id"`
	User        UserName    `json:"user"`
	LastMessage LastMessage `json:"last_message"`
}
