package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"size:50;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	Role         string    `gorm:"size:100;not null;default:guest;index"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

// ChatModel pairs one guest with the superuser. GuestID is unique so a guest
// can own at most one chat even under concurrent first messages.
type ChatModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	GuestID   int64          `gorm:"uniqueIndex;not null"`
	Users     []UserModel    `gorm:"many2many:chat_participants;joinForeignKey:ChatID;joinReferences:UserID;constraint:OnDelete:CASCADE"`
	Messages  []MessageModel `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (ChatModel) TableName() string { return "chats" }

type MessageModel struct {
	ID        int64       `gorm:"primaryKey;autoIncrement"`
	Body      string      `gorm:"column:message;type:text;not null"`
	ChatID    int64       `gorm:"not null;index"`
	UserID    int64       `gorm:"not null;index"`
	CreatedAt time.Time   `gorm:"not null;index"`
	Files     []FileModel `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (MessageModel) TableName() string { return "messages" }

type FileModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Path      string `gorm:"uniqueIndex;not null"`
	Size      int64  `gorm:"not null;default:0"`
	MessageID int64  `gorm:"not null;index"`
}

func (FileModel) TableName() string { return "files" }

const participantsTable = "chat_participants"
