package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"wisechat/internal/util"
	"wisechat/pkg/domain"
	"wisechat/pkg/store"
)

// Attachment is one uploaded file accompanying a message.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// SendMessage stores a message from authorID in chatID. An unknown chat id is
// redirected to the author's own guest chat, which is created on demand.
// Attachment bytes are written before any row; a failed write aborts the whole message.
func (a *App) SendMessage(ctx context.Context, body string, chatID, authorID int64, attachments []Attachment) (domain.Message, error) {
	if strings.TrimSpace(body) == "" && len(attachments) == 0 {
		return domain.Message{}, fmt.Errorf("%w: message body or attachment required", ErrInvalidInput)
	}
	if _, err := a.GetUser(ctx, authorID); err != nil {
		return domain.Message{}, err
	}
	chat, ok, err := a.store.GetChat(ctx, chatID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("fetch chat: %w", err)
	}
	if !ok {
		chat, err = a.GetOrCreateChatForGuest(ctx, authorID)
		if err != nil {
			if errors.Is(err, ErrNotGuest) {
				return domain.Message{}, fmt.Errorf("chat %d: %w", chatID, ErrNotFound)
			}
			return domain.Message{}, err
		}
	}
	if !isParticipant(chat, authorID) {
		return domain.Message{}, ErrPermissionDenied
	}

	now := a.now().UTC()
	files := make([]domain.File, 0, len(attachments))
	for _, att := range attachments {
		f, err := a.storeAttachment(ctx, att)
		if err != nil {
			a.removeBlobs(ctx, filePaths(files))
			return domain.Message{}, err
		}
		files = append(files, f)
	}

	msg, err := a.store.CreateMessage(ctx, domain.Message{
		Body:      body,
		ChatID:    chat.ID,
		UserID:    authorID,
		CreatedAt: now,
		Files:     files,
	})
	if err != nil {
		a.removeBlobs(ctx, filePaths(files))
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Message{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

func (a *App) storeAttachment(ctx context.Context, att Attachment) (domain.File, error) {
	if att.Content == nil {
		return domain.File{}, fmt.Errorf("%w: empty attachment %q", ErrUploadFailed, att.Filename)
	}
	dir, name := a.uploads.Path(att.Filename, a.now())
	path := filepath.Join(dir, name)
	size, err := a.blobs.Save(ctx, path, att.Content)
	if err != nil {
		util.LoggerFromContext(ctx).Error("save attachment failed", "filename", att.Filename, "path", path, "err", err)
		return domain.File{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return domain.File{Name: name, Path: path, Size: size}, nil
}

// GetMessage returns a message with its files.
func (a *App) GetMessage(ctx context.Context, id int64) (domain.Message, error) {
	msg, ok, err := a.store.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("fetch message: %w", err)
	}
	if !ok {
		return domain.Message{}, ErrNotFound
	}
	return msg, nil
}

// ListMessagesByChat returns a chat transcript oldest first.
func (a *App) ListMessagesByChat(ctx context.Context, chatID int64) ([]domain.Message, error) {
	msgs, err := a.store.ListMessagesByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return msgs, nil
}

// ListMessagesByAccount returns messages authored by accountID oldest first.
func (a *App) ListMessagesByAccount(ctx context.Context, accountID int64) ([]domain.Message, error) {
	msgs, err := a.store.ListMessagesByUser(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account messages: %w", err)
	}
	return msgs, nil
}

// DeleteMessage removes one message. Guests may only delete their own messages.
func (a *App) DeleteMessage(ctx context.Context, caller domain.User, id int64) (domain.Message, error) {
	msg, err := a.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	if caller.Role != domain.RoleSuperuser && msg.UserID != caller.ID {
		return domain.Message{}, ErrPermissionDenied
	}
	if err := a.DeleteMessages(ctx, []int64{id}); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// DeleteMessages hard-deletes messages and their attachments.
func (a *App) DeleteMessages(ctx context.Context, ids []int64) error {
	paths, err := a.store.DeleteMessages(ctx, ids)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	a.removeBlobs(ctx, paths)
	return nil
}

func isParticipant(chat domain.Chat, userID int64) bool {
	for _, u := range chat.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

func filePaths(files []domain.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}
