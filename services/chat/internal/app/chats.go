package app

import (
	"context"
	"errors"
	"fmt"

	"wisechat/internal/util"
	"wisechat/pkg/domain"
	"wisechat/pkg/store"
)

// GetOrCreateChatForGuest returns the guest's chat, pairing them with the superuser on first use.
func (a *App) GetOrCreateChatForGuest(ctx context.Context, guestID int64) (domain.Chat, error) {
	chat, err := a.store.EnsureGuestChat(ctx, guestID)
	switch {
	case err == nil:
		return chat, nil
	case errors.Is(err, store.ErrUserNotFound):
		return domain.Chat{}, ErrNotFound
	case errors.Is(err, store.ErrNotGuest):
		return domain.Chat{}, ErrNotGuest
	case errors.Is(err, store.ErrSuperuserMissing):
		return domain.Chat{}, ErrSuperuserMissing
	default:
		return domain.Chat{}, fmt.Errorf("ensure guest chat: %w", err)
	}
}

// ListChats returns a page of chats in id order.
func (a *App) ListChats(ctx context.Context, limit, offset int) ([]domain.Chat, error) {
	chats, err := a.store.ListChats(ctx, pageLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// GetChat returns one chat with its transcript.
func (a *App) GetChat(ctx context.Context, id int64) (domain.Chat, error) {
	chat, ok, err := a.store.GetChat(ctx, id)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("fetch chat: %w", err)
	}
	if !ok {
		return domain.Chat{}, ErrNotFound
	}
	return chat, nil
}

// ChatsForAccount lists the chats an account participates in.
func (a *App) ChatsForAccount(ctx context.Context, accountID int64) ([]domain.Chat, error) {
	chats, err := a.store.ListChatsByUser(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list chats for account: %w", err)
	}
	return chats, nil
}

// DeleteChat removes a chat with all its messages and attachments.
func (a *App) DeleteChat(ctx context.Context, id int64) (domain.Chat, error) {
	chat, paths, ok, err := a.store.DeleteChat(ctx, id)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("delete chat: %w", err)
	}
	if !ok {
		return domain.Chat{}, ErrNotFound
	}
	a.removeBlobs(ctx, paths)
	return chat, nil
}

// ClearChatHistory deletes every message of a chat except the chronologically first.
// A failed bulk delete is logged and not reported to the caller; the number of
// removed messages is returned.
func (a *App) ClearChatHistory(ctx context.Context, chatID int64) (int, error) {
	chat, err := a.GetChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if len(chat.Messages) <= 1 {
		return 0, nil
	}
	ids := make([]int64, 0, len(chat.Messages)-1)
	for _, msg := range chat.Messages[1:] {
		ids = append(ids, msg.ID)
	}
	paths, err := a.store.DeleteMessages(ctx, ids)
	if err != nil {
		util.LoggerFromContext(ctx).Error("clear chat history failed", "chat_id", chatID, "messages", len(ids), "err", err)
		return 0, nil
	}
	a.removeBlobs(ctx, paths)
	return len(ids), nil
}

// ChatsWithLastMessage summarizes accountID's chats as seen by a viewer of the given role:
// the counterpart is the participant holding viewer.Counterpart(). Participants with any
// other role are never shown.
func (a *App) ChatsWithLastMessage(ctx context.Context, accountID int64, viewer domain.UserRole) ([]domain.ChatSummary, error) {
	chats, err := a.ChatsForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	authors := make(map[int64]string)
	out := make([]domain.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		if len(chat.Messages) == 0 {
			return nil, fmt.Errorf("%w: chat %d has no messages", ErrDataIntegrity, chat.ID)
		}
		last := chat.Messages[0]
		for _, msg := range chat.Messages[1:] {
			if !msg.CreatedAt.Before(last.CreatedAt) {
				last = msg
			}
		}
		var counterpart *domain.UserName
		for i := range chat.Users {
			if chat.Users[i].Role == viewer.Counterpart() {
				counterpart = &chat.Users[i]
				break
			}
		}
		if counterpart == nil {
			return nil, fmt.Errorf("%w: chat %d has no %s participant", ErrDataIntegrity, chat.ID, viewer.Counterpart())
		}
		author, ok := authors[last.UserID]
		if !ok {
			user, found, err := a.store.GetUserByID(ctx, last.UserID)
			if err != nil {
				return nil, fmt.Errorf("fetch message author: %w", err)
			}
			if !found {
				return nil, fmt.Errorf("%w: message %d author %d missing", ErrDataIntegrity, last.ID, last.UserID)
			}
			author = user.Username
			authors[last.UserID] = author
		}
		out = append(out, domain.ChatSummary{
			ID:   chat.ID,
			User: *counterpart,
			LastMessage: domain.LastMessage{
				ID:        last.ID,
				Body:      last.Body,
				CreatedAt: last.CreatedAt,
				Username:  author,
			},
		})
	}
	return out, nil
}

func (a *App) removeBlobs(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := a.blobs.Remove(ctx, p); err != nil {
			util.LoggerFromContext(ctx).Warn("remove attachment failed", "path", p, "err", err)
		}
	}
}
