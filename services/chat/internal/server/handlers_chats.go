package server

import (
	"net/http"
	"strconv"

	"wisechat/pkg/domain"
	"wisechat/services/chat/internal/app"
)

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chats, err := s.app.ListChats(r.Context(), limit, offset)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	chat, err := s.app.GetOrCreateChatForGuest(r.Context(), userID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	chat, err := s.app.GetChat(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "scope")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	msgs, err := s.app.ListMessagesByChat(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(r, "scope")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	removed, err := s.app.ClearChatHistory(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "chat_cleared", "success", "chat_id", id, "user_id", user.ID, "removed", removed)
	writeJSON(w, http.StatusOK, map[string]any{"chat_id": id, "removed": removed})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	chat, err := s.app.DeleteChat(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "chat_deleted", "success", "chat_id", id)
	writeJSON(w, http.StatusOK, chat)
}

// handleAdminChats lists a user's chats for the superuser; the counterpart shown is the guest.
func (s *Server) handleAdminChats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	s.writeChatSummaries(w, r, domain.RoleSuperuser)
}

// handleGuestChats lists a guest's own chats; the counterpart shown is the superuser.
func (s *Server) handleGuestChats(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(r, "target")
	if ok && id != user.ID {
		s.writeAppError(w, r, app.ErrPermissionDenied)
		return
	}
	s.writeChatSummaries(w, r, domain.RoleGuest)
}

func (s *Server) writeChatSummaries(w http.ResponseWriter, r *http.Request, viewer domain.UserRole) {
	id, ok := pathID(r, "target")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	summaries, err := s.app.ChatsWithLastMessage(r.Context(), id, viewer)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleUserMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	msgs, err := s.app.ListMessagesByAccount(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
