package server

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"wisechat/pkg/domain"
	"wisechat/services/chat/internal/app"
)

const multipartMemory = 8 << 20

type createMessageRequest struct {
	Message string `json:"message"`
	ChatID  int64  `json:"chat_id"`
	UserID  int64  `json:"user_id"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request, caller domain.User) {
	var req createMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	authorID, ok := s.resolveAuthor(w, r, caller, req.UserID)
	if !ok {
		return
	}
	msg, err := s.app.SendMessage(r.Context(), req.Message, req.ChatID, authorID, nil)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleCreateMessageWithFiles accepts multipart fields message, chat_id,
// user_id and any number of "files" parts.
func (s *Server) handleCreateMessageWithFiles(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	chatID, err := formInt(r, "chat_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat_id")
		return
	}
	userID, err := formInt(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	authorID, ok := s.resolveAuthor(w, r, caller, userID)
	if !ok {
		return
	}

	headers := r.MultipartForm.File["files"]
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	attachments := make([]app.Attachment, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable upload")
			return
		}
		opened = append(opened, f)
		attachments = append(attachments, app.Attachment{Filename: fh.Filename, Content: f})
	}

	msg, err := s.app.SendMessage(r.Context(), r.FormValue("message"), chatID, authorID, attachments)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, caller domain.User) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	msg, err := s.app.DeleteMessage(r.Context(), caller, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleBulkDeleteMessages(w http.ResponseWriter, r *http.Request, caller domain.User) {
	var req bulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}
	if err := s.app.DeleteMessages(r.Context(), req.IDs); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "messages_deleted", "success", "user_id", caller.ID, "count", len(req.IDs))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": req.IDs})
}

// resolveAuthor defaults a missing user_id to the caller and refuses to post on behalf of others.
func (s *Server) resolveAuthor(w http.ResponseWriter, r *http.Request, caller domain.User, requested int64) (int64, bool) {
	if requested == 0 || requested == caller.ID {
		return caller.ID, true
	}
	s.audit(r, "impersonation", "failure", "user_id", caller.ID, "requested", requested)
	s.writeAppError(w, r, app.ErrPermissionDenied)
	return 0, false
}

func formInt(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
