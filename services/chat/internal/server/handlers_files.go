package server

import (
	"io"
	"mime"
	"net/http"

	"wisechat/internal/util"
	"wisechat/pkg/domain"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "target")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	f, rc, err := s.app.OpenFile(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		util.LoggerFromContext(r.Context()).Warn("download interrupted", "file_id", id, "err", err)
	}
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request, _ domain.User) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	files, err := s.app.ListFiles(r.Context(), limit, offset)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	if _, err := s.app.DeleteFile(r.Context(), id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "file_deleted", "success", "file_id", id, "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}
