package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keepup/keepup-api/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

type createCommentRequest struct {
	AuthorID string `json:"authorId"`
	Content  string `json:"content" validate:"required,max=1000"`
}

// HTTP: GET /api/posts/{id}/comments
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HTTP: POST /api/posts/{id}/comments
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	actor := viewerID(r)
	if err := checkActor(actor, req.AuthorID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.comments.Create(r.Context(), chi.URLParam(r, "id"), actor, req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HTTP: DELETE /api/posts/{id}/comments/{commentId}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.comments.Delete(r.Context(), viewerID(r), chi.URLParam(r, "id"), chi.URLParam(r, "commentId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: POST /api/posts/{id}/comments/{commentId}/like
func (h *CommentHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	comment, err := h.comments.ToggleLike(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "commentId"), viewerID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}
