package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/service"
)

// PostHandler serves the feed, single posts and the like/save toggles.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

type createPostRequest struct {
	AuthorID string `json:"authorId"`
	Content  string `json:"content" validate:"required,max=5000"`
	MediaURL string `json:"mediaUrl" validate:"omitempty,max=2048"`
	GroupID  string `json:"groupId"`
}

type updatePostRequest struct {
	Content  *string `json:"content" validate:"omitempty,max=5000"`
	MediaURL *string `json:"mediaUrl" validate:"omitempty,max=2048"`
}

type toggleRequest struct {
	UserID string `json:"userId"`
}

// HandleFeed lists posts newest first.
//
// HTTP: GET /api/posts?scope=all|friends&limit=20&offset=0
// Auth: Optional (scope=friends needs a signed-in viewer)
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	posts, err := h.posts.Feed(r.Context(), viewerID(r), service.FeedOptions{
		Scope:       r.URL.Query().Get("scope"),
		ListOptions: opts,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet returns one post with its comments.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate publishes a post as the caller. A body authorId other than
// the caller is refused.
//
// HTTP: POST /api/posts
// REQUEST BODY: {"content": "...", "mediaUrl": "...", "groupId": "..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	actor := viewerID(r)
	if err := checkActor(actor, req.AuthorID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.posts.Create(r.Context(), service.CreatePostInput{
		AuthorID: actor,
		Content:  req.Content,
		MediaURL: req.MediaURL,
		GroupID:  req.GroupID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HTTP: PUT /api/posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	post, err := h.posts.Update(r.Context(), viewerID(r), chi.URLParam(r, "id"), service.UpdatePostInput{
		Content:  req.Content,
		MediaURL: req.MediaURL,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HTTP: DELETE /api/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), viewerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: POST /api/posts/{id}/like
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, chi.URLParam(r, "id"), "like")
}

// HTTP: POST /api/posts/{id}/save
func (h *PostHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, chi.URLParam(r, "id"), "save")
}

// HandleLegacyToggle keeps the older query-string form working.
//
// HTTP: PUT /api/posts?id=...&action=like|save
func (h *PostHandler) HandleLegacyToggle(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, h.logger, apperror.ValidationFailed("id", "post id is required"))
		return
	}
	h.toggle(w, r, id, r.URL.Query().Get("action"))
}

// toggle runs a like or save toggle for the caller. The body may repeat
// the caller's id as userId; any other id is refused.
func (h *PostHandler) toggle(w http.ResponseWriter, r *http.Request, postID, action string) {
	var req toggleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	actor := viewerID(r)
	if err := checkActor(actor, req.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	toggle := h.posts.ToggleLike
	switch action {
	case "like":
	case "save":
		toggle = h.posts.ToggleSave
	default:
		writeError(w, h.logger, apperror.ValidationFailed("action", "action must be like or save"))
		return
	}

	post, err := toggle(r.Context(), postID, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}
