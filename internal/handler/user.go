package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/service"
)

// UserHandler serves profiles, friendships and per-user post lists.
type UserHandler struct {
	users  *service.UserService
	posts  *service.PostService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, posts *service.PostService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, posts: posts, logger: logger}
}

type updateUserRequest struct {
	Name           *string              `json:"name" validate:"omitempty,max=100"`
	Bio            *string              `json:"bio" validate:"omitempty,max=500"`
	ProfilePicture *string              `json:"profilePicture" validate:"omitempty,max=2048"`
	Settings       *model.SettingsPatch `json:"settings"`
}

type friendRequest struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId" validate:"required"`
}

// HandleList returns users, paginated with ?limit and ?offset.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	users, err := h.users.List(r.Context(), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate edits the caller's profile. Fields left out of the body
// are unchanged.
//
// HTTP: PUT /api/users/{id}
// Auth: Required, self only
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Update(r.Context(), viewerID(r), chi.URLParam(r, "id"), service.UpdateUserInput{
		Name:           req.Name,
		Bio:            req.Bio,
		ProfilePicture: req.ProfilePicture,
		Settings:       req.Settings,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: GET /api/users/{id}/posts
func (h *UserHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	posts, err := h.posts.ListByAuthor(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleListSaved returns the posts the caller has saved.
//
// HTTP: GET /api/users/me/saved
func (h *UserHandler) HandleListSaved(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	posts, err := h.posts.ListSaved(r.Context(), viewerID(r), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HTTP: GET /api/users/{id}/friends
func (h *UserHandler) HandleListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.users.ListFriends(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

// HandleAddFriend befriends {id} and the body's friendId. Both sides are
// updated.
//
// HTTP: POST /api/users/{id}/friends
// REQUEST BODY: {"friendId": "..."}
func (h *UserHandler) HandleAddFriend(w http.ResponseWriter, r *http.Request) {
	var req friendRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	actor := viewerID(r)
	if err := checkActor(actor, req.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.AddFriend(r.Context(), actor, chi.URLParam(r, "id"), req.FriendID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HTTP: DELETE /api/users/{id}/friends/{friendId}
func (h *UserHandler) HandleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.RemoveFriend(r.Context(), viewerID(r), chi.URLParam(r, "id"), chi.URLParam(r, "friendId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
