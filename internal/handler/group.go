package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/service"
)

// GroupHandler serves groups, their membership and their posts.
type GroupHandler struct {
	groups *service.GroupService
	posts  *service.PostService
	logger *slog.Logger
}

func NewGroupHandler(groups *service.GroupService, posts *service.PostService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, posts: posts, logger: logger}
}

type createGroupRequest struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Description string              `json:"description" validate:"max=1000"`
	Avatar      string              `json:"avatar" validate:"omitempty,max=2048"`
	Settings    *groupSettingsInput `json:"settings"`
}

type groupSettingsInput struct {
	Privacy            string `json:"privacy" validate:"omitempty,oneof=public private secret"`
	AllowMemberPosts   *bool  `json:"allowMemberPosts"`
	AllowMemberInvites bool   `json:"allowMemberInvites"`
}

type addMemberRequest struct {
	UserID string `json:"userId"`
}

// HTTP: GET /api/groups
func (h *GroupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	groups, err := h.groups.List(r.Context(), viewerID(r), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// HandleCreate makes a group with the caller as admin.
//
// HTTP: POST /api/groups
// REQUEST BODY: {"name": "...", "settings": {"privacy": "private"}}
func (h *GroupHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	in := service.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
	}
	if s := req.Settings; s != nil {
		in.Privacy = model.GroupPrivacy(s.Privacy)
		in.AllowMemberPosts = s.AllowMemberPosts
		in.AllowMemberInvites = s.AllowMemberInvites
	}

	group, err := h.groups.Create(r.Context(), viewerID(r), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// HTTP: GET /api/groups/{id}
func (h *GroupHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.Get(r.Context(), viewerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// HTTP: DELETE /api/groups/{id}
func (h *GroupHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.Delete(r.Context(), viewerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/groups/{id}/posts
func (h *GroupHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	posts, err := h.posts.ListByGroup(r.Context(), viewerID(r), chi.URLParam(r, "id"), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleAddMember joins the group (no body) or adds the body's userId.
//
// HTTP: POST /api/groups/{id}/members
func (h *GroupHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	group, err := h.groups.AddMember(r.Context(), viewerID(r), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// HTTP: DELETE /api/groups/{id}/members/{userId}
func (h *GroupHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.RemoveMember(r.Context(), viewerID(r), chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}
