package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

// GroupService handles groups and their membership.
//
// VISIBILITY RULES:
//   - public:  listed, anyone may join
//   - private: listed, members are added by the admin (or by members when
//     allowMemberInvites is on)
//   - secret:  like private, and non-members get 404 for everything
type GroupService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewGroupService(store repository.Store, logger *slog.Logger) *GroupService {
	return &GroupService{store: store, logger: logger}
}

type CreateGroupInput struct {
	Name        string
	Description string
	Avatar      string
	Privacy     model.GroupPrivacy
	// AllowMemberPosts defaults to true when nil.
	AllowMemberPosts   *bool
	AllowMemberInvites bool
}

// Create makes actorID the admin and first member of a new group.
func (s *GroupService) Create(ctx context.Context, actorID string, in CreateGroupInput) (*model.Group, error) {
	name, err := requireText("name", in.Name, MaxGroupNameLength)
	if err != nil {
		return nil, err
	}
	desc, err := optionalText("description", in.Description, MaxGroupDescLength)
	if err != nil {
		return nil, err
	}
	privacy := in.Privacy
	if privacy == "" {
		privacy = model.GroupPublic
	}
	if !privacy.Valid() {
		return nil, apperror.ValidationFailed("privacy", "privacy must be public, private or secret")
	}
	allowPosts := true
	if in.AllowMemberPosts != nil {
		allowPosts = *in.AllowMemberPosts
	}

	if _, err := s.store.GetUserByID(ctx, actorID); err != nil {
		return nil, err
	}

	group := &model.Group{
		Name:        name,
		Description: desc,
		AdminID:     actorID,
		Avatar:      in.Avatar,
		Settings: model.GroupSettings{
			Privacy:            privacy,
			AllowMemberPosts:   allowPosts,
			AllowMemberInvites: in.AllowMemberInvites,
		},
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("service/group: creating group: %w", err)
	}

	s.logger.Info("group created", slog.String("id", group.ID), slog.String("admin_id", actorID))
	return group, nil
}

// List returns the groups viewerID can see.
func (s *GroupService) List(ctx context.Context, viewerID string, opts repository.ListOptions) ([]model.Group, error) {
	groups, err := s.store.ListGroups(ctx, viewerID, opts)
	if err != nil {
		return nil, fmt.Errorf("service/group: listing groups: %w", err)
	}
	return groups, nil
}

// Get returns a group, or not found if viewerID may not see it.
func (s *GroupService) Get(ctx context.Context, viewerID, id string) (*model.Group, error) {
	group, err := s.store.GetGroupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !group.VisibleTo(viewerID) {
		return nil, apperror.NotFound("group", id)
	}
	return group, nil
}

// Delete removes a group. Only the admin may.
func (s *GroupService) Delete(ctx context.Context, actorID, id string) error {
	group, err := s.Get(ctx, actorID, id)
	if err != nil {
		return err
	}
	if group.AdminID != actorID {
		return apperror.Forbidden("only the group admin can delete the group")
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/group: deleting group %s: %w", id, err)
	}

	s.logger.Info("group deleted", slog.String("id", id))
	return nil
}

// AddMember adds userID to the group. An empty userID means the caller is
// joining.
func (s *GroupService) AddMember(ctx context.Context, actorID, groupID, userID string) (*model.Group, error) {
	if userID == "" {
		userID = actorID
	}
	group, err := s.Get(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}
	if group.HasMember(userID) {
		return group, nil
	}

	if err := canAdd(group, actorID, userID); err != nil {
		return nil, err
	}

	if err := s.store.AddMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/group: adding member: %w", err)
	}

	s.logger.Info("group member added", slog.String("group_id", groupID), slog.String("user_id", userID))
	return s.store.GetGroupByID(ctx, groupID)
}

func canAdd(group *model.Group, actorID, userID string) error {
	isAdmin := group.AdminID == actorID
	if userID == actorID {
		if group.Settings.Privacy == model.GroupPublic || isAdmin {
			return nil
		}
		return apperror.Forbidden("this group is invite only")
	}
	if isAdmin {
		return nil
	}
	if group.HasMember(actorID) && group.Settings.AllowMemberInvites {
		return nil
	}
	return apperror.Forbidden("you are not allowed to add members to this group")
}

// RemoveMember lets a member leave or the admin remove someone. The admin
// cannot leave their own group.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, userID string) (*model.Group, error) {
	group, err := s.Get(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}
	if userID == group.AdminID {
		return nil, apperror.ValidationFailed("userId", "the group admin cannot leave the group")
	}
	if actorID != userID && actorID != group.AdminID {
		return nil, apperror.Forbidden("only the group admin can remove other members")
	}

	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return nil, fmt.Errorf("service/group: removing member: %w", err)
	}
	return s.store.GetGroupByID(ctx, groupID)
}
