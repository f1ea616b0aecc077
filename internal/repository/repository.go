// Package repository declares the persistence interfaces the service layer
// depends on. Two implementations exist: repository/sqlite (embedded, the
// default) and repository/mongostore (document database).
//
// Every method returns apperror.ErrNotFound (wrapped in an *AppError) when
// the addressed record does not exist, and apperror.ErrConflict when a
// uniqueness constraint is violated.
package repository

import (
	"context"
	"time"

	"github.com/keepup/keepup-api/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Bounds returns the effective limit and offset: a missing limit becomes
// DefaultLimit, anything above MaxLimit is capped, negative offsets are 0.
func (o ListOptions) Bounds() (limit, offset int) {
	limit = o.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset = o.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// PostFilter narrows ListPosts. Empty fields do not filter. AuthorIDs and
// GroupIDs are OR-ed together when both are set, which is exactly the
// friends feed: "posts by these people or in these groups".
type PostFilter struct {
	AuthorIDs []string
	GroupIDs  []string
	SavedBy   string
	ListOptions
}

// IsZero reports whether the filter selects every post.
func (f PostFilter) IsZero() bool {
	return len(f.AuthorIDs) == 0 && len(f.GroupIDs) == 0 && f.SavedBy == ""
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByLogin finds a user by username or email.
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	GetUserSummaries(ctx context.Context, ids []string) (map[string]*model.UserSummary, error)
	UpdateUser(ctx context.Context, user *model.User) error
	MarkPosted(ctx context.Context, userID string, at time.Time) error
	// AddFriend and RemoveFriend update both sides of the friendship.
	AddFriend(ctx context.Context, userID, friendID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	// DeletePost also removes the post's comments, likes and saves.
	DeletePost(ctx context.Context, id string) error
	// ToggleLike adds userID to the post's likes if absent and removes it
	// if present, atomically. It returns the updated post.
	ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error)
	ToggleSave(ctx context.Context, postID, userID string) (*model.Post, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
	CountComments(ctx context.Context, postIDs []string) (map[string]int, error)
	DeleteComment(ctx context.Context, id string) error
	ToggleCommentLike(ctx context.Context, commentID, userID string) (*model.Comment, error)
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, group *model.Group) error
	GetGroupByID(ctx context.Context, id string) (*model.Group, error)
	// ListGroups returns the groups viewerID may see: every public and
	// private group, plus secret groups viewerID belongs to.
	ListGroups(ctx context.Context, viewerID string, opts ListOptions) ([]model.Group, error)
	DeleteGroup(ctx context.Context, id string) error
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// Store is everything the application needs from a database. It is created
// once at startup and injected; there is no package-level connection.
type Store interface {
	UserRepository
	PostRepository
	CommentRepository
	GroupRepository
	Ping(ctx context.Context) error
	Close() error
}
