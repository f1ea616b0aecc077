package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

// Feed scopes.
const (
	ScopeAll     = "all"
	ScopeFriends = "friends"
)

// PostService handles posts, the feed and like/save toggles.
type PostService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewPostService(store repository.Store, logger *slog.Logger) *PostService {
	return &PostService{store: store, logger: logger, now: time.Now}
}

type CreatePostInput struct {
	AuthorID string
	Content  string
	MediaURL string
	GroupID  string
}

// Create publishes a post and stamps the author's lastPostedAt. Posting
// into a group requires membership, and only the admin may post when the
// group disallows member posts.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*model.Post, error) {
	if strings.TrimSpace(in.AuthorID) == "" {
		return nil, apperror.ValidationFailed("authorId", "author is required")
	}
	content, err := requireText("content", in.Content, MaxContentLength)
	if err != nil {
		return nil, err
	}
	mediaURL, err := optionalText("mediaUrl", in.MediaURL, MaxMediaURLLength)
	if err != nil {
		return nil, err
	}

	author, err := s.store.GetUserByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	if in.GroupID != "" {
		group, err := s.store.GetGroupByID(ctx, in.GroupID)
		if err != nil {
			return nil, err
		}
		if !group.HasMember(author.ID) {
			if !group.VisibleTo(author.ID) {
				return nil, apperror.NotFound("group", in.GroupID)
			}
			return nil, apperror.Forbidden("you must be a member of the group to post in it")
		}
		if !group.Settings.AllowMemberPosts && group.AdminID != author.ID {
			return nil, apperror.Forbidden("only the group admin can post in this group")
		}
	}

	post := &model.Post{
		AuthorID: author.ID,
		Content:  content,
		MediaURL: mediaURL,
		GroupID:  in.GroupID,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		s.logger.Error("failed to create post",
			slog.String("author_id", author.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	if err := s.store.MarkPosted(ctx, author.ID, post.CreatedAt); err != nil {
		// The post exists; a stale hasPostedToday is not worth failing for.
		s.logger.Warn("failed to mark user posted",
			slog.String("user_id", author.ID),
			slog.String("error", err.Error()),
		)
	}

	post.Author = author.Summary()
	post.Comments = []model.Comment{}

	s.logger.Info("post created", slog.String("id", post.ID), slog.String("author_id", author.ID))
	return post, nil
}

// Get returns a post with its author, comments and comment count.
func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}

	comments, err := s.store.ListComments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading comments: %w", err)
	}
	if err := populateComments(ctx, s.store, comments); err != nil {
		return nil, err
	}
	post.Comments = comments
	post.CommentCount = len(comments)

	if err := s.populate(ctx, []*model.Post{post}, false); err != nil {
		return nil, err
	}
	return post, nil
}

type FeedOptions struct {
	Scope string
	repository.ListOptions
}

// Feed lists posts newest first. ScopeFriends narrows it to the viewer, the
// viewer's friends and the viewer's groups, and needs a viewer.
func (s *PostService) Feed(ctx context.Context, viewerID string, opts FeedOptions) ([]model.Post, error) {
	filter := repository.PostFilter{ListOptions: opts.ListOptions}

	switch opts.Scope {
	case "", ScopeAll:
	case ScopeFriends:
		if viewerID == "" {
			return nil, apperror.Unauthorized("sign in to see your friends feed")
		}
		viewer, err := s.store.GetUserByID(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		filter.AuthorIDs = append([]string{viewer.ID}, viewer.Friends...)
		filter.GroupIDs = viewer.Groups
	default:
		return nil, apperror.ValidationFailed("scope", "scope must be all or friends")
	}

	return s.list(ctx, filter)
}

// ListByAuthor returns one user's posts. Unknown users are 404.
func (s *PostService) ListByAuthor(ctx context.Context, authorID string, opts repository.ListOptions) ([]model.Post, error) {
	if _, err := s.store.GetUserByID(ctx, authorID); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.PostFilter{AuthorIDs: []string{authorID}, ListOptions: opts})
}

// ListByGroup returns the posts in a group the viewer can see.
func (s *PostService) ListByGroup(ctx context.Context, viewerID, groupID string, opts repository.ListOptions) ([]model.Post, error) {
	group, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.VisibleTo(viewerID) {
		return nil, apperror.NotFound("group", groupID)
	}
	return s.list(ctx, repository.PostFilter{GroupIDs: []string{groupID}, ListOptions: opts})
}

// ListSaved returns the posts userID has saved.
func (s *PostService) ListSaved(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Post, error) {
	return s.list(ctx, repository.PostFilter{SavedBy: userID, ListOptions: opts})
}

func (s *PostService) list(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	posts, err := s.store.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts: %w", err)
	}

	ptrs := make([]*model.Post, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	if err := s.populate(ctx, ptrs, true); err != nil {
		return nil, err
	}
	return posts, nil
}

// populate resolves authors and, when counts is set, comment counts.
func (s *PostService) populate(ctx context.Context, posts []*model.Post, counts bool) error {
	if len(posts) == 0 {
		return nil
	}
	authorIDs := make([]string, len(posts))
	postIDs := make([]string, len(posts))
	for i, p := range posts {
		authorIDs[i] = p.AuthorID
		postIDs[i] = p.ID
	}

	authors, err := summaries(ctx, s.store, authorIDs)
	if err != nil {
		return fmt.Errorf("service/post: %w", err)
	}

	var n map[string]int
	if counts {
		if n, err = s.store.CountComments(ctx, postIDs); err != nil {
			return fmt.Errorf("service/post: counting comments: %w", err)
		}
	}

	for _, p := range posts {
		p.Author = authors[p.AuthorID]
		if counts {
			p.CommentCount = n[p.ID]
		}
	}
	return nil
}

type UpdatePostInput struct {
	Content  *string
	MediaURL *string
}

// Update edits a post. Only its author may.
func (s *PostService) Update(ctx context.Context, actorID, id string, in UpdatePostInput) (*model.Post, error) {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, apperror.Forbidden("you can only edit your own posts")
	}

	if in.Content != nil {
		if post.Content, err = requireText("content", *in.Content, MaxContentLength); err != nil {
			return nil, err
		}
	}
	if in.MediaURL != nil {
		if post.MediaURL, err = optionalText("mediaUrl", *in.MediaURL, MaxMediaURLLength); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: updating post %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a post with its comments, likes and saves. Only its
// author may.
func (s *PostService) Delete(ctx context.Context, actorID, id string) error {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return apperror.Forbidden("you can only delete your own posts")
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/post: deleting post %s: %w", id, err)
	}

	s.logger.Info("post deleted", slog.String("id", id), slog.String("author_id", actorID))
	return nil
}

// ToggleLike adds userID to the post's likes, or removes it if already
// there.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	return s.toggle(ctx, postID, userID, s.store.ToggleLike, "like")
}

// ToggleSave does the same for the post's savedBy set.
func (s *PostService) ToggleSave(ctx context.Context, postID, userID string) (*model.Post, error) {
	return s.toggle(ctx, postID, userID, s.store.ToggleSave, "save")
}

func (s *PostService) toggle(
	ctx context.Context,
	postID, userID string,
	fn func(ctx context.Context, postID, userID string) (*model.Post, error),
	action string,
) (*model.Post, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user is required")
	}

	post, err := fn(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/post: toggling %s on %s: %w", action, postID, err)
	}
	if err := s.populate(ctx, []*model.Post{post}, true); err != nil {
		return nil, err
	}
	return post, nil
}
