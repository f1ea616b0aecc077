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

// CommentService handles comments on posts.
type CommentService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewCommentService(store repository.Store, logger *slog.Logger) *CommentService {
	return &CommentService{store: store, logger: logger}
}

// List returns a post's comments oldest first, authors populated.
func (s *CommentService) List(ctx context.Context, postID string) ([]model.Comment, error) {
	if _, err := s.store.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/comment: listing comments: %w", err)
	}
	if err := populateComments(ctx, s.store, comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// Create adds a comment by authorID to a post.
func (s *CommentService) Create(ctx context.Context, postID, authorID, content string) (*model.Comment, error) {
	content, err := requireText("content", content, MaxCommentLength)
	if err != nil {
		return nil, err
	}
	author, err := s.store.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{PostID: postID, AuthorID: author.ID, Content: content}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/comment: creating comment: %w", err)
	}
	comment.Author = author.Summary()

	s.logger.Info("comment created",
		slog.String("id", comment.ID),
		slog.String("post_id", postID),
		slog.String("author_id", author.ID),
	)
	return comment, nil
}

// get loads a comment and checks it belongs to postID. A comment reached
// through the wrong post is reported as not found.
func (s *CommentService) get(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	comment, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.PostID != postID {
		return nil, apperror.NotFound("comment", commentID)
	}
	return comment, nil
}

// Delete removes a comment. The comment's author and the post's author
// may delete it.
func (s *CommentService) Delete(ctx context.Context, actorID, postID, commentID string) error {
	comment, err := s.get(ctx, postID, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != actorID {
		post, err := s.store.GetPostByID(ctx, postID)
		if err != nil {
			return err
		}
		if post.AuthorID != actorID {
			return apperror.Forbidden("you can only delete your own comments or comments on your posts")
		}
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/comment: deleting comment %s: %w", commentID, err)
	}
	return nil
}

// ToggleLike flips userID's like on a comment.
func (s *CommentService) ToggleLike(ctx context.Context, postID, commentID, userID string) (*model.Comment, error) {
	if _, err := s.get(ctx, postID, commentID); err != nil {
		return nil, err
	}
	comment, err := s.store.ToggleCommentLike(ctx, commentID, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/comment: toggling like on %s: %w", commentID, err)
	}

	one := []model.Comment{*comment}
	if err := populateComments(ctx, s.store, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}
