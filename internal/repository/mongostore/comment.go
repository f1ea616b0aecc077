package mongostore

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

var _ repository.CommentRepository = (*Store)(nil)

func (s *Store) CreateComment(ctx context.Context, comment *model.Comment) error {
	ok, err := exists(ctx, s.posts(), comment.PostID)
	if err != nil {
		return fmt.Errorf("mongo: checking post %s: %w", comment.PostID, err)
	}
	if !ok {
		return apperror.NotFound("post", comment.PostID)
	}

	ts := now()
	comment.ID = xid.New().String()
	comment.CreatedAt = ts
	comment.UpdatedAt = ts
	comment.Likes = []string{}

	if _, err := s.comments().InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("mongo: creating comment on post %s: %w", comment.PostID, err)
	}
	return nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	if err := s.comments().FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFoundOr(err, "comment", id, "getting comment "+id)
	}
	c.Likes = emptyIfNil(c.Likes)
	return &c, nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	cur, err := s.comments().Find(ctx,
		bson.M{"postId": postID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing comments for post %s: %w", postID, err)
	}
	comments := []model.Comment{}
	if err := cur.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("mongo: decoding comments: %w", err)
	}
	for i := range comments {
		comments[i].Likes = emptyIfNil(comments[i].Likes)
	}
	return comments, nil
}

func (s *Store) CountComments(ctx context.Context, postIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	cur, err := s.comments().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"postId": bson.M{"$in": postIDs}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$postId"},
			{Key: "n", Value: bson.M{"$sum": 1}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: counting comments: %w", err)
	}
	var rows []struct {
		PostID string `bson:"_id"`
		N      int    `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongo: decoding comment counts: %w", err)
	}
	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	return counts, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.comments().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: deleting comment %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("comment", id)
	}
	return nil
}

func (s *Store) ToggleCommentLike(ctx context.Context, commentID, userID string) (*model.Comment, error) {
	var c model.Comment
	err := s.comments().FindOneAndUpdate(ctx,
		bson.M{"_id": commentID},
		toggleUpdate("likes", userID, now()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return nil, notFoundOr(err, "comment", commentID, "toggling like on comment "+commentID)
	}
	c.Likes = emptyIfNil(c.Likes)
	return &c, nil
}
