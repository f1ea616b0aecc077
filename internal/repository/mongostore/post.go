package mongostore

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

var _ repository.PostRepository = (*Store)(nil)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	ts := now()
	post.ID = xid.New().String()
	post.CreatedAt = ts
	post.UpdatedAt = ts
	post.Likes = []string{}
	post.SavedBy = []string{}

	if _, err := s.posts().InsertOne(ctx, post); err != nil {
		return fmt.Errorf("mongo: creating post: %w", err)
	}
	return nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := s.posts().FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFoundOr(err, "post", id, "getting post "+id)
	}
	normalizePost(&p)
	return &p, nil
}

func normalizePost(p *model.Post) {
	p.Likes = emptyIfNil(p.Likes)
	p.SavedBy = emptyIfNil(p.SavedBy)
}

func postFilter(f repository.PostFilter) bson.M {
	filter := bson.M{}

	var either bson.A
	if len(f.AuthorIDs) > 0 {
		either = append(either, bson.M{"authorId": bson.M{"$in": f.AuthorIDs}})
	}
	if len(f.GroupIDs) > 0 {
		either = append(either, bson.M{"groupId": bson.M{"$in": f.GroupIDs}})
	}
	if len(either) > 0 {
		filter["$or"] = either
	}
	if f.SavedBy != "" {
		filter["savedBy"] = f.SavedBy
	}
	return filter
}

func (s *Store) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	cur, err := s.posts().Find(ctx, postFilter(filter), findPage(filter.ListOptions, newestFirst))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing posts: %w", err)
	}
	posts := []model.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("mongo: decoding posts: %w", err)
	}
	for i := range posts {
		normalizePost(&posts[i])
	}
	return posts, nil
}

func (s *Store) UpdatePost(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = now()
	res, err := s.posts().UpdateOne(ctx,
		bson.M{"_id": post.ID},
		bson.M{"$set": bson.M{
			"content":   post.Content,
			"mediaUrl":  post.MediaURL,
			"updatedAt": post.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("mongo: updating post %s: %w", post.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// DeletePost removes the post and then its comments. Likes and saves live
// on the post document and go with it.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.posts().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: deleting post %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("post", id)
	}
	if _, err := s.comments().DeleteMany(ctx, bson.M{"postId": id}); err != nil {
		return fmt.Errorf("mongo: deleting comments of post %s: %w", id, err)
	}
	return nil
}

func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	return s.togglePostSet(ctx, "likes", postID, userID)
}

func (s *Store) ToggleSave(ctx context.Context, postID, userID string) (*model.Post, error) {
	return s.togglePostSet(ctx, "savedBy", postID, userID)
}

func (s *Store) togglePostSet(ctx context.Context, field, postID, userID string) (*model.Post, error) {
	var p model.Post
	err := s.posts().FindOneAndUpdate(ctx,
		bson.M{"_id": postID},
		toggleUpdate(field, userID, now()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		return nil, notFoundOr(err, "post", postID, "toggling "+field+" on post "+postID)
	}
	normalizePost(&p)
	return &p, nil
}
