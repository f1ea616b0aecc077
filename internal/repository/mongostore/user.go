package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

var _ repository.UserRepository = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	ts := now()
	user.ID = xid.New().String()
	user.CreatedAt = ts
	user.UpdatedAt = ts
	user.Friends = emptyIfNil(user.Friends)
	user.Groups = []string{}

	if _, err := s.users().InsertOne(ctx, user); err != nil {
		if field, ok := duplicateField(err, "username", "email", "githubId"); ok {
			return apperror.Conflict("user", field)
		}
		return fmt.Errorf("mongo: inserting user %q: %w", user.Username, err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id}, id)
}

func (s *Store) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	filter := bson.M{"$or": bson.A{bson.M{"username": login}, bson.M{"email": login}}}
	return s.findUser(ctx, filter, login)
}

func (s *Store) findUser(ctx context.Context, filter bson.M, key string) (*model.User, error) {
	var u model.User
	if err := s.users().FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, notFoundOr(err, "user", key, "getting user "+key)
	}
	if err := s.fillGroups(ctx, []*model.User{&u}); err != nil {
		return nil, err
	}
	return &u, nil
}

// fillGroups derives User.Groups from the groups' member arrays.
func (s *Store) fillGroups(ctx context.Context, users []*model.User) error {
	if len(users) == 0 {
		return nil
	}
	byID := make(map[string]*model.User, len(users))
	ids := make([]string, 0, len(users))
	for _, u := range users {
		u.Friends = emptyIfNil(u.Friends)
		u.Groups = []string{}
		byID[u.ID] = u
		ids = append(ids, u.ID)
	}

	cur, err := s.groups().Find(ctx,
		bson.M{"members": bson.M{"$in": ids}},
		options.Find().
			SetProjection(bson.M{"_id": 1, "members": 1}).
			SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return fmt.Errorf("mongo: loading group memberships: %w", err)
	}
	var groups []struct {
		ID      string   `bson:"_id"`
		Members []string `bson:"members"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return fmt.Errorf("mongo: decoding group memberships: %w", err)
	}

	for _, g := range groups {
		for _, m := range g.Members {
			if u, ok := byID[m]; ok {
				u.Groups = append(u.Groups, g.ID)
			}
		}
	}
	return nil
}

// UpsertGitHubUser refreshes the linked account if one exists, otherwise
// inserts user as a new account.
func (s *Store) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("mongo: upserting github user: missing github id")
	}

	var stored model.User
	err := s.users().FindOneAndUpdate(ctx,
		bson.M{"githubId": *user.GitHubID},
		bson.M{"$set": bson.M{"profilePicture": user.ProfilePicture, "updatedAt": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&stored)
	if isNoDocuments(err) {
		return s.CreateUser(ctx, user)
	}
	if err != nil {
		return fmt.Errorf("mongo: updating github user %d: %w", *user.GitHubID, err)
	}

	if err := s.fillGroups(ctx, []*model.User{&stored}); err != nil {
		return err
	}
	*user = stored
	return nil
}

func (s *Store) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	cur, err := s.users().Find(ctx, bson.M{}, findPage(opts, bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing users: %w", err)
	}
	users := []model.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongo: decoding users: %w", err)
	}

	ptrs := make([]*model.User, len(users))
	for i := range users {
		ptrs[i] = &users[i]
	}
	if err := s.fillGroups(ctx, ptrs); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) GetUserSummaries(ctx context.Context, ids []string) (map[string]*model.UserSummary, error) {
	out := make(map[string]*model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cur, err := s.users().Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1, "username": 1, "name": 1, "profilePicture": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: loading user summaries: %w", err)
	}
	var summaries []model.UserSummary
	if err := cur.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("mongo: decoding user summaries: %w", err)
	}
	for i := range summaries {
		out[summaries[i].ID] = &summaries[i]
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = now()
	res, err := s.users().UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{
			"name":           user.Name,
			"bio":            user.Bio,
			"profilePicture": user.ProfilePicture,
			"settings":       user.Settings,
			"updatedAt":      user.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("mongo: updating user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

func (s *Store) MarkPosted(ctx context.Context, userID string, at time.Time) error {
	res, err := s.users().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"lastPostedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("mongo: marking user %s posted: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// AddFriend writes both sides with $addToSet. If the second write fails the
// first is undone, so a one-sided friendship is never left behind.
func (s *Store) AddFriend(ctx context.Context, userID, friendID string) error {
	for _, id := range []string{userID, friendID} {
		ok, err := exists(ctx, s.users(), id)
		if err != nil {
			return fmt.Errorf("mongo: checking user %s: %w", id, err)
		}
		if !ok {
			return apperror.NotFound("user", id)
		}
	}

	return addBothSides(ctx, s.setFriend, userID, friendID)
}

// friendWriter applies op ("$addToSet" or "$pull") to userID's friend set
// and reports whether the set changed.
type friendWriter func(ctx context.Context, op, userID, friendID string) (bool, error)

// addBothSides writes the two edges of a friendship. When the second write
// fails the first is undone, but only if this call created it: an edge
// that existed before is left alone.
func addBothSides(ctx context.Context, write friendWriter, userID, friendID string) error {
	added, err := write(ctx, "$addToSet", userID, friendID)
	if err != nil {
		return err
	}
	if _, err := write(ctx, "$addToSet", friendID, userID); err != nil {
		if added {
			write(context.WithoutCancel(ctx), "$pull", userID, friendID)
		}
		return err
	}
	return nil
}

// RemoveFriend pulls both sides. $pull is idempotent, so a retry after a
// partial failure completes the removal.
func (s *Store) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if _, err := s.setFriend(ctx, "$pull", userID, friendID); err != nil {
		return err
	}
	_, err := s.setFriend(ctx, "$pull", friendID, userID)
	return err
}

// setFriend only matches documents the operation would change, so
// updatedAt moves only on a real change and MatchedCount says whether one
// happened.
func (s *Store) setFriend(ctx context.Context, op, userID, friendID string) (bool, error) {
	filter := bson.M{"_id": userID, "friends": friendID}
	if op == "$addToSet" {
		filter["friends"] = bson.M{"$ne": friendID}
	}
	res, err := s.users().UpdateOne(ctx, filter,
		bson.M{op: bson.M{"friends": friendID}, "$set": bson.M{"updatedAt": now()}},
	)
	if err != nil {
		return false, fmt.Errorf("mongo: %s friend %s on %s: %w", op, friendID, userID, err)
	}
	return res.MatchedCount > 0, nil
}
