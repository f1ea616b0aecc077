package mongostore

import (
	"context"
	"fmt"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

var _ repository.GroupRepository = (*Store)(nil)

// CreateGroup stores the group with the admin as its first member.
func (s *Store) CreateGroup(ctx context.Context, group *model.Group) error {
	ts := now()
	group.ID = xid.New().String()
	group.CreatedAt = ts
	group.UpdatedAt = ts

	members := []string{group.AdminID}
	for _, id := range group.Members {
		if !model.Contains(members, id) {
			members = append(members, id)
		}
	}
	group.Members = members

	if _, err := s.groups().InsertOne(ctx, group); err != nil {
		return fmt.Errorf("mongo: creating group: %w", err)
	}
	return nil
}

func (s *Store) GetGroupByID(ctx context.Context, id string) (*model.Group, error) {
	var g model.Group
	if err := s.groups().FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, notFoundOr(err, "group", id, "getting group "+id)
	}
	g.Members = emptyIfNil(g.Members)
	return &g, nil
}

// ListGroups pages over the groups viewerID may see.
func (s *Store) ListGroups(ctx context.Context, viewerID string, opts repository.ListOptions) ([]model.Group, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"settings.privacy": bson.M{"$ne": model.GroupSecret}},
		bson.M{"members": viewerID},
	}}
	cur, err := s.groups().Find(ctx, filter, findPage(opts, newestFirst))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing groups: %w", err)
	}
	groups := []model.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("mongo: decoding groups: %w", err)
	}
	for i := range groups {
		groups[i].Members = emptyIfNil(groups[i].Members)
	}
	return groups, nil
}

// DeleteGroup removes the group and detaches its posts.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	res, err := s.groups().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: deleting group %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("group", id)
	}
	_, err = s.posts().UpdateMany(ctx,
		bson.M{"groupId": id},
		bson.M{"$unset": bson.M{"groupId": ""}},
	)
	if err != nil {
		return fmt.Errorf("mongo: detaching posts of group %s: %w", id, err)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, groupID, userID string) error {
	ok, err := exists(ctx, s.users(), userID)
	if err != nil {
		return fmt.Errorf("mongo: checking user %s: %w", userID, err)
	}
	if !ok {
		return apperror.NotFound("user", userID)
	}

	res, err := s.groups().UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$addToSet": bson.M{"members": userID}, "$set": bson.M{"updatedAt": now()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: adding member %s to group %s: %w", userID, groupID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("group", groupID)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := s.groups().UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$pull": bson.M{"members": userID}, "$set": bson.M{"updatedAt": now()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: removing member %s from group %s: %w", userID, groupID, err)
	}
	return nil
}
