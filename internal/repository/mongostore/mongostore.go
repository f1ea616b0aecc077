// Package mongostore implements repository.Store on MongoDB.
//
// Documents keep sets (likes, savedBy, friends, members) as arrays of user
// ids. Toggles run as a single findOneAndUpdate with an aggregation
// pipeline, so concurrent toggles on the same document never lose an
// update. Document ids are xid strings, the same ids the SQLite store uses.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/repository"
)

var _ repository.Store = (*Store)(nil)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
	groupsCollection   = "groups"
)

// Store wraps a connected client and the application database. It is
// created once in main and injected; nothing in this package is global.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri, verifies the connection and ensures indexes exist.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "githubId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "authorId", Value: 1}}},
			{Keys: bson.D{{Key: "groupId", Value: 1}}},
			{Keys: bson.D{{Key: "savedBy", Value: 1}}},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		groupsCollection: {
			{Keys: bson.D{{Key: "members", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: creating %s indexes: %w", coll, err)
		}
	}
	return nil
}

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database. Tests use it for cleanup.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) users() *mongo.Collection    { return s.db.Collection(usersCollection) }
func (s *Store) posts() *mongo.Collection    { return s.db.Collection(postsCollection) }
func (s *Store) comments() *mongo.Collection { return s.db.Collection(commentsCollection) }
func (s *Store) groups() *mongo.Collection   { return s.db.Collection(groupsCollection) }

// MongoDB stores milliseconds; truncating here keeps the in-memory value
// equal to what a later read returns.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func findPage(opts repository.ListOptions, sort bson.D) *options.FindOptions {
	limit, offset := opts.Bounds()
	return options.Find().SetSort(sort).SetLimit(int64(limit)).SetSkip(int64(offset))
}

// toggleUpdate builds a pipeline update that removes userID from the array
// field if present and appends it otherwise.
func toggleUpdate(field, userID string, at time.Time) mongo.Pipeline {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: field, Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$in", Value: bson.A{userID, current}}},
				bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: current},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
				}}},
				bson.D{{Key: "$concatArrays", Value: bson.A{current, bson.A{userID}}}},
			}}}},
			{Key: "updatedAt", Value: at},
		}}},
	}
}

// duplicateField names the unique index a duplicate-key error violated.
func duplicateField(err error, fields ...string) (string, bool) {
	if !mongo.IsDuplicateKeyError(err) {
		return "", false
	}
	msg := err.Error()
	for _, f := range fields {
		if strings.Contains(msg, f+"_1") {
			return f, true
		}
	}
	return fields[0], true
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// exists reports whether coll holds a document with _id.
func exists(ctx context.Context, coll *mongo.Collection, id string) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func notFoundOr(err error, resource, id, op string) error {
	if isNoDocuments(err) {
		return apperror.NotFound(resource, id)
	}
	return fmt.Errorf("mongo: %s: %w", op, err)
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
