package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/auth"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
	"github.com/keepup/keepup-api/internal/repository/sqlite"
)

// =========================================================================
// TEST ENVIRONMENT
// =========================================================================

// testEnv wires every service to one in-memory SQLite store, the same way
// the server does.
type testEnv struct {
	store    repository.Store
	users    *UserService
	posts    *PostService
	comments *CommentService
	groups   *GroupService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newTestEnvWithStore(t, db)
}

func newTestEnvWithStore(t *testing.T, store repository.Store) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenService("service-test-secret-123", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	logger := testLogger()
	return &testEnv{
		store:    store,
		users:    NewUserService(store, auth.NewPasswordServiceForTest(4), tokens, logger),
		posts:    NewPostService(store, logger),
		comments: NewCommentService(store, logger),
		groups:   NewGroupService(store, logger),
	}
}

// register creates an account with password "password123".
func (e *testEnv) register(t *testing.T, username string) *model.User {
	t.Helper()
	res, err := e.users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return res.User
}

func (e *testEnv) post(t *testing.T, authorID, content string) *model.Post {
	t.Helper()
	p, err := e.posts.Create(context.Background(), CreatePostInput{AuthorID: authorID, Content: content})
	if err != nil {
		t.Fatalf("Create post: %v", err)
	}
	return p
}

// failingStore wraps a real store and fails selected operations, to check
// that infrastructure errors are wrapped rather than reported as domain
// errors.
type failingStore struct {
	repository.Store
	err error
}

func (f *failingStore) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	return nil, f.err
}

func (f *failingStore) CreatePost(ctx context.Context, post *model.Post) error {
	return f.err
}

// assertErrorIs fails unless err matches target.
func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// assertField checks the AppError's Field.
func assertField(t *testing.T, err error, field string) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an *AppError", err)
	}
	if appErr.Field != field {
		t.Errorf("Field = %q, want %q", appErr.Field, field)
	}
}
