package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "alice")
	if user.ID == "" {
		t.Error("CreateUser() did not set ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set CreatedAt")
	}

	got, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Username != "alice" || got.Email != "alice@example.com" {
		t.Errorf("got %s/%s, want alice/alice@example.com", got.Username, got.Email)
	}
	if got.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "hash")
	}
	if got.Settings != model.DefaultSettings() {
		t.Errorf("Settings = %+v, want defaults", got.Settings)
	}
	if got.Friends == nil || got.Groups == nil {
		t.Error("Friends and Groups should be empty, not nil")
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestCreateUserConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "alice")

	tests := []struct {
		name      string
		user      *model.User
		wantField string
	}{
		{
			name:      "duplicate username",
			user:      &model.User{Username: "alice", Email: "other@example.com"},
			wantField: "username",
		},
		{
			name:      "duplicate email",
			user:      &model.User{Username: "alice2", Email: "alice@example.com"},
			wantField: "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.CreateUser(ctx, tt.user)
			if !errors.Is(err, apperror.ErrConflict) {
				t.Fatalf("error = %v, want ErrConflict", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestGetUserByIDNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByLogin(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")

	for _, login := range []string{"alice", "alice@example.com"} {
		got, err := db.GetUserByLogin(ctx, login)
		if err != nil {
			t.Fatalf("GetUserByLogin(%q) error = %v", login, err)
		}
		if got.ID != alice.ID {
			t.Errorf("GetUserByLogin(%q).ID = %s, want %s", login, got.ID, alice.ID)
		}
	}

	if _, err := db.GetUserByLogin(ctx, "bob"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown login error = %v, want ErrNotFound", err)
	}
}

func TestListUsersAndSummaries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	carol := createTestUser(t, db, "carol")
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	if err := db.AddFriend(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("AddFriend() error = %v", err)
	}

	users, err := db.ListUsers(ctx, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("len = %d, want 3", len(users))
	}
	if users[0].Username != "alice" || users[2].Username != "carol" {
		t.Errorf("order = %s,%s,%s; want alphabetical", users[0].Username, users[1].Username, users[2].Username)
	}
	if !users[0].IsFriend(bob.ID) {
		t.Error("alice's friends should be loaded in list results")
	}

	summaries, err := db.GetUserSummaries(ctx, []string{alice.ID, carol.ID, "ghost"})
	if err != nil {
		t.Fatalf("GetUserSummaries() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if summaries[carol.ID].Username != "carol" {
		t.Errorf("summary username = %q, want carol", summaries[carol.ID].Username)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	user.Name = "Alice A."
	user.Bio = "hello"
	user.Settings.Theme = model.ThemeDark
	user.Settings.Privacy.AllowFriendRequests = false
	if err := db.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	got, err := db.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Name != "Alice A." || got.Bio != "hello" {
		t.Errorf("name/bio = %q/%q", got.Name, got.Bio)
	}
	if got.Settings.Theme != model.ThemeDark {
		t.Errorf("Theme = %q, want dark", got.Settings.Theme)
	}
	if got.Settings.Privacy.AllowFriendRequests {
		t.Error("AllowFriendRequests should be false after update")
	}

	missing := &model.User{ID: "nonexistent"}
	if err := db.UpdateUser(ctx, missing); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMarkPosted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := db.MarkPosted(ctx, user.ID, at); err != nil {
		t.Fatalf("MarkPosted() error = %v", err)
	}

	got, err := db.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.LastPostedAt == nil || !got.LastPostedAt.Equal(at) {
		t.Errorf("LastPostedAt = %v, want %v", got.LastPostedAt, at)
	}
}

// =========================================================================
// GITHUB UPSERT TESTS
// =========================================================================

func TestUpsertGitHubUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ghID := int64(4242)

	first := &model.User{
		Username:       "octocat",
		Email:          "octocat@github.local",
		GitHubID:       &ghID,
		ProfilePicture: "https://avatars/1",
		Settings:       model.DefaultSettings(),
	}
	if err := db.UpsertGitHubUser(ctx, first); err != nil {
		t.Fatalf("first UpsertGitHubUser() error = %v", err)
	}

	second := &model.User{
		Username:       "octocat",
		Email:          "octocat@github.local",
		GitHubID:       &ghID,
		ProfilePicture: "https://avatars/2",
	}
	if err := db.UpsertGitHubUser(ctx, second); err != nil {
		t.Fatalf("second UpsertGitHubUser() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second upsert ID = %s, want existing %s", second.ID, first.ID)
	}
	if second.ProfilePicture != "https://avatars/2" {
		t.Errorf("ProfilePicture = %q, want refreshed value", second.ProfilePicture)
	}
}

// =========================================================================
// FRIENDSHIP TESTS
// =========================================================================

func TestFriendshipIsSymmetric(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	// Adding twice must not duplicate.
	for i := 0; i < 2; i++ {
		if err := db.AddFriend(ctx, alice.ID, bob.ID); err != nil {
			t.Fatalf("AddFriend() error = %v", err)
		}
	}

	a, _ := db.GetUserByID(ctx, alice.ID)
	b, _ := db.GetUserByID(ctx, bob.ID)
	if len(a.Friends) != 1 || a.Friends[0] != bob.ID {
		t.Errorf("alice.Friends = %v, want [%s]", a.Friends, bob.ID)
	}
	if len(b.Friends) != 1 || b.Friends[0] != alice.ID {
		t.Errorf("bob.Friends = %v, want [%s]", b.Friends, alice.ID)
	}

	if err := db.RemoveFriend(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("RemoveFriend() error = %v", err)
	}
	a, _ = db.GetUserByID(ctx, alice.ID)
	b, _ = db.GetUserByID(ctx, bob.ID)
	if len(a.Friends) != 0 || len(b.Friends) != 0 {
		t.Errorf("after remove: alice=%v bob=%v, want both empty", a.Friends, b.Friends)
	}
}

func TestAddFriendUnknownUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	err := db.AddFriend(context.Background(), alice.ID, "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	a, _ := db.GetUserByID(context.Background(), alice.ID)
	if len(a.Friends) != 0 {
		t.Errorf("alice.Friends = %v, want empty after failed add", a.Friends)
	}
}
