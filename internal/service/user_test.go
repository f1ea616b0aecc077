package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/auth"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

// =========================================================================
// REGISTER / LOGIN
// =========================================================================

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.users.Register(ctx, RegisterInput{
		Username: "  alice ",
		Email:    "Alice@Example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if res.User.Username != "alice" || res.User.Email != "alice@example.com" {
		t.Errorf("username/email = %q/%q, want trimmed and lower-cased", res.User.Username, res.User.Email)
	}
	if res.User.Name != "alice" {
		t.Errorf("Name = %q, want username as default", res.User.Name)
	}
	if res.User.PasswordHash == "password123" {
		t.Error("password stored in plain text")
	}

	id, err := env.users.ValidateToken(res.Token)
	if err != nil || id != res.User.ID {
		t.Errorf("ValidateToken() = %q, %v; want %q", id, err, res.User.ID)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	_, err := env.users.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "other@example.com", Password: "password123",
	})
	assertErrorIs(t, err, apperror.ErrConflict)
	assertField(t, err, "username")
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		in        RegisterInput
		wantField string
	}{
		{"missing username", RegisterInput{Email: "a@b.co", Password: "password123"}, "username"},
		{"short username", RegisterInput{Username: "ab", Email: "a@b.co", Password: "password123"}, "username"},
		{"username with space", RegisterInput{Username: "a b c", Email: "a@b.co", Password: "password123"}, "username"},
		{"bad email", RegisterInput{Username: "alice", Email: "not-an-email", Password: "password123"}, "email"},
		{"short password", RegisterInput{Username: "alice", Email: "a@b.co", Password: "short"}, "password"},
		{"long password", RegisterInput{Username: "alice", Email: "a@b.co", Password: strings.Repeat("x", 73)}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Register(context.Background(), tt.in)
			assertErrorIs(t, err, apperror.ErrValidation)
			assertField(t, err, tt.wantField)
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	tests := []struct {
		name     string
		login    string
		password string
		wantErr  error
	}{
		{"by username", "alice", "password123", nil},
		{"by email any case", "ALICE@example.com", "password123", nil},
		{"wrong password", "alice", "password124", apperror.ErrUnauthorized},
		{"unknown user", "bob", "password123", apperror.ErrUnauthorized},
		{"empty", "", "", apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.users.Login(context.Background(), tt.login, tt.password)
			if tt.wantErr != nil {
				assertErrorIs(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if res.User.ID != alice.ID || res.Token == "" {
				t.Errorf("Login() = %+v, want alice with a token", res)
			}
		})
	}
}

func TestLoginGitHub(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "octocat")

	gh := &auth.GitHubUser{ID: 99, Login: "octocat", AvatarURL: "https://avatars/99"}

	first, err := env.users.LoginGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("LoginGitHub() error = %v", err)
	}
	if first.User.Username != "octocat-gh99" {
		t.Errorf("Username = %q, want suffixed because octocat is taken", first.User.Username)
	}

	second, err := env.users.LoginGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("second LoginGitHub() error = %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Errorf("second login created a new account: %s != %s", second.User.ID, first.User.ID)
	}

	// GitHub accounts have no password to log in with.
	_, err = env.users.Login(ctx, "octocat-gh99", "")
	assertErrorIs(t, err, apperror.ErrValidation)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.users.ValidateToken("garbage")
	assertErrorIs(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// PROFILE
// =========================================================================

func TestGetComputesHasPostedToday(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	env.post(t, alice.ID, "hello")

	got, err := env.users.Get(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.HasPostedToday {
		t.Error("HasPostedToday = false right after posting")
	}

	env.users.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	got, _ = env.users.Get(context.Background(), alice.ID)
	if got.HasPostedToday {
		t.Error("HasPostedToday = true two days later")
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	name := "Alice Liddell"
	settings := model.DefaultSettings()
	settings.Theme = model.ThemeDark

	got, err := env.users.Update(ctx, alice.ID, alice.ID, UpdateUserInput{Name: &name, Settings: model.PatchFrom(settings)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Name != name || got.Settings.Theme != model.ThemeDark {
		t.Errorf("Update() = %q/%q", got.Name, got.Settings.Theme)
	}

	_, err = env.users.Update(ctx, bob.ID, alice.ID, UpdateUserInput{Name: &name})
	assertErrorIs(t, err, apperror.ErrForbidden)

	neon := model.Theme("neon")
	_, err = env.users.Update(ctx, alice.ID, alice.ID, UpdateUserInput{Settings: &model.SettingsPatch{Theme: &neon}})
	assertErrorIs(t, err, apperror.ErrValidation)

	empty := "   "
	_, err = env.users.Update(ctx, alice.ID, alice.ID, UpdateUserInput{Name: &empty})
	assertErrorIs(t, err, apperror.ErrValidation)
}

func TestUpdateSettingsKeepsOmittedKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	light := model.ThemeLight
	got, err := env.users.Update(ctx, alice.ID, alice.ID, UpdateUserInput{
		Settings: &model.SettingsPatch{Theme: &light},
	})
	if err != nil {
		t.Fatalf("theme-only Update() error = %v", err)
	}
	want := model.DefaultSettings()
	want.Theme = model.ThemeLight
	if got.Settings != want {
		t.Errorf("Settings = %+v, want %+v", got.Settings, want)
	}

	off := false
	friends := model.VisibilityFriends
	got, err = env.users.Update(ctx, alice.ID, alice.ID, UpdateUserInput{
		Settings: &model.SettingsPatch{
			Notifications: &model.NotificationsPatch{DailyReminder: &off},
			Privacy:       &model.PrivacyPatch{ProfileVisibility: &friends},
		},
	})
	if err != nil {
		t.Fatalf("nested Update() error = %v", err)
	}
	want.Notifications.DailyReminder = false
	want.Privacy.ProfileVisibility = model.VisibilityFriends
	if got.Settings != want {
		t.Errorf("Settings = %+v, want %+v", got.Settings, want)
	}

	// Friend requests stay open because the patch never mentioned them.
	if _, err := env.users.AddFriend(ctx, bob.ID, bob.ID, alice.ID); err != nil {
		t.Errorf("AddFriend() after settings change error = %v", err)
	}

	stored, err := env.users.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Settings != want {
		t.Errorf("stored Settings = %+v, want %+v", stored.Settings, want)
	}
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "bob")
	env.register(t, "alice")

	users, err := env.users.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" {
		t.Errorf("List() = %v", users)
	}
}

// =========================================================================
// FRIENDS
// =========================================================================

func TestFriends(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	got, err := env.users.AddFriend(ctx, alice.ID, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("AddFriend() error = %v", err)
	}
	if !got.IsFriend(bob.ID) {
		t.Errorf("alice.Friends = %v, want bob", got.Friends)
	}

	friends, err := env.users.ListFriends(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListFriends() error = %v", err)
	}
	if len(friends) != 1 || friends[0].ID != alice.ID {
		t.Errorf("bob's friends = %v, want [alice]", friends)
	}

	got, err = env.users.RemoveFriend(ctx, alice.ID, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("RemoveFriend() error = %v", err)
	}
	if len(got.Friends) != 0 {
		t.Errorf("alice.Friends = %v after remove", got.Friends)
	}

	t.Run("self", func(t *testing.T) {
		_, err := env.users.AddFriend(ctx, alice.ID, alice.ID, alice.ID)
		assertErrorIs(t, err, apperror.ErrValidation)
	})
	t.Run("acting for someone else", func(t *testing.T) {
		_, err := env.users.AddFriend(ctx, carol.ID, alice.ID, bob.ID)
		assertErrorIs(t, err, apperror.ErrForbidden)
	})
	t.Run("unknown friend", func(t *testing.T) {
		_, err := env.users.AddFriend(ctx, alice.ID, alice.ID, "ghost")
		assertErrorIs(t, err, apperror.ErrNotFound)
	})
	t.Run("requests disabled", func(t *testing.T) {
		closed := false
		patch := &model.SettingsPatch{Privacy: &model.PrivacyPatch{AllowFriendRequests: &closed}}
		if _, err := env.users.Update(ctx, carol.ID, carol.ID, UpdateUserInput{Settings: patch}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		_, err := env.users.AddFriend(ctx, alice.ID, alice.ID, carol.ID)
		assertErrorIs(t, err, apperror.ErrForbidden)
	})
}
