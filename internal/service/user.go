package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/auth"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

// UserService handles accounts, login and friendships.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
	now       func() time.Time
}

func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult is what register and login hand back: a signed token and the
// account it identifies.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// Register creates a password account and signs the caller in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username, err := requireText("username", in.Username, MaxUsernameLength)
	if err != nil {
		return nil, err
	}
	if len(username) < MinUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be at least %d characters", MinUsernameLength))
	}
	if strings.ContainsAny(username, " @") {
		return nil, apperror.ValidationFailed("username", "username may not contain spaces or @")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperror.ValidationFailed("email", "invalid email format")
	}

	if len(in.Password) < auth.MinPasswordLength || len(in.Password) > auth.MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be between %d and %d bytes", auth.MinPasswordLength, auth.MaxPasswordLength))
	}

	name, err := optionalText("name", in.Name, MaxNameLength)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = username
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/user: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Settings:     model.DefaultSettings(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/user: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("username", username))
	return s.issue(user)
}

// Login authenticates by username or email. Unknown accounts and wrong
// passwords produce the same error so callers cannot probe for usernames.
func (s *UserService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperror.ValidationFailed("login", "login and password are required")
	}
	if strings.Contains(login, "@") {
		login = strings.ToLower(login)
	}

	invalid := apperror.Unauthorized("invalid credentials")

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/user: looking up %q: %w", login, err)
	}
	// GitHub-only accounts have no password.
	if user.PasswordHash == "" {
		return nil, invalid
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("failed login", slog.String("user_id", user.ID))
			return nil, invalid
		}
		return nil, fmt.Errorf("service/user: verifying password: %w", err)
	}

	return s.issue(user)
}

// LoginGitHub finds or creates the account linked to a GitHub identity.
// When the GitHub login is already taken locally the account gets a
// "-gh<id>" suffix.
func (s *UserService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, apperror.ValidationFailed("githubId", "github user is required")
	}

	email := strings.ToLower(gh.Email)
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, strings.ToLower(gh.Login))
	}
	name := gh.Name
	if name == "" {
		name = gh.Login
	}
	ghID := gh.ID

	user := &model.User{
		Username:       gh.Login,
		Email:          email,
		Name:           name,
		ProfilePicture: gh.AvatarURL,
		GitHubID:       &ghID,
		Settings:       model.DefaultSettings(),
	}
	err := s.users.UpsertGitHubUser(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		user.Username = fmt.Sprintf("%s-gh%d", gh.Login, gh.ID)
		user.Email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, strings.ToLower(gh.Login))
		err = s.users.UpsertGitHubUser(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("service/user: upserting github user %d: %w", gh.ID, err)
	}

	s.logger.Info("github login", slog.String("user_id", user.ID), slog.Int64("github_id", gh.ID))
	return s.issue(user)
}

func (s *UserService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: issuing token: %w", err)
	}
	user.RefreshPostedToday(s.now())
	return &AuthResult{Token: token, User: user}, nil
}

// ValidateToken returns the user id a token was issued for.
func (s *UserService) ValidateToken(token string) (string, error) {
	id, err := s.tokens.Validate(token)
	if err != nil {
		return "", apperror.Unauthorized("invalid or expired token")
	}
	return id, nil
}

// Get returns a user with HasPostedToday computed for the current day.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.RefreshPostedToday(s.now())
	return user, nil
}

func (s *UserService) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	now := s.now()
	for i := range users {
		users[i].RefreshPostedToday(now)
	}
	return users, nil
}

// UpdateUserInput carries the editable profile fields. Nil fields are left
// unchanged, and Settings only touches the keys it sets.
type UpdateUserInput struct {
	Name           *string
	Bio            *string
	ProfilePicture *string
	Settings       *model.SettingsPatch
}

// Update edits the caller's own profile.
func (s *UserService) Update(ctx context.Context, actorID, id string, in UpdateUserInput) (*model.User, error) {
	if actorID != id {
		return nil, apperror.Forbidden("you can only update your own profile")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if user.Name, err = requireText("name", *in.Name, MaxNameLength); err != nil {
			return nil, err
		}
	}
	if in.Bio != nil {
		if user.Bio, err = optionalText("bio", *in.Bio, MaxBioLength); err != nil {
			return nil, err
		}
	}
	if in.ProfilePicture != nil {
		if user.ProfilePicture, err = optionalText("profilePicture", *in.ProfilePicture, MaxProfilePictureURL); err != nil {
			return nil, err
		}
	}
	if in.Settings != nil {
		settings := in.Settings.Apply(user.Settings)
		if !settings.Theme.Valid() {
			return nil, apperror.ValidationFailed("settings.theme", "theme must be dark, light or system")
		}
		if !settings.Privacy.ProfileVisibility.Valid() {
			return nil, apperror.ValidationFailed("settings.privacy.profileVisibility",
				"profileVisibility must be public, friends or private")
		}
		user.Settings = settings
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating user %s: %w", id, err)
	}
	user.RefreshPostedToday(s.now())
	return user, nil
}

// AddFriend befriends userID and friendID. Only userID may ask, and the
// target must accept friend requests.
func (s *UserService) AddFriend(ctx context.Context, actorID, userID, friendID string) (*model.User, error) {
	if actorID != userID {
		return nil, apperror.Forbidden("you can only manage your own friends")
	}
	if userID == friendID {
		return nil, apperror.ValidationFailed("friendId", "you cannot add yourself as a friend")
	}

	friend, err := s.users.GetUserByID(ctx, friendID)
	if err != nil {
		return nil, err
	}
	if !friend.IsFriend(userID) && !friend.Settings.Privacy.AllowFriendRequests {
		return nil, apperror.Forbidden("this user does not accept friend requests")
	}

	if err := s.users.AddFriend(ctx, userID, friendID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/user: adding friend: %w", err)
	}

	s.logger.Info("friend added", slog.String("user_id", userID), slog.String("friend_id", friendID))
	return s.Get(ctx, userID)
}

// RemoveFriend ends the friendship on both sides.
func (s *UserService) RemoveFriend(ctx context.Context, actorID, userID, friendID string) (*model.User, error) {
	if actorID != userID {
		return nil, apperror.Forbidden("you can only manage your own friends")
	}
	if _, err := s.users.GetUserByID(ctx, friendID); err != nil {
		return nil, err
	}
	if err := s.users.RemoveFriend(ctx, userID, friendID); err != nil {
		return nil, fmt.Errorf("service/user: removing friend: %w", err)
	}

	s.logger.Info("friend removed", slog.String("user_id", userID), slog.String("friend_id", friendID))
	return s.Get(ctx, userID)
}

// ListFriends returns summaries of userID's friends in the order they were
// added.
func (s *UserService) ListFriends(ctx context.Context, userID string) ([]model.UserSummary, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID, err := summaries(ctx, s.users, user.Friends)
	if err != nil {
		return nil, err
	}

	friends := make([]model.UserSummary, 0, len(user.Friends))
	for _, id := range user.Friends {
		if f, ok := byID[id]; ok {
			friends = append(friends, *f)
		}
	}
	return friends, nil
}
