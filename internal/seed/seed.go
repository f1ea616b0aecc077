// Package seed fills an empty store with demo data: three friends who share
// a group, a handful of posts with likes, and some comments.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/service"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// ErrAlreadySeeded is returned when the demo accounts already exist.
var ErrAlreadySeeded = errors.New("seed: demo data already present")

// Services are the entry points seeding goes through, so demo data obeys
// the same rules as data created over the API.
type Services struct {
	Users    *service.UserService
	Posts    *service.PostService
	Comments *service.CommentService
	Groups   *service.GroupService
}

type Summary struct {
	Users    int
	Groups   int
	Posts    int
	Comments int
}

type demoUser struct {
	username, email, picture string
	settings                 model.UserSettings
}

var demoUsers = []demoUser{
	{
		username: "johndoe",
		email:    "john@example.com",
		picture:  "https://randomuser.me/api/portraits/men/1.jpg",
		settings: model.DefaultSettings(),
	},
	{
		username: "janedoe",
		email:    "jane@example.com",
		picture:  "https://randomuser.me/api/portraits/women/1.jpg",
		settings: model.UserSettings{
			Theme: model.ThemeDark,
			Notifications: model.NotificationSettings{
				NewComments: true, FriendRequests: true, GroupInvites: false, DailyReminder: true,
			},
			Privacy: model.PrivacySettings{ProfileVisibility: model.VisibilityFriends, AllowFriendRequests: true},
		},
	},
	{
		username: "bobsmith",
		email:    "bob@example.com",
		picture:  "https://randomuser.me/api/portraits/men/2.jpg",
		settings: model.UserSettings{
			Theme: model.ThemeLight,
			Notifications: model.NotificationSettings{
				NewComments: false, FriendRequests: true, GroupInvites: true, DailyReminder: false,
			},
			Privacy: model.PrivacySettings{ProfileVisibility: model.VisibilityPublic, AllowFriendRequests: true},
		},
	},
}

// Run creates the demo data. It refuses to run twice against the same
// store.
func Run(ctx context.Context, svc Services, logger *slog.Logger) (*Summary, error) {
	sum := &Summary{}

	ids := make([]string, len(demoUsers))
	for i, d := range demoUsers {
		res, err := svc.Users.Register(ctx, service.RegisterInput{
			Username: d.username,
			Email:    d.email,
			Password: DemoPassword,
		})
		if err != nil {
			if i == 0 && errors.Is(err, apperror.ErrConflict) {
				return nil, ErrAlreadySeeded
			}
			return nil, fmt.Errorf("seed: registering %s: %w", d.username, err)
		}
		id := res.User.ID
		picture := d.picture
		if _, err := svc.Users.Update(ctx, id, id, service.UpdateUserInput{
			ProfilePicture: &picture,
			Settings:       model.PatchFrom(d.settings),
		}); err != nil {
			return nil, fmt.Errorf("seed: updating %s: %w", d.username, err)
		}
		ids[i] = id
		sum.Users++
	}
	john, jane, bob := ids[0], ids[1], ids[2]
	logger.Info("seeded users", slog.Int("count", sum.Users))

	for _, pair := range [][2]string{{john, jane}, {john, bob}, {jane, bob}} {
		if _, err := svc.Users.AddFriend(ctx, pair[0], pair[0], pair[1]); err != nil {
			return nil, fmt.Errorf("seed: befriending: %w", err)
		}
	}

	group, err := svc.Groups.Create(ctx, john, service.CreateGroupInput{
		Name:        "KeepUp Friends",
		Description: "A group for friends in the KeepUp app",
	})
	if err != nil {
		return nil, fmt.Errorf("seed: creating group: %w", err)
	}
	for _, id := range []string{jane, bob} {
		if _, err := svc.Groups.AddMember(ctx, id, group.ID, ""); err != nil {
			return nil, fmt.Errorf("seed: joining group: %w", err)
		}
	}
	sum.Groups++

	posts := []struct {
		author, content, group string
		likedBy                []string
	}{
		{john, "Hello world! This is my first post on KeepUp!", "", []string{jane, bob}},
		{jane, "Excited to be part of this community!", "", []string{john}},
		{bob, "Just finished my daily goal! #keepingup", "", []string{john, jane}},
		{john, "Group post for everyone!", group.ID, []string{jane}},
	}
	postIDs := make([]string, len(posts))
	for i, p := range posts {
		created, err := svc.Posts.Create(ctx, service.CreatePostInput{
			AuthorID: p.author,
			Content:  p.content,
			GroupID:  p.group,
		})
		if err != nil {
			return nil, fmt.Errorf("seed: creating post: %w", err)
		}
		for _, liker := range p.likedBy {
			if _, err := svc.Posts.ToggleLike(ctx, created.ID, liker); err != nil {
				return nil, fmt.Errorf("seed: liking post: %w", err)
			}
		}
		postIDs[i] = created.ID
		sum.Posts++
	}

	comments := []struct {
		post, author, content string
		likedBy               []string
	}{
		{postIDs[0], jane, "Welcome to KeepUp!", []string{john}},
		{postIDs[0], bob, "Great first post!", nil},
		{postIDs[1], john, "Glad to have you here!", []string{jane}},
	}
	for _, c := range comments {
		created, err := svc.Comments.Create(ctx, c.post, c.author, c.content)
		if err != nil {
			return nil, fmt.Errorf("seed: creating comment: %w", err)
		}
		for _, liker := range c.likedBy {
			if _, err := svc.Comments.ToggleLike(ctx, c.post, created.ID, liker); err != nil {
				return nil, fmt.Errorf("seed: liking comment: %w", err)
			}
		}
		sum.Comments++
	}

	logger.Info("seed complete",
		slog.Int("users", sum.Users),
		slog.Int("groups", sum.Groups),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
	)
	return sum, nil
}
