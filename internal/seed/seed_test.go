package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepup/keepup-api/internal/auth"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
	"github.com/keepup/keepup-api/internal/repository/sqlite"
	"github.com/keepup/keepup-api/internal/service"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("seed-test-secret-123456", time.Hour)
	require.NoError(t, err)
	svc := Services{
		Users:    service.NewUserService(db, auth.NewPasswordServiceForTest(4), tokens, logger),
		Posts:    service.NewPostService(db, logger),
		Comments: service.NewCommentService(db, logger),
		Groups:   service.NewGroupService(db, logger),
	}

	sum, err := Run(ctx, svc, logger)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Users: 3, Groups: 1, Posts: 4, Comments: 3}, sum)

	res, err := svc.Users.Login(ctx, "janedoe", DemoPassword)
	require.NoError(t, err)
	jane := res.User
	assert.Len(t, jane.Friends, 2)
	assert.Len(t, jane.Groups, 1)
	assert.Equal(t, model.ThemeDark, jane.Settings.Theme)
	assert.True(t, jane.HasPostedToday)

	feed, err := svc.Posts.Feed(ctx, jane.ID, service.FeedOptions{Scope: service.ScopeFriends})
	require.NoError(t, err)
	require.Len(t, feed, 4)
	assert.Equal(t, "Group post for everyone!", feed[0].Content)
	assert.Len(t, feed[0].Likes, 1)
	assert.Equal(t, 2, feed[3].CommentCount)

	all, err := svc.Posts.Feed(ctx, "", service.FeedOptions{ListOptions: repository.ListOptions{Limit: 100}})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = Run(ctx, svc, logger)
	assert.ErrorIs(t, err, ErrAlreadySeeded)
}
