package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

func TestCreateAndGetPost(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")

	post := &model.Post{AuthorID: alice.ID, Content: "hello", MediaURL: "https://img/1.png"}
	if err := db.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	got, err := db.GetPostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPostByID() error = %v", err)
	}
	if got.Content != "hello" || got.MediaURL != "https://img/1.png" {
		t.Errorf("got %+v", got)
	}
	if got.GroupID != "" {
		t.Errorf("GroupID = %q, want empty", got.GroupID)
	}
	if got.Likes == nil || len(got.Likes) != 0 {
		t.Errorf("Likes = %v, want empty non-nil", got.Likes)
	}
}

func TestGetPostNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetPostByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListPostsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")

	first := createTestPost(t, db, alice.ID, "first")
	second := createTestPost(t, db, alice.ID, "second")
	third := createTestPost(t, db, alice.ID, "third")

	posts, err := db.ListPosts(ctx, repository.PostFilter{})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	want := []string{third.ID, second.ID, first.ID}
	if len(posts) != len(want) {
		t.Fatalf("len = %d, want %d", len(posts), len(want))
	}
	for i, id := range want {
		if posts[i].ID != id {
			t.Errorf("posts[%d] = %s (%s), want %s", i, posts[i].ID, posts[i].Content, id)
		}
	}

	page, err := db.ListPosts(ctx, repository.PostFilter{ListOptions: repository.ListOptions{Limit: 1, Offset: 1}})
	if err != nil {
		t.Fatalf("ListPosts(page) error = %v", err)
	}
	if len(page) != 1 || page[0].ID != second.ID {
		t.Errorf("page = %v, want [second]", page)
	}
}

func TestListPostsFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	group := &model.Group{Name: "runners", AdminID: carol.ID, Settings: model.GroupSettings{Privacy: model.GroupPublic}}
	if err := db.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	aPost := createTestPost(t, db, alice.ID, "alice")
	bPost := createTestPost(t, db, bob.ID, "bob")
	gPost := &model.Post{AuthorID: carol.ID, Content: "in group", GroupID: group.ID}
	if err := db.CreatePost(ctx, gPost); err != nil {
		t.Fatalf("CreatePost(group) error = %v", err)
	}
	createTestPost(t, db, carol.ID, "carol alone")

	if _, err := db.ToggleSave(ctx, bPost.ID, alice.ID); err != nil {
		t.Fatalf("ToggleSave() error = %v", err)
	}

	tests := []struct {
		name   string
		filter repository.PostFilter
		want   []string
	}{
		{
			name:   "by author",
			filter: repository.PostFilter{AuthorIDs: []string{alice.ID}},
			want:   []string{aPost.ID},
		},
		{
			name:   "authors or groups",
			filter: repository.PostFilter{AuthorIDs: []string{alice.ID, bob.ID}, GroupIDs: []string{group.ID}},
			want:   []string{gPost.ID, bPost.ID, aPost.ID},
		},
		{
			name:   "saved by",
			filter: repository.PostFilter{SavedBy: alice.ID},
			want:   []string{bPost.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := db.ListPosts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListPosts() error = %v", err)
			}
			if len(posts) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(posts), len(tt.want))
			}
			for i, id := range tt.want {
				if posts[i].ID != id {
					t.Errorf("posts[%d] = %q, want %s", i, posts[i].Content, id)
				}
			}
		})
	}
}

func TestToggleLike(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	post := createTestPost(t, db, alice.ID, "hi")

	got, err := db.ToggleLike(ctx, post.ID, bob.ID)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if !got.LikedBy(bob.ID) || len(got.Likes) != 1 {
		t.Errorf("after first toggle Likes = %v, want [bob]", got.Likes)
	}

	got, err = db.ToggleLike(ctx, post.ID, bob.ID)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if len(got.Likes) != 0 {
		t.Errorf("after second toggle Likes = %v, want empty", got.Likes)
	}

	if _, err := db.ToggleLike(ctx, "nonexistent", bob.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleLike(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePost(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	post := createTestPost(t, db, alice.ID, "draft")

	post.Content = "final"
	if err := db.UpdatePost(ctx, post); err != nil {
		t.Fatalf("UpdatePost() error = %v", err)
	}
	got, _ := db.GetPostByID(ctx, post.ID)
	if got.Content != "final" {
		t.Errorf("Content = %q, want final", got.Content)
	}

	if err := db.UpdatePost(ctx, &model.Post{ID: "nonexistent"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePost(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeletePostCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	post := createTestPost(t, db, alice.ID, "bye")

	comment := &model.Comment{PostID: post.ID, AuthorID: alice.ID, Content: "c"}
	if err := db.CreateComment(ctx, comment); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	if _, err := db.ToggleLike(ctx, post.ID, alice.ID); err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}

	if err := db.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}

	if _, err := db.GetPostByID(ctx, post.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetPostByID after delete error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetCommentByID(ctx, comment.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("comment should be deleted with its post, got %v", err)
	}
	if err := db.DeletePost(ctx, post.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeletePost error = %v, want ErrNotFound", err)
	}
}
