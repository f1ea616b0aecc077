package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

const postColumns = `id, author_id, content, media_url, group_id, created_at, updated_at`

func scanPost(s rowScanner) (*model.Post, error) {
	var (
		p       model.Post
		groupID sql.NullString
		created int64
		updated int64
	)
	if err := s.Scan(&p.ID, &p.AuthorID, &p.Content, &p.MediaURL, &groupID, &created, &updated); err != nil {
		return nil, err
	}
	p.GroupID = groupID.String
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	p.Likes = []string{}
	p.SavedBy = []string{}
	return &p, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreatePost inserts a new post. ID and timestamps are set on post; Likes
// and SavedBy start empty.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	ts := now()
	post.ID = xid.New().String()
	post.CreatedAt = ts
	post.UpdatedAt = ts
	post.Likes = []string{}
	post.SavedBy = []string{}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.AuthorID, post.Content, post.MediaURL, nullableString(post.GroupID),
		toUnix(post.CreatedAt), toUnix(post.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	return nil
}

// GetPostByID retrieves a post with its likes and saves.
// Returns apperror.ErrNotFound if no post exists with that ID.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}

	if err := db.fillPostSets(ctx, []*model.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPosts returns posts newest first. The id tiebreak keeps the order
// stable when two posts share a timestamp.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	limit, offset := filter.Bounds()

	var (
		where []string
		args  []any
	)

	// "by these authors OR in these groups"
	var either []string
	if len(filter.AuthorIDs) > 0 {
		either = append(either, `author_id IN (`+placeholders(len(filter.AuthorIDs))+`)`)
		args = append(args, anyArgs(filter.AuthorIDs)...)
	}
	if len(filter.GroupIDs) > 0 {
		either = append(either, `group_id IN (`+placeholders(len(filter.GroupIDs))+`)`)
		args = append(args, anyArgs(filter.GroupIDs)...)
	}
	if len(either) > 0 {
		where = append(where, "("+strings.Join(either, " OR ")+")")
	}
	if filter.SavedBy != "" {
		where = append(where, `id IN (SELECT post_id FROM post_saves WHERE user_id = ?)`)
		args = append(args, filter.SavedBy)
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}

	var ptrs []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		ptrs = append(ptrs, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating post rows: %w", err)
	}
	rows.Close()

	if err := db.fillPostSets(ctx, ptrs); err != nil {
		return nil, err
	}

	posts := make([]model.Post, len(ptrs))
	for i, p := range ptrs {
		posts[i] = *p
	}
	return posts, nil
}

func (db *DB) fillPostSets(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	likes, err := loadSets(ctx, db.conn, "post_likes", "post_id", "user_id", ids)
	if err != nil {
		return fmt.Errorf("sqlite: loading likes: %w", err)
	}
	saves, err := loadSets(ctx, db.conn, "post_saves", "post_id", "user_id", ids)
	if err != nil {
		return fmt.Errorf("sqlite: loading saves: %w", err)
	}

	for _, p := range posts {
		if l, ok := likes[p.ID]; ok {
			p.Likes = l
		}
		if s, ok := saves[p.ID]; ok {
			p.SavedBy = s
		}
	}
	return nil
}

// UpdatePost saves content and media URL.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	post.UpdatedAt = now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET content = ?, media_url = ?, updated_at = ? WHERE id = ?`,
		post.Content, post.MediaURL, toUnix(post.UpdatedAt), post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("post", post.ID)
	}
	return nil
}

// DeletePost removes a post. Comments, likes and saves go with it through
// ON DELETE CASCADE.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

// ToggleLike flips userID's membership in the post's likes.
func (db *DB) ToggleLike(ctx context.Context, postID, userID string) (*model.Post, error) {
	return db.togglePostSet(ctx, "post_likes", postID, userID)
}

// ToggleSave flips userID's membership in the post's savedBy set.
func (db *DB) ToggleSave(ctx context.Context, postID, userID string) (*model.Post, error) {
	return db.togglePostSet(ctx, "post_saves", postID, userID)
}

func (db *DB) togglePostSet(ctx context.Context, table, postID, userID string) (*model.Post, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "posts", postID)
		if err != nil {
			return fmt.Errorf("sqlite: checking post %s: %w", postID, err)
		}
		if !ok {
			return apperror.NotFound("post", postID)
		}

		if err := toggleMember(ctx, tx, table, "post_id", postID, userID); err != nil {
			return fmt.Errorf("sqlite: toggling %s on post %s: %w", table, postID, err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET updated_at = ? WHERE id = ?`, toUnix(now()), postID)
		if err != nil {
			return fmt.Errorf("sqlite: touching post %s: %w", postID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetPostByID(ctx, postID)
}
