package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

var _ repository.CommentRepository = (*DB)(nil)

const commentColumns = `id, post_id, author_id, content, created_at, updated_at`

func scanComment(s rowScanner) (*model.Comment, error) {
	var (
		c       model.Comment
		created int64
		updated int64
	)
	if err := s.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = fromUnix(created)
	c.UpdatedAt = fromUnix(updated)
	c.Likes = []string{}
	return &c, nil
}

// CreateComment attaches a comment to an existing post.
func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	ok, err := exists(ctx, db.conn, "posts", comment.PostID)
	if err != nil {
		return fmt.Errorf("sqlite: checking post %s: %w", comment.PostID, err)
	}
	if !ok {
		return apperror.NotFound("post", comment.PostID)
	}

	ts := now()
	comment.ID = xid.New().String()
	comment.CreatedAt = ts
	comment.UpdatedAt = ts
	comment.Likes = []string{}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		comment.ID, comment.PostID, comment.AuthorID, comment.Content,
		toUnix(comment.CreatedAt), toUnix(comment.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on post %s: %w", comment.PostID, err)
	}
	return nil
}

func (db *DB) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(db.conn.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}

	likes, err := loadIDs(ctx, db.conn,
		`SELECT user_id FROM comment_likes WHERE comment_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading comment likes: %w", err)
	}
	c.Likes = likes
	return c, nil
}

// ListComments returns a post's comments oldest first.
func (db *DB) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = ?
		 ORDER BY created_at ASC, id ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for post %s: %w", postID, err)
	}

	comments := []model.Comment{}
	var ids []string
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating comment rows: %w", err)
	}
	rows.Close()

	likes, err := loadSets(ctx, db.conn, "comment_likes", "comment_id", "user_id", ids)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading comment likes: %w", err)
	}
	for i := range comments {
		if l, ok := likes[comments[i].ID]; ok {
			comments[i].Likes = l
		}
	}
	return comments, nil
}

// CountComments returns the number of comments per post. Posts without
// comments are absent from the map.
func (db *DB) CountComments(ctx context.Context, postIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT post_id, COUNT(*) FROM comments WHERE post_id IN (`+placeholders(len(postIDs))+`)
		 GROUP BY post_id`,
		anyArgs(postIDs)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (db *DB) DeleteComment(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("comment", id)
	}
	return nil
}

// ToggleCommentLike flips userID's like on a comment.
func (db *DB) ToggleCommentLike(ctx context.Context, commentID, userID string) (*model.Comment, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "comments", commentID)
		if err != nil {
			return fmt.Errorf("sqlite: checking comment %s: %w", commentID, err)
		}
		if !ok {
			return apperror.NotFound("comment", commentID)
		}
		if err := toggleMember(ctx, tx, "comment_likes", "comment_id", commentID, userID); err != nil {
			return fmt.Errorf("sqlite: toggling like on comment %s: %w", commentID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetCommentByID(ctx, commentID)
}
