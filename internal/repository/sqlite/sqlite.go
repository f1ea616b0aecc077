// Package sqlite implements repository.Store on top of SQLite.
//
// WHY SQLITE?
// SQLite is an embedded database: one file, no server to run. It is the
// default store for development, tests (":memory:") and single-node
// deployments. The mongo package covers the document-database deployment.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds without CGo.
//
// SETS AS TABLES:
// The document model keeps likes, saves, friends and members as id arrays.
// Here every such set is a join table with a composite primary key, which
// makes "each user at most once" a constraint the database enforces and
// lets a toggle run as DELETE-then-INSERT inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keepup/keepup-api/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements every repository
// interface.
type DB struct {
	conn *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx, so helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/keepup.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests)
//
// The pool is limited to a single connection. SQLite allows one writer at a
// time anyway, and with ":memory:" every extra connection would see its own
// empty database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Cascading deletes of
	// comments, likes and saves depend on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /health.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates all tables. CREATE TABLE IF NOT EXISTS makes it safe to
// run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL UNIQUE,
			name            TEXT NOT NULL DEFAULT '',
			bio             TEXT NOT NULL DEFAULT '',
			profile_picture TEXT NOT NULL DEFAULT '',
			password_hash   TEXT NOT NULL DEFAULT '',
			github_id       INTEGER UNIQUE,
			settings        TEXT NOT NULL DEFAULT '{}',
			last_posted_at  INTEGER,
			created_at      INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS friendships (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			friend_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, friend_id)
		);

		CREATE TABLE IF NOT EXISTS social_groups (
			id                   TEXT PRIMARY KEY,
			name                 TEXT NOT NULL,
			description          TEXT NOT NULL DEFAULT '',
			admin_id             TEXT NOT NULL REFERENCES users(id),
			privacy              TEXT NOT NULL DEFAULT 'public',
			allow_member_posts   INTEGER NOT NULL DEFAULT 1,
			allow_member_invites INTEGER NOT NULL DEFAULT 0,
			avatar               TEXT NOT NULL DEFAULT '',
			created_at           INTEGER NOT NULL,
			updated_at           INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS group_members (
			group_id   TEXT NOT NULL REFERENCES social_groups(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (group_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);

		CREATE TABLE IF NOT EXISTS posts (
			id         TEXT PRIMARY KEY,
			author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content    TEXT NOT NULL,
			media_url  TEXT NOT NULL DEFAULT '',
			group_id   TEXT REFERENCES social_groups(id) ON DELETE SET NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
		CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);
		CREATE INDEX IF NOT EXISTS idx_posts_group ON posts(group_id);

		CREATE TABLE IF NOT EXISTS post_likes (
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS post_saves (
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_post_saves_user ON post_saves(user_id);

		CREATE TABLE IF NOT EXISTS comments (
			id         TEXT PRIMARY KEY,
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			author_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content    TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);

		CREATE TABLE IF NOT EXISTS comment_likes (
			comment_id TEXT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (comment_id, user_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// Timestamps are stored as Unix nanoseconds so ORDER BY created_at is a
// plain integer comparison.
func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// now truncates to microseconds so values survive a round trip through
// either store unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func anyArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the given column ("users.email").
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

// loadIDs reads a single-column id list, preserving insertion order.
func loadIDs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// loadSets reads (key, member) pairs for many keys at once and groups them.
// Used to fill likes/savedBy/friends/members on list results without one
// query per row.
func loadSets(ctx context.Context, q querier, table, keyCol, valCol string, keys []string) (map[string][]string, error) {
	sets := make(map[string][]string, len(keys))
	if len(keys) == 0 {
		return sets, nil
	}

	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s IN (%s) ORDER BY rowid`,
		keyCol, valCol, table, keyCol, placeholders(len(keys)))

	rows, err := q.QueryContext(ctx, query, anyArgs(keys)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, val string
		if err := rows.Scan(&key, &val); err != nil {
			return nil, err
		}
		sets[key] = append(sets[key], val)
	}
	return sets, rows.Err()
}

// toggleMember deletes (keyCol=key, user_id=userID) from table, inserting it
// instead when nothing was deleted. Must run inside a transaction.
func toggleMember(ctx context.Context, tx *sql.Tx, table, keyCol, key, userID string) error {
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND user_id = ?`, table, keyCol),
		key, userID,
	)
	if err != nil {
		return fmt.Errorf("removing from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, user_id, created_at) VALUES (?, ?, ?)`, table, keyCol),
		key, userID, toUnix(now()),
	)
	if err != nil {
		return fmt.Errorf("adding to %s: %w", table, err)
	}
	return nil
}

// exists reports whether a row with the given id exists in table.
func exists(ctx context.Context, q querier, table, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = ?`, table), id,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var errNoRows = sql.ErrNoRows

func isNoRows(err error) bool {
	return errors.Is(err, errNoRows)
}
