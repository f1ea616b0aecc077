package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, name, bio, profile_picture, password_hash,
	github_id, settings, last_posted_at, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u          model.User
		githubID   sql.NullInt64
		settings   string
		lastPosted sql.NullInt64
		created    int64
		updated    int64
	)
	err := s.Scan(
		&u.ID, &u.Username, &u.Email, &u.Name, &u.Bio, &u.ProfilePicture, &u.PasswordHash,
		&githubID, &settings, &lastPosted, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	u.Settings = model.DefaultSettings()
	if err := json.Unmarshal([]byte(settings), &u.Settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if lastPosted.Valid {
		t := fromUnix(lastPosted.Int64)
		u.LastPostedAt = &t
	}
	u.CreatedAt = fromUnix(created)
	u.UpdatedAt = fromUnix(updated)
	u.Friends = []string{}
	u.Groups = []string{}
	return &u, nil
}

// nullableGitHubID keeps password accounts at NULL so the UNIQUE index on
// github_id ignores them.
func nullableGitHubID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// CreateUser inserts a new account. The ID and timestamps are set on user.
// Duplicate usernames or emails return apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("sqlite: encoding settings: %w", err)
	}

	ts := now()
	user.ID = xid.New().String()
	user.CreatedAt = ts
	user.UpdatedAt = ts
	if user.Friends == nil {
		user.Friends = []string{}
	}
	if user.Groups == nil {
		user.Groups = []string{}
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		user.ID, user.Username, user.Email, user.Name, user.Bio, user.ProfilePicture,
		user.PasswordHash, nullableGitHubID(user.GitHubID), string(settings),
		toUnix(user.CreatedAt), toUnix(user.UpdatedAt),
	)
	if err != nil {
		return translateUserConflict(err, fmt.Sprintf("sqlite: inserting user %q", user.Username))
	}
	return nil
}

func translateUserConflict(err error, op string) error {
	switch {
	case isUniqueViolation(err, "users.username"):
		return apperror.Conflict("user", "username")
	case isUniqueViolation(err, "users.email"):
		return apperror.Conflict("user", "email")
	case isUniqueViolation(err, "users.github_id"):
		return apperror.Conflict("user", "githubId")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetUserByID retrieves a user with their friend and group sets.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return db.loadUser(ctx, row, id)
}

// GetUserByLogin matches either the username or the email.
func (db *DB) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? LIMIT 1`,
		login, login)
	return db.loadUser(ctx, row, login)
}

func (db *DB) loadUser(ctx context.Context, row *sql.Row, key string) (*model.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}

	if err := db.fillUserSets(ctx, []*model.User{u}); err != nil {
		return nil, err
	}
	return u, nil
}

// fillUserSets loads Friends and Groups for every user in one query each.
func (db *DB) fillUserSets(ctx context.Context, users []*model.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	friends, err := loadSets(ctx, db.conn, "friendships", "user_id", "friend_id", ids)
	if err != nil {
		return fmt.Errorf("sqlite: loading friends: %w", err)
	}
	groups, err := loadSets(ctx, db.conn, "group_members", "user_id", "group_id", ids)
	if err != nil {
		return fmt.Errorf("sqlite: loading group memberships: %w", err)
	}

	for _, u := range users {
		if f, ok := friends[u.ID]; ok {
			u.Friends = f
		}
		if g, ok := groups[u.ID]; ok {
			u.Groups = g
		}
	}
	return nil
}

// UpsertGitHubUser links a GitHub account to a local user.
//
// If a user with user.GitHubID exists, its display fields are refreshed and
// user is overwritten with the stored record. Otherwise user is inserted as a
// new account. On return user carries the canonical ID.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upserting github user: missing github id")
	}

	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, *user.GitHubID,
	).Scan(&existingID)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", *user.GitHubID, err)
	}

	if existingID == "" {
		return db.CreateUser(ctx, user)
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE users SET profile_picture = ?, updated_at = ? WHERE id = ?`,
		user.ProfilePicture, toUnix(now()), existingID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", existingID, err)
	}

	stored, err := db.GetUserByID(ctx, existingID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// ListUsers returns users ordered by username.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit, offset := opts.Bounds()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}

	var ptrs []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		ptrs = append(ptrs, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}
	// The pool has one connection; release it before the follow-up queries.
	rows.Close()

	if err := db.fillUserSets(ctx, ptrs); err != nil {
		return nil, err
	}

	users := make([]model.User, len(ptrs))
	for i, u := range ptrs {
		users[i] = *u
	}
	return users, nil
}

// GetUserSummaries resolves ids to display summaries. Unknown ids are
// absent from the result.
func (db *DB) GetUserSummaries(ctx context.Context, ids []string) (map[string]*model.UserSummary, error) {
	out := make(map[string]*model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, username, name, profile_picture FROM users WHERE id IN (`+placeholders(len(ids))+`)`,
		anyArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading user summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.UserSummary
		if err := rows.Scan(&s.ID, &s.Username, &s.Name, &s.ProfilePicture); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user summary: %w", err)
		}
		out[s.ID] = &s
	}
	return out, rows.Err()
}

// UpdateUser saves the editable profile fields: name, bio, profile picture
// and settings.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("sqlite: encoding settings: %w", err)
	}
	user.UpdatedAt = now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, bio = ?, profile_picture = ?, settings = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name, user.Bio, user.ProfilePicture, string(settings), toUnix(user.UpdatedAt), user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// MarkPosted records the time of the user's latest post.
func (db *DB) MarkPosted(ctx context.Context, userID string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET last_posted_at = ? WHERE id = ?`, toUnix(at), userID)
	if err != nil {
		return fmt.Errorf("sqlite: marking user %s posted: %w", userID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// AddFriend inserts both directions of the friendship in one transaction.
// Adding an existing friend is a no-op.
func (db *DB) AddFriend(ctx context.Context, userID, friendID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range []string{userID, friendID} {
			ok, err := exists(ctx, tx, "users", id)
			if err != nil {
				return fmt.Errorf("sqlite: checking user %s: %w", id, err)
			}
			if !ok {
				return apperror.NotFound("user", id)
			}
		}

		ts := toUnix(now())
		for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?)`,
				pair[0], pair[1], ts)
			if err != nil {
				return fmt.Errorf("sqlite: adding friendship %s->%s: %w", pair[0], pair[1], err)
			}
		}
		return nil
	})
}

// RemoveFriend deletes both directions of the friendship. Removing a
// non-friend is a no-op.
func (db *DB) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM friendships
			 WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
			userID, friendID, friendID, userID)
		if err != nil {
			return fmt.Errorf("sqlite: removing friendship %s<->%s: %w", userID, friendID, err)
		}
		return nil
	})
}
