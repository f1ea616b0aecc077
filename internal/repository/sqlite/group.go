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

var _ repository.GroupRepository = (*DB)(nil)

const groupColumns = `id, name, description, admin_id, privacy, allow_member_posts,
	allow_member_invites, avatar, created_at, updated_at`

func scanGroup(s rowScanner) (*model.Group, error) {
	var (
		g       model.Group
		privacy string
		created int64
		updated int64
	)
	err := s.Scan(&g.ID, &g.Name, &g.Description, &g.AdminID, &privacy,
		&g.Settings.AllowMemberPosts, &g.Settings.AllowMemberInvites, &g.Avatar,
		&created, &updated)
	if err != nil {
		return nil, err
	}
	g.Settings.Privacy = model.GroupPrivacy(privacy)
	g.CreatedAt = fromUnix(created)
	g.UpdatedAt = fromUnix(updated)
	g.Members = []string{}
	return &g, nil
}

// CreateGroup inserts the group and its initial members. The admin is
// always stored as the first member.
func (db *DB) CreateGroup(ctx context.Context, group *model.Group) error {
	ts := now()
	group.ID = xid.New().String()
	group.CreatedAt = ts
	group.UpdatedAt = ts

	members := []string{group.AdminID}
	for _, id := range group.Members {
		if !model.Contains(members, id) {
			members = append(members, id)
		}
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO social_groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			group.ID, group.Name, group.Description, group.AdminID, string(group.Settings.Privacy),
			boolToInt(group.Settings.AllowMemberPosts), boolToInt(group.Settings.AllowMemberInvites),
			group.Avatar, toUnix(group.CreatedAt), toUnix(group.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating group: %w", err)
		}

		for _, id := range members {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, user_id, created_at) VALUES (?, ?, ?)`,
				group.ID, id, toUnix(ts))
			if err != nil {
				return fmt.Errorf("sqlite: adding member %s to group %s: %w", id, group.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	group.Members = members
	return nil
}

func (db *DB) GetGroupByID(ctx context.Context, id string) (*model.Group, error) {
	g, err := scanGroup(db.conn.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM social_groups WHERE id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("group", id)
		}
		return nil, fmt.Errorf("sqlite: getting group %s: %w", id, err)
	}

	members, err := loadIDs(ctx, db.conn,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading members of group %s: %w", id, err)
	}
	g.Members = members
	return g, nil
}

// ListGroups returns the groups viewerID may see, newest first. Secret
// groups are filtered in the query so LIMIT/OFFSET count visible rows only.
func (db *DB) ListGroups(ctx context.Context, viewerID string, opts repository.ListOptions) ([]model.Group, error) {
	limit, offset := opts.Bounds()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM social_groups
		WHERE privacy <> ? OR id IN (SELECT group_id FROM group_members WHERE user_id = ?)
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		string(model.GroupSecret), viewerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups: %w", err)
	}

	groups := []model.Group{}
	var ids []string
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning group row: %w", err)
		}
		groups = append(groups, *g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating group rows: %w", err)
	}
	rows.Close()

	members, err := loadSets(ctx, db.conn, "group_members", "group_id", "user_id", ids)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading group members: %w", err)
	}
	for i := range groups {
		if m, ok := members[groups[i].ID]; ok {
			groups[i].Members = m
		}
	}
	return groups, nil
}

// DeleteGroup removes the group and its memberships. Posts in the group
// remain, detached from it.
func (db *DB) DeleteGroup(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM social_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting group %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("group", id)
	}
	return nil
}

// AddMember is idempotent.
func (db *DB) AddMember(ctx context.Context, groupID, userID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "social_groups", groupID)
		if err != nil {
			return fmt.Errorf("sqlite: checking group %s: %w", groupID, err)
		}
		if !ok {
			return apperror.NotFound("group", groupID)
		}
		ok, err = exists(ctx, tx, "users", userID)
		if err != nil {
			return fmt.Errorf("sqlite: checking user %s: %w", userID, err)
		}
		if !ok {
			return apperror.NotFound("user", userID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO group_members (group_id, user_id, created_at) VALUES (?, ?, ?)`,
			groupID, userID, toUnix(now()))
		if err != nil {
			return fmt.Errorf("sqlite: adding member %s to group %s: %w", userID, groupID, err)
		}
		return nil
	})
}

// RemoveMember is idempotent.
func (db *DB) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: removing member %s from group %s: %w", userID, groupID, err)
	}
	return nil
}
