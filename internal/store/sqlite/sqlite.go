// Package sqlite implements store.Store on a local SQLite database. It is the
// default driver for development and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/store"
)

type sqliteStore struct {
	db          *sql.DB
	groups      *groupStore
	assignments *assignmentStore
	content     *contentStore
}

// New wraps an opened database handle in a store.Store.
func New(db *sql.DB) store.Store {
	return &sqliteStore{
		db:          db,
		groups:      &groupStore{db: db},
		assignments: &assignmentStore{db: db},
		content:     &contentStore{db: db},
	}
}

func (s *sqliteStore) Groups() store.Groups           { return s.groups }
func (s *sqliteStore) Assignments() store.Assignments { return s.assignments }
func (s *sqliteStore) Content() store.Content         { return s.content }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// --- groups ---

type groupStore struct{ db *sql.DB }

func (g *groupStore) Create(ctx context.Context, grp *model.Group) (*model.Group, error) {
	if grp.CreationTime.IsZero() {
		grp.CreationTime = time.Now().UTC()
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO access_groups (group_id, group_type, name, description, read_access, write_access, ip_range, creation_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		grp.GroupID, grp.GroupType, grp.Name, grp.Description,
		grp.ReadAccess, grp.WriteAccess, grp.IPRange, grp.CreationTime)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.NewConflictError("group", fmt.Sprintf("group %s already exists", grp.GroupID))
		}
		return nil, err
	}
	return grp, nil
}

func (g *groupStore) Get(ctx context.Context, groupID string) (*model.Group, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT group_id, group_type, name, description, read_access, write_access, ip_range, creation_time
		FROM access_groups WHERE group_id = ?`, groupID)
	return scanGroup(row)
}

func (g *groupStore) List(ctx context.Context) ([]*model.Group, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT group_id, group_type, name, description, read_access, write_access, ip_range, creation_time
		FROM access_groups ORDER BY creation_time, group_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Group
	for rows.Next() {
		grp, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, grp)
	}
	return out, rows.Err()
}

func (g *groupStore) Update(ctx context.Context, grp *model.Group) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE access_groups
		SET name = ?, description = ?, read_access = ?, write_access = ?, ip_range = ?
		WHERE group_id = ?`,
		grp.Name, grp.Description, grp.ReadAccess, grp.WriteAccess, grp.IPRange, grp.GroupID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NewNotFoundError("group", fmt.Sprintf("group %s not found", grp.GroupID))
	}
	return nil
}

func (g *groupStore) Delete(ctx context.Context, groupID string) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM access_groups WHERE group_id = ?`, groupID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(row rowScanner) (*model.Group, error) {
	var grp model.Group
	err := row.Scan(&grp.GroupID, &grp.GroupType, &grp.Name, &grp.Description,
		&grp.ReadAccess, &grp.WriteAccess, &grp.IPRange, &grp.CreationTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("group", "group not found")
	}
	if err != nil {
		return nil, err
	}
	return &grp, nil
}

// --- assignments ---

type assignmentStore struct{ db *sql.DB }

func (a *assignmentStore) Insert(ctx context.Context, asg *model.Assignment) error {
	if asg.CreationTime.IsZero() {
		asg.CreationTime = time.Now().UTC()
	}
	// Re-adding an object replaces its validity window.
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO group_assignments (group_id, group_type, object_id, general_type, object_type, from_date, to_date, creation_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, group_type, object_type, object_id) DO UPDATE
		SET general_type = excluded.general_type,
		    from_date = excluded.from_date,
		    to_date = excluded.to_date`,
		asg.GroupID, asg.GroupType, asg.ObjectID, string(asg.GeneralType),
		asg.ObjectType, asg.FromDate, asg.ToDate, asg.CreationTime)
	return err
}

func (a *assignmentStore) ListForType(ctx context.Context, groupID, groupType, objectType string) ([]*model.Assignment, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT group_id, group_type, object_id, general_type, object_type, from_date, to_date, creation_time
		FROM group_assignments
		WHERE group_id = ? AND group_type = ? AND (object_type = ? OR general_type = ?)
		ORDER BY object_id`,
		groupID, groupType, objectType, objectType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Assignment
	for rows.Next() {
		var asg model.Assignment
		var general string
		var from, to sql.NullTime
		if err := rows.Scan(&asg.GroupID, &asg.GroupType, &asg.ObjectID, &general,
			&asg.ObjectType, &from, &to, &asg.CreationTime); err != nil {
			return nil, err
		}
		asg.GeneralType = model.ObjectKind(general)
		if from.Valid {
			t := from.Time
			asg.FromDate = &t
		}
		if to.Valid {
			t := to.Time
			asg.ToDate = &t
		}
		out = append(out, &asg)
	}
	return out, rows.Err()
}

func (a *assignmentStore) Delete(ctx context.Context, groupID, groupType, objectType string, objectID *int64) (int64, error) {
	query := `DELETE FROM group_assignments
		WHERE group_id = ? AND group_type = ? AND (object_type = ? OR general_type = ?)`
	args := []interface{}{groupID, groupType, objectType, objectType}
	if objectID != nil {
		query += ` AND object_id = ?`
		args = append(args, *objectID)
	}
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (a *assignmentStore) DeleteAllForGroup(ctx context.Context, groupID, groupType string) (int64, error) {
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM group_assignments WHERE group_id = ? AND group_type = ?`,
		groupID, groupType)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- content ---

type contentStore struct{ db *sql.DB }

func (c *contentStore) PostParents(ctx context.Context) ([]model.ParentRelation, error) {
	return c.parentRelations(ctx, `SELECT object_id, parent_id, object_type FROM content_objects`)
}

func (c *contentStore) TermParents(ctx context.Context) ([]model.ParentRelation, error) {
	return c.parentRelations(ctx, `SELECT term_id, parent_id, taxonomy FROM taxonomy_terms`)
}

func (c *contentStore) parentRelations(ctx context.Context, query string) ([]model.ParentRelation, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ParentRelation
	for rows.Next() {
		var rel model.ParentRelation
		if err := rows.Scan(&rel.ID, &rel.ParentID, &rel.Type); err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (c *contentStore) TermLinks(ctx context.Context) ([]model.TermLink, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT tr.object_id, tr.term_id, COALESCE(co.object_type, ''), COALESCE(tt.taxonomy, '')
		FROM term_relationships tr
		LEFT JOIN content_objects co ON co.object_id = tr.object_id
		LEFT JOIN taxonomy_terms tt ON tt.term_id = tr.term_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TermLink
	for rows.Next() {
		var link model.TermLink
		if err := rows.Scan(&link.ObjectID, &link.TermID, &link.PostType, &link.Taxonomy); err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

func (c *contentStore) GetUser(ctx context.Context, userID int64) (*model.HostUser, error) {
	var u model.HostUser
	u.UserID = userID
	err := c.db.QueryRowContext(ctx, `SELECT login FROM users WHERE user_id = ?`, userID).Scan(&u.Login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("user", fmt.Sprintf("user %d not found", userID))
	}
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `SELECT role_id FROM user_roles WHERE user_id = ? ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID int64
		if err := rows.Scan(&roleID); err != nil {
			return nil, err
		}
		u.RoleIDs = append(u.RoleIDs, roleID)
	}
	return &u, rows.Err()
}

func (c *contentStore) GetPost(ctx context.Context, postID int64) (*model.HostPost, error) {
	var p model.HostPost
	p.PostID = postID
	err := c.db.QueryRowContext(ctx, `
		SELECT object_type, parent_id FROM content_objects WHERE object_id = ?`, postID).
		Scan(&p.PostType, &p.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("post", fmt.Sprintf("post %d not found", postID))
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *contentStore) GetTerm(ctx context.Context, termID int64, taxonomy string) (*model.HostTerm, error) {
	var t model.HostTerm
	t.TermID = termID
	query := `SELECT taxonomy, parent_id FROM taxonomy_terms WHERE term_id = ?`
	args := []interface{}{termID}
	if taxonomy != "" {
		query += ` AND taxonomy = ?`
		args = append(args, taxonomy)
	}
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&t.Taxonomy, &t.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("term", fmt.Sprintf("term %d not found", termID))
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *contentStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (c *contentStore) ContentTypes(ctx context.Context, kind string) ([]model.ContentType, error) {
	query := `SELECT name, kind FROM content_types`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY name`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContentType
	for rows.Next() {
		var ct model.ContentType
		if err := rows.Scan(&ct.Name, &ct.Kind); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (c *contentStore) RegisterContentType(ctx context.Context, ct model.ContentType) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO content_types (name, kind) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET kind = excluded.kind`,
		ct.Name, ct.Kind)
	return err
}

func (c *contentStore) UpsertUser(ctx context.Context, u *model.HostUser) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, login) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET login = excluded.login`,
		u.UserID, u.Login); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, u.UserID); err != nil {
		return err
	}
	for _, roleID := range u.RoleIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO roles (role_id, name) VALUES (?, '')
			ON CONFLICT (role_id) DO NOTHING`, roleID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
			ON CONFLICT (user_id, role_id) DO NOTHING`, u.UserID, roleID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *contentStore) UpsertPost(ctx context.Context, p *model.HostPost) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO content_objects (object_id, object_type, parent_id) VALUES (?, ?, ?)
		ON CONFLICT (object_id) DO UPDATE SET object_type = excluded.object_type, parent_id = excluded.parent_id`,
		p.PostID, p.PostType, p.ParentID)
	return err
}

func (c *contentStore) UpsertTerm(ctx context.Context, t *model.HostTerm) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO taxonomy_terms (term_id, taxonomy, parent_id) VALUES (?, ?, ?)
		ON CONFLICT (term_id) DO UPDATE SET taxonomy = excluded.taxonomy, parent_id = excluded.parent_id`,
		t.TermID, t.Taxonomy, t.ParentID)
	return err
}

func (c *contentStore) UpsertRole(ctx context.Context, roleID int64, name string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO roles (role_id, name) VALUES (?, ?)
		ON CONFLICT (role_id) DO UPDATE SET name = excluded.name`,
		roleID, name)
	return err
}

func (c *contentStore) LinkTerm(ctx context.Context, objectID, termID int64) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO term_relationships (object_id, term_id) VALUES (?, ?)
		ON CONFLICT (object_id, term_id) DO NOTHING`,
		objectID, termID)
	return err
}
