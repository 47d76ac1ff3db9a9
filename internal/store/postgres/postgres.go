// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/store"
)

// Open opens a PostgreSQL connection and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Groups() store.Groups           { return &groups{db: s.db} }
func (s *pgStore) Assignments() store.Assignments { return &assignments{db: s.db} }
func (s *pgStore) Content() store.Content         { return &content{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap opens the database and applies the embedded schema. The
// statements are idempotent, so calling this on every boot is safe.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	for _, stmt := range store.DefaultDDLStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- groups ---

type groups struct{ db *sql.DB }

func (g *groups) Create(ctx context.Context, grp *model.Group) (*model.Group, error) {
	if grp.CreationTime.IsZero() {
		grp.CreationTime = time.Now().UTC()
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO access_groups (group_id, group_type, name, description, read_access, write_access, ip_range, creation_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
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

func (g *groups) Get(ctx context.Context, groupID string) (*model.Group, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT group_id, group_type, name, description, read_access, write_access, ip_range, creation_time
		FROM access_groups WHERE group_id = $1`, groupID)
	return scanGroup(row)
}

func (g *groups) List(ctx context.Context) ([]*model.Group, error) {
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

func (g *groups) Update(ctx context.Context, grp *model.Group) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE access_groups
		SET name = $1, description = $2, read_access = $3, write_access = $4, ip_range = $5
		WHERE group_id = $6`,
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

func (g *groups) Delete(ctx context.Context, groupID string) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM access_groups WHERE group_id = $1`, groupID)
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

type assignments struct{ db *sql.DB }

func (a *assignments) Insert(ctx context.Context, asg *model.Assignment) error {
	if asg.CreationTime.IsZero() {
		asg.CreationTime = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO group_assignments (group_id, group_type, object_id, general_type, object_type, from_date, to_date, creation_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (group_id, group_type, object_type, object_id) DO UPDATE
		SET general_type = excluded.general_type,
		    from_date = excluded.from_date,
		    to_date = excluded.to_date`,
		asg.GroupID, asg.GroupType, asg.ObjectID, string(asg.GeneralType),
		asg.ObjectType, asg.FromDate, asg.ToDate, asg.CreationTime)
	return err
}

func (a *assignments) ListForType(ctx context.Context, groupID, groupType, objectType string) ([]*model.Assignment, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT group_id, group_type, object_id, general_type, object_type, from_date, to_date, creation_time
		FROM group_assignments
		WHERE group_id = $1 AND group_type = $2 AND (object_type = $3 OR general_type = $3)
		ORDER BY object_id`,
		groupID, groupType, objectType)
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

func (a *assignments) Delete(ctx context.Context, groupID, groupType, objectType string, objectID *int64) (int64, error) {
	query := `DELETE FROM group_assignments
		WHERE group_id = $1 AND group_type = $2 AND (object_type = $3 OR general_type = $3)`
	args := []interface{}{groupID, groupType, objectType}
	if objectID != nil {
		query += ` AND object_id = $4`
		args = append(args, *objectID)
	}
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (a *assignments) DeleteAllForGroup(ctx context.Context, groupID, groupType string) (int64, error) {
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM group_assignments WHERE group_id = $1 AND group_type = $2`,
		groupID, groupType)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- content ---

type content struct{ db *sql.DB }

func (c *content) PostParents(ctx context.Context) ([]model.ParentRelation, error) {
	return c.parentRelations(ctx, `SELECT object_id, parent_id, object_type FROM content_objects`)
}

func (c *content) TermParents(ctx context.Context) ([]model.ParentRelation, error) {
	return c.parentRelations(ctx, `SELECT term_id, parent_id, taxonomy FROM taxonomy_terms`)
}

func (c *content) parentRelations(ctx context.Context, query string) ([]model.ParentRelation, error) {
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

func (c *content) TermLinks(ctx context.Context) ([]model.TermLink, error) {
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

func (c *content) GetUser(ctx context.Context, userID int64) (*model.HostUser, error) {
	var u model.HostUser
	u.UserID = userID
	err := c.db.QueryRowContext(ctx, `SELECT login FROM users WHERE user_id = $1`, userID).Scan(&u.Login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("user", fmt.Sprintf("user %d not found", userID))
	}
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
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

func (c *content) GetPost(ctx context.Context, postID int64) (*model.HostPost, error) {
	var p model.HostPost
	p.PostID = postID
	err := c.db.QueryRowContext(ctx, `
		SELECT object_type, parent_id FROM content_objects WHERE object_id = $1`, postID).
		Scan(&p.PostType, &p.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("post", fmt.Sprintf("post %d not found", postID))
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *content) GetTerm(ctx context.Context, termID int64, taxonomy string) (*model.HostTerm, error) {
	var t model.HostTerm
	t.TermID = termID
	query := `SELECT taxonomy, parent_id FROM taxonomy_terms WHERE term_id = $1`
	args := []interface{}{termID}
	if taxonomy != "" {
		query += ` AND taxonomy = $2`
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

func (c *content) ListUserIDs(ctx context.Context) ([]int64, error) {
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

func (c *content) ContentTypes(ctx context.Context, kind string) ([]model.ContentType, error) {
	query := `SELECT name, kind FROM content_types`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = $1`
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

func (c *content) RegisterContentType(ctx context.Context, ct model.ContentType) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO content_types (name, kind) VALUES ($1,$2)
		ON CONFLICT (name) DO UPDATE SET kind = excluded.kind`,
		ct.Name, ct.Kind)
	return err
}

func (c *content) UpsertUser(ctx context.Context, u *model.HostUser) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, login) VALUES ($1,$2)
		ON CONFLICT (user_id) DO UPDATE SET login = excluded.login`,
		u.UserID, u.Login); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, u.UserID); err != nil {
		return err
	}
	for _, roleID := range u.RoleIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO roles (role_id, name) VALUES ($1,'')
			ON CONFLICT (role_id) DO NOTHING`, roleID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id) VALUES ($1,$2)
			ON CONFLICT (user_id, role_id) DO NOTHING`, u.UserID, roleID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *content) UpsertPost(ctx context.Context, p *model.HostPost) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO content_objects (object_id, object_type, parent_id) VALUES ($1,$2,$3)
		ON CONFLICT (object_id) DO UPDATE SET object_type = excluded.object_type, parent_id = excluded.parent_id`,
		p.PostID, p.PostType, p.ParentID)
	return err
}

func (c *content) UpsertTerm(ctx context.Context, t *model.HostTerm) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO taxonomy_terms (term_id, taxonomy, parent_id) VALUES ($1,$2,$3)
		ON CONFLICT (term_id) DO UPDATE SET taxonomy = excluded.taxonomy, parent_id = excluded.parent_id`,
		t.TermID, t.Taxonomy, t.ParentID)
	return err
}

func (c *content) UpsertRole(ctx context.Context, roleID int64, name string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO roles (role_id, name) VALUES ($1,$2)
		ON CONFLICT (role_id) DO UPDATE SET name = excluded.name`,
		roleID, name)
	return err
}

func (c *content) LinkTerm(ctx context.Context, objectID, termID int64) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO term_relationships (object_id, term_id) VALUES ($1,$2)
		ON CONFLICT (object_id, term_id) DO NOTHING`,
		objectID, termID)
	return err
}
