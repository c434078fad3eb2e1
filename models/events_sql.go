package models

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type sqlEventRepo struct{ db *sql.DB }

func NewSQLEventRepository(db *sql.DB) EventRepository { return &sqlEventRepo{db} }

const eventColumns = `id, title, date, location, description, max_attendees, created_at, updated_at, deleted_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var e Event
	var deleted sql.NullTime
	err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Location, &e.Description, &e.MaxAttendees,
		&e.CreatedAt, &e.UpdatedAt, &deleted)
	if err != nil {
		return Event{}, translate(err)
	}
	if deleted.Valid {
		e.DeletedAt = &deleted.Time
	}
	return e, nil
}

func (r *sqlEventRepo) Create(ctx context.Context, e *Event) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO events(title, date, location, description, max_attendees)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at`,
		e.Title, e.Date, e.Location, e.Description, e.MaxAttendees,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return translate(err)
}

func (r *sqlEventRepo) GetByID(ctx context.Context, id int64) (Event, error) {
	return scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id=$1 AND deleted_at IS NULL`, id))
}

func (r *sqlEventRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id=$1)`, id).Scan(&ok)
	return ok, translate(err)
}

// eventQuery builds the WHERE clause for f; every path excludes deleted rows.
func eventQuery(f EventFilter) (string, []any) {
	where := []string{"deleted_at IS NULL"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Title != "" {
		add("title ILIKE $%d", "%"+likeEscape(f.Title)+"%")
	}
	if f.Location != "" {
		add("location ILIKE $%d", "%"+likeEscape(f.Location)+"%")
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	if f.Before != nil {
		add("date < $%d", *f.Before)
	}
	q := `SELECT ` + eventColumns + ` FROM events WHERE ` + strings.Join(where, " AND ") + ` ORDER BY date, id`
	return q, args
}

func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *sqlEventRepo) List(ctx context.Context, f EventFilter) ([]Event, error) {
	q, args := eventQuery(f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *sqlEventRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET deleted_at=$2 WHERE id=$1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return translate(err)
	}
	return requireOne(res)
}
