package models

import (
	"context"
	"database/sql"
	"time"
)

type sqlRegistrationRepo struct{ db *sql.DB }

func NewSQLRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &sqlRegistrationRepo{db}
}

const registrationColumns = `id, user_id, event_id, status, registered_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }) (Registration, error) {
	var r Registration
	err := row.Scan(&r.ID, &r.UserID, &r.EventID, &r.Status, &r.RegisteredAt, &r.UpdatedAt)
	return r, translate(err)
}

func collectRegistrations(rows *sql.Rows) ([]Registration, error) {
	defer rows.Close()
	out := []Registration{}
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WithEventLock opens a transaction and takes FOR UPDATE on the event row, so
// concurrent capacity checks for the same event queue behind each other.
func (r *sqlRegistrationRepo) WithEventLock(ctx context.Context, eventID int64, fn func(ctx context.Context, tx RegistrationTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback() // no-op after commit

	ev, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, eventID))
	if err != nil {
		return err
	}

	if err := fn(ctx, &sqlRegistrationTx{tx: tx, event: ev}); err != nil {
		return err
	}
	return translate(tx.Commit())
}

// ListForEvent filters by status unless status is empty.
func (r *sqlRegistrationRepo) ListForEvent(ctx context.Context, eventID int64, status Status) ([]Registration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+registrationColumns+` FROM registrations
		WHERE event_id=$1 AND ($2 = '' OR status = $2)
		ORDER BY registered_at, id`, eventID, string(status))
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

func (r *sqlRegistrationRepo) ListForUser(ctx context.Context, userID int64) ([]Registration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+registrationColumns+` FROM registrations
		WHERE user_id=$1
		ORDER BY registered_at, id`, userID)
	if err != nil {
		return nil, err
	}
	return collectRegistrations(rows)
}

func (r *sqlRegistrationRepo) CountActive(ctx context.Context, eventID int64) (int, error) {
	return countActive(ctx, r.db, eventID)
}

func (r *sqlRegistrationRepo) Delete(ctx context.Context, userID, eventID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE user_id=$1 AND event_id=$2`, userID, eventID)
	if err != nil {
		return translate(err)
	}
	return requireOne(res)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countActive(ctx context.Context, q queryer, eventID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM registrations WHERE event_id=$1 AND status <> 'rejected'`, eventID).Scan(&n)
	return n, translate(err)
}

type sqlRegistrationTx struct {
	tx    *sql.Tx
	event Event
}

func (t *sqlRegistrationTx) Event() Event { return t.event }

func (t *sqlRegistrationTx) CountActive(ctx context.Context) (int, error) {
	return countActive(ctx, t.tx, t.event.ID)
}

func (t *sqlRegistrationTx) FindByUser(ctx context.Context, userID int64) (Registration, error) {
	return scanRegistration(t.tx.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id=$1 AND event_id=$2`, userID, t.event.ID))
}

func (t *sqlRegistrationTx) Get(ctx context.Context, id int64) (Registration, error) {
	return scanRegistration(t.tx.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id=$1 AND event_id=$2`, id, t.event.ID))
}

// Insert relies on UNIQUE(user_id, event_id); a violation comes back as ErrDuplicate.
func (t *sqlRegistrationTx) Insert(ctx context.Context, r *Registration) error {
	r.EventID = t.event.ID
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO registrations(user_id, event_id, status, registered_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id, updated_at`,
		r.UserID, r.EventID, string(r.Status), r.RegisteredAt,
	).Scan(&r.ID, &r.UpdatedAt)
	return translate(err)
}

func (t *sqlRegistrationTx) UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE registrations SET status=$3, updated_at=$4 WHERE id=$1 AND event_id=$2`,
		id, t.event.ID, string(status), at)
	if err != nil {
		return translate(err)
	}
	return requireOne(res)
}

func (t *sqlRegistrationTx) UpdateEvent(ctx context.Context, e *Event) error {
	e.ID = t.event.ID
	err := t.tx.QueryRowContext(ctx, `
		UPDATE events SET title=$2, date=$3, location=$4, description=$5, max_attendees=$6, updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at`,
		e.ID, e.Title, e.Date, e.Location, e.Description, e.MaxAttendees,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	t.event = *e
	return nil
}
