package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type sqlEventRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLEventRepository(db *sql.DB) EventRepository {
	return &sqlEventRepo{db: db, now: time.Now}
}

const eventColumns = `id, name, category, registration_start, registration_end, event_date, created_at`

func (r *sqlEventRepo) Create(ctx context.Context, e *Event) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Name = strings.TrimSpace(e.Name)
	e.Category = strings.TrimSpace(e.Category)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC().Truncate(time.Second)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Name, e.Category, e.RegistrationStart, e.RegistrationEnd, e.EventDate, e.CreatedAt,
	)
	if err != nil {
		return "", storageErr("create event", err)
	}
	return e.ID, nil
}

// Update rewrites the event and keeps the denormalised event_date of its registrations
// in step. Moving an event onto a date where one of its registrants is already
// registered elsewhere fails with ErrDuplicate and changes nothing.
func (r *sqlEventRepo) Update(ctx context.Context, id string, e Event) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("update event", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE events
		SET name = $2, category = $3, registration_start = $4, registration_end = $5, event_date = $6
		WHERE id = $1`,
		id, strings.TrimSpace(e.Name), strings.TrimSpace(e.Category),
		e.RegistrationStart, e.RegistrationEnd, e.EventDate,
	)
	if err != nil {
		return 0, storageErr("update event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("update event", err)
	}
	if n == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE registrations SET event_date = $2 WHERE event_id = $1 AND event_date <> $2`,
		id, e.EventDate,
	); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, storageErr("update event registrations", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("update event", err)
	}
	return n, nil
}

// Delete removes the event; its registrations go with it through ON DELETE CASCADE.
func (r *sqlEventRepo) Delete(ctx context.Context, id string) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return 0, storageErr("delete event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("delete event", err)
	}
	return n, nil
}

func (r *sqlEventRepo) GetByID(ctx context.Context, id string) (Event, bool, error) {
	// Form input can carry anything; a malformed id simply matches nothing.
	if _, err := uuid.Parse(id); err != nil {
		return Event{}, false, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, storageErr("get event", err)
	}
	return e, true, nil
}

func (r *sqlEventRepo) ListAll(ctx context.Context) ([]Event, error) {
	return r.query(ctx, "list events",
		`SELECT `+eventColumns+` FROM events ORDER BY event_date ASC, name ASC`)
}

func (r *sqlEventRepo) ListOpen(ctx context.Context, today string) ([]Event, error) {
	return r.query(ctx, "list open events", `
		SELECT `+eventColumns+` FROM events
		WHERE registration_start <= $1 AND registration_end >= $1
		ORDER BY event_date ASC, name ASC`, today)
}

func (r *sqlEventRepo) query(ctx context.Context, op, q string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner) (Event, error) {
	var e Event
	err := s.Scan(&e.ID, &e.Name, &e.Category, &e.RegistrationStart, &e.RegistrationEnd, &e.EventDate, &e.CreatedAt)
	return e, err
}
