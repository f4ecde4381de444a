package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type sqlRegistrationRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &sqlRegistrationRepo{db: db, now: time.Now}
}

// Create relies on UNIQUE(email, event_date) to reject duplicates atomically.
func (r *sqlRegistrationRepo) Create(ctx context.Context, reg *Registration) (string, error) {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = r.now()
	}
	reg.CreatedAt = reg.CreatedAt.UTC().Truncate(time.Second)

	// The event date is read inside the insert so a missing event yields no row
	// instead of a dangling reference.
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO registrations (id, full_name, email, college_name, department, event_id, event_date, created_at)
		SELECT $1, $2, $3, $4, $5, e.id, e.event_date, $7
		FROM events e WHERE e.id = $6`,
		reg.ID, reg.FullName, reg.Email, reg.CollegeName, reg.Department, reg.EventID, reg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return "", storageErr("create registration", fmt.Errorf("event %s does not exist: %w", reg.EventID, err))
		}
		return "", storageErr("create registration", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", storageErr("create registration", err)
	}
	if n == 0 {
		return "", storageErr("create registration", fmt.Errorf("event %s does not exist", reg.EventID))
	}
	return reg.ID, nil
}

func (r *sqlRegistrationRepo) IsDuplicate(ctx context.Context, email, eventID string) (bool, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM registrations r
			JOIN events e ON e.id = r.event_id
			WHERE r.email = $1
			  AND e.event_date = (SELECT event_date FROM events WHERE id = $2)
		)`,
		strings.ToLower(strings.TrimSpace(email)), eventID,
	).Scan(&exists)
	if err != nil {
		return false, storageErr("duplicate check", err)
	}
	return exists, nil
}

func (r *sqlRegistrationRepo) CountByEvent(ctx context.Context, eventID string) (int, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return 0, nil
	}
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID,
	).Scan(&n); err != nil {
		return 0, storageErr("count by event", err)
	}
	return n, nil
}

func (r *sqlRegistrationRepo) CountByDate(ctx context.Context, date string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE e.event_date = $1`, date,
	).Scan(&n); err != nil {
		return 0, storageErr("count by date", err)
	}
	return n, nil
}

func (r *sqlRegistrationRepo) List(ctx context.Context, f RegistrationFilter) ([]RegistrationWithEvent, error) {
	f = f.Normalize()

	q := `
		SELECT r.id, r.full_name, r.email, r.college_name, r.department, r.event_id, r.created_at,
		       e.name, e.event_date, e.category
		FROM registrations r
		JOIN events e ON e.id = r.event_id`
	var args []any
	switch {
	case f.EventID != "":
		if _, err := uuid.Parse(f.EventID); err != nil {
			return []RegistrationWithEvent{}, nil
		}
		q += ` WHERE r.event_id = $1`
		args = append(args, f.EventID)
	case f.EventDate != "":
		q += ` WHERE e.event_date = $1`
		args = append(args, f.EventDate)
	}
	q += ` ORDER BY r.created_at DESC, r.id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("list registrations", err)
	}
	defer rows.Close()

	out := []RegistrationWithEvent{}
	for rows.Next() {
		var rw RegistrationWithEvent
		if err := rows.Scan(
			&rw.ID, &rw.FullName, &rw.Email, &rw.CollegeName, &rw.Department, &rw.EventID, &rw.CreatedAt,
			&rw.EventName, &rw.EventDate, &rw.Category,
		); err != nil {
			return nil, storageErr("list registrations", err)
		}
		out = append(out, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list registrations", err)
	}
	return out, nil
}

func (r *sqlRegistrationRepo) Delete(ctx context.Context, id string) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return 0, storageErr("delete registration", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("delete registration", err)
	}
	return n, nil
}

// Postgres SQLSTATE codes.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
