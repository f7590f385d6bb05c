package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Janhavi187/event-attendance-system/internal/store"
)

const studentColumns = `id, name, email, attendance, "timestamp"`

// Repository persists students in the students table.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) q(query string) string {
	return r.db.Dialect.Rebind(query)
}

// Upsert creates the student or fully replaces an existing row, resetting
// attendance to absent.
func (r *Repository) Upsert(ctx context.Context, id, name, email string) error {
	_, err := r.db.Client.ExecContext(ctx, r.q(`
		INSERT INTO students (id, name, email, attendance, "timestamp")
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			attendance = excluded.attendance,
			"timestamp" = NULL
	`), id, name, email, false)
	if err != nil {
		return fmt.Errorf("%w: upsert student %s: %w", ErrStorage, id, err)
	}
	return nil
}

// Get returns a single student by id.
func (r *Repository) Get(ctx context.Context, id string) (Student, error) {
	row := r.db.Client.QueryRowContext(ctx, r.q(`SELECT `+studentColumns+` FROM students WHERE id = ?`), id)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, fmt.Errorf("%w: get student %s: %w", ErrStorage, id, err)
	}
	return st, nil
}

// Exists reports whether a row with id is stored.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.Client.QueryRowContext(ctx, r.q(`SELECT 1 FROM students WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup student %s: %w", ErrStorage, id, err)
	}
	return true, nil
}

// MarkPresent flips attendance from absent to present in one conditional
// update, so only the first of several concurrent callers succeeds.
func (r *Repository) MarkPresent(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.Client.ExecContext(ctx, r.q(`
		UPDATE students
		SET attendance = ?, "timestamp" = ?
		WHERE id = ? AND attendance = ?
	`), true, FormatTimestamp(at), id, false)
	if err != nil {
		return fmt.Errorf("%w: mark student %s: %w", ErrStorage, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", ErrStorage, err)
	}
	if n == 1 {
		return nil
	}

	exists, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyMarked
}

// List returns all students in insertion order.
func (r *Repository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.db.Client.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students ORDER BY `+r.db.Dialect.Order)
	if err != nil {
		return nil, fmt.Errorf("%w: list students: %w", ErrStorage, err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan student: %w", ErrStorage, err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list students: %w", ErrStorage, err)
	}
	return students, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (Student, error) {
	var (
		st Student
		ts sql.NullString
	)
	if err := row.Scan(&st.ID, &st.Name, &st.Email, &st.Attendance, &ts); err != nil {
		return Student{}, err
	}
	if ts.Valid && ts.String != "" {
		t, err := parseTimestamp(ts.String)
		if err != nil {
			return Student{}, fmt.Errorf("parse timestamp %q: %w", ts.String, err)
		}
		st.Timestamp = &t
	}
	return st, nil
}
