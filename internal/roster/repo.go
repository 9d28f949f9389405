package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists students and attendance records. The SQL is written to
// run unchanged on Postgres (production) and SQLite (tests).
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// isUniqueViolation reports whether err came from a storage-declared unique
// constraint. The string check covers SQLite's "UNIQUE constraint failed".
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// clause returns the WHERE fragment selecting rows in scope, with its args.
// idx is the next free placeholder index.
func (s Scope) clause(col string, idx int) (string, []any) {
	if s.IsGlobal() {
		return col + " IS NULL", nil
	}
	return col + " = $" + itoa(idx), []any{s.ProjectID}
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

const studentCols = "id, project_id, name, phone, school, year, created_at"

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Phone, &s.School, &s.Year, &s.CreatedAt)
	return s, err
}

// CreateStudent inserts a new student into the scope. A phone collision
// within the scope surfaces as ErrConflict.
func (r *Repository) CreateStudent(ctx context.Context, scope Scope, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if !scope.IsGlobal() {
		s.ProjectID = &scope.ProjectID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, project_id, name, phone, school, year, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.ProjectID, s.Name, s.Phone, s.School, s.Year, s.CreatedAt)
	if isUniqueViolation(err) {
		return Student{}, ErrConflict
	}
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// StudentByID returns the student if it exists within the scope, else nil.
func (r *Repository) StudentByID(ctx context.Context, scope Scope, id string) (*Student, error) {
	cond, args := scope.clause("project_id", 2)
	row := r.db.QueryRowContext(ctx,
		"SELECT "+studentCols+" FROM students WHERE id = $1 AND "+cond,
		append([]any{id}, args...)...)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// StudentByPhone looks a student up by its unique phone within the scope.
func (r *Repository) StudentByPhone(ctx context.Context, scope Scope, phone string) (*Student, error) {
	cond, args := scope.clause("project_id", 2)
	row := r.db.QueryRowContext(ctx,
		"SELECT "+studentCols+" FROM students WHERE phone = $1 AND "+cond,
		append([]any{phone}, args...)...)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// StudentsByName returns every student in scope with exactly this name.
func (r *Repository) StudentsByName(ctx context.Context, scope Scope, name string) ([]Student, error) {
	cond, args := scope.clause("project_id", 2)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+studentCols+" FROM students WHERE name = $1 AND "+cond+" ORDER BY created_at",
		append([]any{name}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// SetStudentName backfills a name, used when a known phone checks in with a
// name the record is missing.
func (r *Repository) SetStudentName(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE students SET name = $2 WHERE id = $1`, id, name)
	return err
}

// UpdateStudent replaces the editable fields of a student in scope. Returns
// nil when the student is not in scope, ErrConflict on a phone collision.
func (r *Repository) UpdateStudent(ctx context.Context, scope Scope, id string, name, phone, school, year *string) (*Student, error) {
	cond, args := scope.clause("project_id", 6)
	row := r.db.QueryRowContext(ctx, `
		UPDATE students SET name = $2, phone = $3, school = $4, year = $5
		WHERE id = $1 AND `+cond+`
		RETURNING `+studentCols,
		append([]any{id, name, phone, school, year}, args...)...)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteStudent removes a student and its attendance history. The attendance
// delete is explicit even though the schema also declares ON DELETE CASCADE.
func (r *Repository) DeleteStudent(ctx context.Context, scope Scope, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	cond, args := scope.clause("project_id", 2)
	var found string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM students WHERE id = $1 AND "+cond,
		append([]any{id}, args...)...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attendances WHERE student_id = $1`, id); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// ListStudents returns every student in scope with its attendance count,
// newest first.
func (r *Repository) ListStudents(ctx context.Context, scope Scope) ([]StudentListing, error) {
	cond, args := scope.clause("s.project_id", 1)
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.project_id, s.name, s.phone, s.school, s.year, s.created_at, COUNT(a.id)
		FROM students s
		LEFT JOIN attendances a ON a.student_id = s.id
		WHERE `+cond+`
		GROUP BY s.id, s.project_id, s.name, s.phone, s.school, s.year, s.created_at
		ORDER BY s.created_at DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StudentListing
	for rows.Next() {
		var l StudentListing
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Name, &l.Phone, &l.School, &l.Year, &l.CreatedAt, &l.AttendanceCount); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// CountStudents returns the number of students in scope.
func (r *Repository) CountStudents(ctx context.Context, scope Scope) (int, error) {
	cond, args := scope.clause("project_id", 1)
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students WHERE "+cond, args...).Scan(&n)
	return n, err
}

// InsertAttendance records a check-in for (student, date). The unique
// constraint makes concurrent duplicates degrade to created = false.
func (r *Repository) InsertAttendance(ctx context.Context, studentID, date string, checkedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendances (id, student_id, date, checked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, date) DO NOTHING
	`, uuid.NewString(), studentID, date, checkedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAttendance removes the record for (student, date) if present.
func (r *Repository) DeleteAttendance(ctx context.Context, studentID, date string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM attendances WHERE student_id = $1 AND date = $2`, studentID, date)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AttendanceDates returns the sorted dates a student has checked in on.
func (r *Repository) AttendanceDates(ctx context.Context, studentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date FROM attendances WHERE student_id = $1 ORDER BY date`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// DailySheet returns one row per student in scope with its presence state on
// the given date, name order.
func (r *Repository) DailySheet(ctx context.Context, scope Scope, date string) ([]SheetRow, error) {
	cond, args := scope.clause("s.project_id", 2)
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.phone, a.id, a.checked_at
		FROM students s
		LEFT JOIN attendances a ON a.student_id = s.id AND a.date = $1
		WHERE `+cond+`
		ORDER BY s.name ASC
	`, append([]any{date}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []SheetRow
	for rows.Next() {
		var row SheetRow
		var checkedAt sql.NullTime
		if err := rows.Scan(&row.StudentID, &row.Name, &row.Phone, &row.AttendanceID, &checkedAt); err != nil {
			return nil, err
		}
		row.IsPresent = row.AttendanceID != nil
		if checkedAt.Valid {
			t := checkedAt.Time
			row.CheckedAt = &t
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// ExportRows returns every student in scope with its full date history,
// name order.
func (r *Repository) ExportRows(ctx context.Context, scope Scope) ([]ExportRow, error) {
	cond, args := scope.clause("s.project_id", 1)
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.phone, s.school, s.year, a.date
		FROM students s
		LEFT JOIN attendances a ON a.student_id = s.id
		WHERE `+cond+`
		ORDER BY s.name ASC, s.id, a.date ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ExportRow
	lastID := ""
	for rows.Next() {
		var id string
		var name, phone, school, year, date *string
		if err := rows.Scan(&id, &name, &phone, &school, &year, &date); err != nil {
			return nil, err
		}
		if id != lastID {
			res = append(res, ExportRow{Name: name, Phone: phone, School: school, Year: year, Dates: []string{}})
			lastID = id
		}
		if date != nil {
			res[len(res)-1].Dates = append(res[len(res)-1].Dates, *date)
		}
	}
	return res, rows.Err()
}

// MergeStudents moves source's attendance history onto target and deletes
// source, all in one transaction. Dates target already has keep target's
// record; source's row for that date is dropped with the rest of source.
func (r *Repository) MergeStudents(ctx context.Context, scope Scope, sourceID, targetID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cond, args := scope.clause("project_id", 2)
	for _, id := range []string{sourceID, targetID} {
		var found string
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM students WHERE id = $1 AND "+cond,
			append([]any{id}, args...)...).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE attendances SET student_id = $1
		WHERE student_id = $2
		AND date NOT IN (SELECT date FROM attendances WHERE student_id = $1)
	`, targetID, sourceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attendances WHERE student_id = $1`, sourceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, sourceID); err != nil {
		return err
	}
	return tx.Commit()
}
