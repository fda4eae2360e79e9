package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/oblig/pkg/model"

	_ "modernc.org/sqlite"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the statements shared by SQLiteStore and its transactions.
type queries struct {
	q      dbtx
	logger *slog.Logger
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	*queries
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection: every ":memory:" connection is a separate database,
	// and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	logger = logger.With("component", "store")
	return &SQLiteStore{
		queries: &queries{q: db, logger: logger},
		db:      db,
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// InTx runs fn against a transaction-scoped Tx.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	s.logger.Debug("sql", "op", "begin")
	if err := fn(&queries{q: tx, logger: s.logger}); err != nil {
		s.logger.Debug("sql", "op", "rollback", "error", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("sql", "op", "commit")
	return nil
}

// --- Course and student records ---

func (s *SQLiteStore) UpsertCourse(ctx context.Context, c *model.Course) (model.UpdateResult, error) {
	old, err := s.GetCourse(ctx, c.ID)
	if err != nil {
		return "", err
	}
	if old != nil && *old == *c {
		return model.UpdateUnchanged, nil
	}

	s.logger.Debug("sql", "op", "upsert", "table", "courses", "id", c.ID)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO courses (id, code, description, semester, year) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET code = excluded.code, description = excluded.description,
		   semester = excluded.semester, year = excluded.year`,
		c.ID, c.Code, c.Description, string(c.Semester), c.Year,
	)
	if err != nil {
		return "", err
	}
	if old == nil {
		return model.UpdateNew, nil
	}
	return model.UpdateModified, nil
}

func (s *SQLiteStore) GetCourse(ctx context.Context, id int64) (*model.Course, error) {
	s.logger.Debug("sql", "op", "select", "table", "courses", "id", id)

	var c model.Course
	var semester string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, description, semester, year FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Code, &c.Description, &semester, &c.Year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Semester = model.Semester(semester)
	return &c, nil
}

func (s *SQLiteStore) ListCourses(ctx context.Context) ([]*model.Course, error) {
	s.logger.Debug("sql", "op", "list", "table", "courses")

	rows, err := s.db.QueryContext(ctx, `SELECT id, code, description, semester, year FROM courses`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		var c model.Course
		var semester string
		if err := rows.Scan(&c.ID, &c.Code, &c.Description, &semester, &c.Year); err != nil {
			return nil, err
		}
		c.Semester = model.Semester(semester)
		courses = append(courses, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	model.SortCourses(courses)
	return courses, nil
}

func (s *SQLiteStore) UpsertStudent(ctx context.Context, st *model.Student) (model.UpdateResult, error) {
	old, err := s.GetStudent(ctx, st.ID)
	if err != nil {
		return "", err
	}
	if old != nil && old.FirstName == st.FirstName && old.LastName == st.LastName &&
		old.Email == st.Email && ptrEq(old.StudentNo, st.StudentNo) {
		return model.UpdateUnchanged, nil
	}

	s.logger.Debug("sql", "op", "upsert", "table", "students", "id", st.ID)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO students (id, student_no, email, firstname, lastname) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET student_no = excluded.student_no, email = excluded.email,
		   firstname = excluded.firstname, lastname = excluded.lastname`,
		st.ID, nullInt(st.StudentNo), st.Email, st.FirstName, st.LastName,
	)
	if err != nil {
		return "", err
	}
	if old == nil {
		return model.UpdateNew, nil
	}
	return model.UpdateModified, nil
}

func (s *SQLiteStore) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	s.logger.Debug("sql", "op", "select", "table", "students", "id", id)

	var st model.Student
	var no sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_no, email, firstname, lastname FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &no, &st.Email, &st.FirstName, &st.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.StudentNo = fromNullInt(no)
	return &st, nil
}

func (s *SQLiteStore) Enroll(ctx context.Context, courseID, studentID int64) error {
	s.logger.Debug("sql", "op", "insert", "table", "enrollments", "course_id", courseID, "student_id", studentID)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO enrollments (course_id, student_id) VALUES (?, ?)`, courseID, studentID)
	return err
}

func (s *SQLiteStore) ListStudents(ctx context.Context, courseID int64) ([]*model.Student, error) {
	s.logger.Debug("sql", "op", "list", "table", "students", "course_id", courseID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.student_no, s.email, s.firstname, s.lastname
		 FROM students s JOIN enrollments e ON e.student_id = s.id
		 WHERE e.course_id = ? ORDER BY s.lastname, s.firstname`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		var st model.Student
		var no sql.NullInt64
		if err := rows.Scan(&st.ID, &no, &st.Email, &st.FirstName, &st.LastName); err != nil {
			return nil, err
		}
		st.StudentNo = fromNullInt(no)
		students = append(students, &st)
	}
	return students, rows.Err()
}

// --- Exercise CRUD ---

const exerciseColumns = `id, course_id, name, category, description_type, content, deadline,
	grading_type, max_points, published, submission_category_id, grading_path`

func (s *SQLiteStore) UpsertExercise(ctx context.Context, ex *model.Exercise) (model.UpdateResult, error) {
	old, err := s.GetExercise(ctx, ex.ID)
	if err != nil {
		return "", err
	}
	// The grading path is local state and survives LMS refreshes.
	if old != nil && ex.GradingPath == "" {
		ex.GradingPath = old.GradingPath
	}
	// So is a template installed for a git_repo exercise.
	if old != nil && old.DescriptionType == model.DescriptionGitRepo && ex.DescriptionType != model.DescriptionGitRepo {
		ex.DescriptionType, ex.Content = old.DescriptionType, old.Content
	}
	if old != nil && old.Equal(ex) {
		return model.UpdateUnchanged, nil
	}

	s.logger.Debug("sql", "op", "upsert", "table", "exercises", "id", ex.ID)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exercises (`+exerciseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET course_id = excluded.course_id, name = excluded.name,
		   category = excluded.category, description_type = excluded.description_type,
		   content = excluded.content, deadline = excluded.deadline,
		   grading_type = excluded.grading_type, max_points = excluded.max_points,
		   published = excluded.published, submission_category_id = excluded.submission_category_id,
		   grading_path = excluded.grading_path`,
		ex.ID, ex.CourseID, ex.Name, ex.Category, string(ex.DescriptionType), ex.Content,
		formatTime(ex.Deadline), string(ex.GradingType), nullFloat(ex.MaxPoints), ex.Published,
		nullInt(ex.SubmissionCategoryID), ex.GradingPath,
	)
	if err != nil {
		return "", err
	}
	if old == nil {
		return model.UpdateNew, nil
	}
	return model.UpdateModified, nil
}

func (q *queries) GetExercise(ctx context.Context, id int64) (*model.Exercise, error) {
	q.logger.Debug("sql", "op", "select", "table", "exercises", "id", id)

	ex, err := scanExercise(q.q.QueryRowContext(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ex, err
}

func (s *SQLiteStore) ListExercises(ctx context.Context, courseID int64) ([]*model.Exercise, error) {
	s.logger.Debug("sql", "op", "list", "table", "exercises", "course_id", courseID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE course_id = ? OR ? = 0`, courseID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exercises []*model.Exercise
	for rows.Next() {
		ex, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	model.SortExercises(exercises)
	return exercises, nil
}

func (s *SQLiteStore) SetGradingPath(ctx context.Context, exerciseID int64, path string) error {
	s.logger.Debug("sql", "op", "update", "table", "exercises", "id", exerciseID, "grading_path", path)
	res, err := s.db.ExecContext(ctx, `UPDATE exercises SET grading_path = ? WHERE id = ?`, path, exerciseID)
	if err != nil {
		return err
	}
	return expectOne(res, "exercise", exerciseID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExercise(r rowScanner) (*model.Exercise, error) {
	var ex model.Exercise
	var descType, gradingType string
	var deadline sql.NullString
	var maxPoints sql.NullFloat64
	var category sql.NullInt64
	err := r.Scan(&ex.ID, &ex.CourseID, &ex.Name, &ex.Category, &descType, &ex.Content, &deadline,
		&gradingType, &maxPoints, &ex.Published, &category, &ex.GradingPath)
	if err != nil {
		return nil, err
	}
	ex.DescriptionType = model.DescriptionType(descType)
	ex.GradingType = model.GradingType(gradingType)
	ex.Deadline = parseTime(deadline)
	ex.MaxPoints = fromNullFloat(maxPoints)
	ex.SubmissionCategoryID = fromNullInt(category)
	return &ex, nil
}

// --- Groups ---

// ReplaceGroups swaps the stored groups of a category for the given set.
func (s *SQLiteStore) ReplaceGroups(ctx context.Context, categoryID int64, groups []model.Group, members []model.GroupMembership) error {
	return s.InTx(ctx, func(tx Tx) error {
		q := tx.(*queries)
		q.logger.Debug("sql", "op", "replace", "table", "lms_groups", "category_id", categoryID, "groups", len(groups))
		if _, err := q.q.ExecContext(ctx,
			`DELETE FROM memberships WHERE group_id IN (SELECT id FROM lms_groups WHERE category_id = ?)`, categoryID); err != nil {
			return err
		}
		if _, err := q.q.ExecContext(ctx, `DELETE FROM lms_groups WHERE category_id = ?`, categoryID); err != nil {
			return err
		}
		for _, g := range groups {
			if _, err := q.q.ExecContext(ctx,
				`INSERT OR REPLACE INTO lms_groups (id, name, category_id) VALUES (?, ?, ?)`, g.ID, g.Name, categoryID); err != nil {
				return err
			}
		}
		for _, m := range members {
			if _, err := q.q.ExecContext(ctx,
				`INSERT OR IGNORE INTO memberships (student_id, group_id) VALUES (?, ?)`, m.StudentID, m.GroupID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (q *queries) GroupOf(ctx context.Context, studentID, categoryID int64) (*model.Group, error) {
	q.logger.Debug("sql", "op", "select", "table", "memberships", "student_id", studentID, "category_id", categoryID)

	var g model.Group
	err := q.q.QueryRowContext(ctx,
		`SELECT g.id, g.name, g.category_id FROM lms_groups g
		 JOIN memberships m ON m.group_id = g.id
		 WHERE m.student_id = ? AND g.category_id = ?
		 ORDER BY g.id LIMIT 1`, studentID, categoryID,
	).Scan(&g.ID, &g.Name, &g.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (q *queries) GroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	q.logger.Debug("sql", "op", "list", "table", "memberships", "group_id", groupID)

	rows, err := q.q.QueryContext(ctx,
		`SELECT student_id FROM memberships WHERE group_id = ? ORDER BY student_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// --- Settings ---

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.logger.Debug("sql", "op", "select", "table", "settings", "key", key)

	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM settings WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	s.logger.Debug("sql", "op", "upsert", "table", "settings", "key", key)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, value)
	return err
}

// --- helpers ---

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func ptrEq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func expectOne(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, model.ErrNotFound)
	}
	return nil
}
