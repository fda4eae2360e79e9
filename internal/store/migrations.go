package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all oblig tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS courses (
		id          INTEGER PRIMARY KEY,
		code        TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		semester    TEXT NOT NULL DEFAULT '',
		year        INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS students (
		id         INTEGER PRIMARY KEY,
		student_no INTEGER,
		email      TEXT NOT NULL DEFAULT '',
		firstname  TEXT NOT NULL DEFAULT '',
		lastname   TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS enrollments (
		course_id  INTEGER NOT NULL,
		student_id INTEGER NOT NULL,
		PRIMARY KEY (course_id, student_id)
	)`,

	`CREATE TABLE IF NOT EXISTS exercises (
		id                     INTEGER PRIMARY KEY,
		course_id              INTEGER NOT NULL,
		name                   TEXT NOT NULL DEFAULT '',
		category               TEXT NOT NULL DEFAULT '',
		description_type       TEXT NOT NULL DEFAULT 'canvas_html',
		content                TEXT NOT NULL DEFAULT '',
		deadline               TEXT,
		grading_type           TEXT NOT NULL DEFAULT 'points',
		max_points             REAL,
		published              INTEGER NOT NULL DEFAULT 1,
		submission_category_id INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS submissions (
		id              INTEGER PRIMARY KEY,
		exercise_id     INTEGER NOT NULL,
		content         TEXT NOT NULL DEFAULT '',
		submission_type TEXT NOT NULL DEFAULT '',
		state           TEXT NOT NULL DEFAULT 'UNSUBMITTED',
		group_id        INTEGER,
		group_name      TEXT NOT NULL DEFAULT '',
		submitted_at    TEXT,
		extended_to     TEXT,
		graded_at       TEXT,
		grade           REAL,
		testresult_file TEXT NOT NULL DEFAULT '',
		feedback_file   TEXT NOT NULL DEFAULT '',
		comment_file    TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS contributions (
		student_id    INTEGER NOT NULL,
		submission_id INTEGER NOT NULL,
		PRIMARY KEY (student_id, submission_id)
	)`,

	`CREATE TABLE IF NOT EXISTS lms_groups (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		category_id INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS memberships (
		student_id INTEGER NOT NULL,
		group_id   INTEGER NOT NULL,
		PRIMARY KEY (student_id, group_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_exercises_course_id ON exercises(course_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_exercise_id ON submissions(exercise_id)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_state ON submissions(state)`,
	`CREATE INDEX IF NOT EXISTS idx_contributions_submission_id ON contributions(submission_id)`,
	`CREATE INDEX IF NOT EXISTS idx_memberships_group_id ON memberships(group_id)`,
	`CREATE INDEX IF NOT EXISTS idx_groups_category_id ON lms_groups(category_id)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "exercises",
		column:   "grading_path",
		alterSQL: "ALTER TABLE exercises ADD COLUMN grading_path TEXT NOT NULL DEFAULT ''",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// The pool holds a single connection; release the cursor first.
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
