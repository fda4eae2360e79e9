package store

import (
	"context"
	"database/sql"
	"errors"
	"slices"

	"github.com/me/oblig/pkg/model"
)

// --- Submission operations ---

const submissionColumns = `id, exercise_id, content, submission_type, state, group_id, group_name,
	submitted_at, extended_to, graded_at, grade, testresult_file, feedback_file, comment_file`

func (q *queries) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	q.logger.Debug("sql", "op", "select", "table", "submissions", "id", id)

	sub, err := scanSubmission(q.q.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sub.Contributions, err = q.contributors(ctx, id); err != nil {
		return nil, err
	}
	return sub, nil
}

// ListSubmissions returns every submission of an exercise ordered by id,
// with contributions loaded.
func (q *queries) ListSubmissions(ctx context.Context, exerciseID int64) ([]*model.Submission, error) {
	q.logger.Debug("sql", "op", "list", "table", "submissions", "exercise_id", exerciseID)

	rows, err := q.q.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE exercise_id = ? ORDER BY id`, exerciseID)
	if err != nil {
		return nil, err
	}
	var subs []*model.Submission
	byID := make(map[int64]*model.Submission)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		subs = append(subs, sub)
		byID[sub.ID] = sub
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	crows, err := q.q.QueryContext(ctx,
		`SELECT c.submission_id, c.student_id FROM contributions c
		 JOIN submissions s ON s.id = c.submission_id
		 WHERE s.exercise_id = ? ORDER BY c.submission_id, c.student_id`, exerciseID)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var subID, studentID int64
		if err := crows.Scan(&subID, &studentID); err != nil {
			return nil, err
		}
		if sub, ok := byID[subID]; ok {
			sub.Contributions = append(sub.Contributions, studentID)
		}
	}
	return subs, crows.Err()
}

func (q *queries) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	q.logger.Debug("sql", "op", "insert", "table", "submissions", "id", sub.ID)

	_, err := q.q.ExecContext(ctx,
		`INSERT INTO submissions (`+submissionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ExerciseID, sub.Content, sub.SubmissionType, string(sub.State),
		nullInt(sub.GroupID), sub.GroupName,
		formatTime(sub.SubmittedAt), formatTime(sub.ExtendedTo), formatTime(sub.GradedAt),
		nullFloat(sub.Grade), sub.TestResultFile, sub.FeedbackFile, sub.CommentFile,
	)
	if err != nil {
		return err
	}
	return q.SetContributions(ctx, sub.ID, sub.Contributions)
}

// UpdateSubmission overwrites every column of an existing submission and
// syncs its contribution rows.
func (q *queries) UpdateSubmission(ctx context.Context, sub *model.Submission) error {
	q.logger.Debug("sql", "op", "update", "table", "submissions", "id", sub.ID, "state", sub.State)

	res, err := q.q.ExecContext(ctx,
		`UPDATE submissions SET exercise_id = ?, content = ?, submission_type = ?, state = ?,
		   group_id = ?, group_name = ?, submitted_at = ?, extended_to = ?, graded_at = ?, grade = ?,
		   testresult_file = ?, feedback_file = ?, comment_file = ?
		 WHERE id = ?`,
		sub.ExerciseID, sub.Content, sub.SubmissionType, string(sub.State),
		nullInt(sub.GroupID), sub.GroupName,
		formatTime(sub.SubmittedAt), formatTime(sub.ExtendedTo), formatTime(sub.GradedAt),
		nullFloat(sub.Grade), sub.TestResultFile, sub.FeedbackFile, sub.CommentFile,
		sub.ID,
	)
	if err != nil {
		return err
	}
	if err := expectOne(res, "submission", sub.ID); err != nil {
		return err
	}
	return q.SetContributions(ctx, sub.ID, sub.Contributions)
}

// UpdateSubmission writes a submission and its contributions atomically.
func (s *SQLiteStore) UpdateSubmission(ctx context.Context, sub *model.Submission) error {
	return s.InTx(ctx, func(tx Tx) error { return tx.UpdateSubmission(ctx, sub) })
}

// InsertSubmission writes a new submission and its contributions atomically.
func (s *SQLiteStore) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	return s.InTx(ctx, func(tx Tx) error { return tx.InsertSubmission(ctx, sub) })
}

func (q *queries) DeleteSubmission(ctx context.Context, id int64) error {
	q.logger.Debug("sql", "op", "delete", "table", "submissions", "id", id)

	if _, err := q.q.ExecContext(ctx, `DELETE FROM contributions WHERE submission_id = ?`, id); err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "submission", id)
}

// SetContributions makes the contribution rows of a submission match
// studentIDs. Existing rows are kept, so repeated calls are idempotent.
func (q *queries) SetContributions(ctx context.Context, submissionID int64, studentIDs []int64) error {
	current, err := q.contributors(ctx, submissionID)
	if err != nil {
		return err
	}
	for _, id := range current {
		if slices.Contains(studentIDs, id) {
			continue
		}
		q.logger.Debug("sql", "op", "delete", "table", "contributions", "submission_id", submissionID, "student_id", id)
		if _, err := q.q.ExecContext(ctx,
			`DELETE FROM contributions WHERE submission_id = ? AND student_id = ?`, submissionID, id); err != nil {
			return err
		}
	}
	for _, id := range studentIDs {
		if slices.Contains(current, id) {
			continue
		}
		q.logger.Debug("sql", "op", "insert", "table", "contributions", "submission_id", submissionID, "student_id", id)
		if _, err := q.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO contributions (student_id, submission_id) VALUES (?, ?)`, id, submissionID); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) contributors(ctx context.Context, submissionID int64) ([]int64, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT student_id FROM contributions WHERE submission_id = ? ORDER BY student_id`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanSubmission(r rowScanner) (*model.Submission, error) {
	var sub model.Submission
	var state string
	var groupID sql.NullInt64
	var submittedAt, extendedTo, gradedAt sql.NullString
	var grade sql.NullFloat64
	err := r.Scan(&sub.ID, &sub.ExerciseID, &sub.Content, &sub.SubmissionType, &state,
		&groupID, &sub.GroupName, &submittedAt, &extendedTo, &gradedAt, &grade,
		&sub.TestResultFile, &sub.FeedbackFile, &sub.CommentFile)
	if err != nil {
		return nil, err
	}
	if sub.State, err = model.ParseSubmissionState(state); err != nil {
		return nil, err
	}
	sub.GroupID = fromNullInt(groupID)
	sub.SubmittedAt = parseTime(submittedAt)
	sub.ExtendedTo = parseTime(extendedTo)
	sub.GradedAt = parseTime(gradedAt)
	sub.Grade = fromNullFloat(grade)
	return &sub, nil
}
