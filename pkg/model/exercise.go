package model

import (
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

// GradingType is the grading policy of an exercise.
type GradingType string

const (
	GradingPassFail GradingType = "pass_fail"
	GradingPoints   GradingType = "points"
)

// DescriptionType says how an exercise's content is to be read.
type DescriptionType string

const (
	DescriptionGitRepo    DescriptionType = "git_repo"
	DescriptionCanvasHTML DescriptionType = "canvas_html"
	DescriptionCanvasQuiz DescriptionType = "canvas_quiz"
	DescriptionPlaintext  DescriptionType = "plaintext"
)

// Exercise is a graded course assignment.
type Exercise struct {
	ID                   int64           `json:"id"`
	CourseID             int64           `json:"course_id"`
	Name                 string          `json:"name"`
	Content              string          `json:"content,omitempty"`
	Category             string          `json:"category,omitempty"`
	GradingType          GradingType     `json:"grading_type"`
	MaxPoints            *float64        `json:"max_points,omitempty"`
	DescriptionType      DescriptionType `json:"description_type"`
	Deadline             *time.Time      `json:"deadline,omitempty"`
	Published            bool            `json:"published"`
	SubmissionCategoryID *int64          `json:"submission_category_id,omitempty"`
	GradingPath          string          `json:"grading_path,omitempty"`
}

// SupportsCheckout reports whether submissions to e can be cloned locally.
func (e *Exercise) SupportsCheckout() bool {
	return e.DescriptionType == DescriptionGitRepo && e.GradingPath != ""
}

// SubmissionDir is the local checkout directory for a submission.
func (e *Exercise) SubmissionDir(submissionID int64) string {
	return filepath.Join(e.GradingPath, strconv.FormatInt(submissionID, 10))
}

// BaselineDir holds the unmodified exercise template.
func (e *Exercise) BaselineDir() string {
	return filepath.Join(e.GradingPath, "exercise")
}

// Status summarises the exercise for listings.
func (e *Exercise) Status() string {
	switch {
	case e.GradingPath != "":
		return "GRADING"
	case e.Published:
		return "PUBLISHED"
	}
	return "UNPUBLISHED"
}

// Equal reports whether e and o are field-for-field identical.
func (e *Exercise) Equal(o *Exercise) bool {
	return e.ID == o.ID &&
		e.CourseID == o.CourseID &&
		e.Name == o.Name &&
		e.Content == o.Content &&
		e.Category == o.Category &&
		e.GradingType == o.GradingType &&
		ptrEqual(e.MaxPoints, o.MaxPoints) &&
		e.DescriptionType == o.DescriptionType &&
		timeEqual(e.Deadline, o.Deadline) &&
		e.Published == o.Published &&
		ptrEqual(e.SubmissionCategoryID, o.SubmissionCategoryID) &&
		e.GradingPath == o.GradingPath
}

// SortExercises orders exercises by deadline; exercises without one go last.
func SortExercises(exs []*Exercise) {
	slices.SortStableFunc(exs, func(a, b *Exercise) int {
		switch {
		case a.Deadline == nil && b.Deadline == nil:
			return 0
		case a.Deadline == nil:
			return 1
		case b.Deadline == nil:
			return -1
		}
		return a.Deadline.Compare(*b.Deadline)
	})
}
