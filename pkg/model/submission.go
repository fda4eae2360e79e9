package model

import (
	"slices"
	"time"
)

// Submission is a hand-in for an Exercise by one student or a group.
type Submission struct {
	ID             int64           `json:"id"`
	ExerciseID     int64           `json:"exercise_id"`
	Content        string          `json:"content,omitempty"`
	SubmissionType string          `json:"submission_type,omitempty"`
	State          SubmissionState `json:"state"`
	Contributions  []int64         `json:"contributions"`
	GroupID        *int64          `json:"group_id,omitempty"`
	GroupName      string          `json:"group_name,omitempty"`
	SubmittedAt    *time.Time      `json:"submitted_at,omitempty"`
	ExtendedTo     *time.Time      `json:"extended_to,omitempty"`
	GradedAt       *time.Time      `json:"graded_at,omitempty"`
	Grade          *float64        `json:"grade,omitempty"`
	TestResultFile string          `json:"testresult_file,omitempty"`
	FeedbackFile   string          `json:"feedback_file,omitempty"`
	CommentFile    string          `json:"comment_file,omitempty"`
}

// IsGroup reports whether the submission belongs to an LMS group.
func (s *Submission) IsGroup() bool {
	return s.GroupID != nil
}

// IsPlaceholder reports whether s is the LMS stand-in for a single student
// who has not handed anything in.
func (s *Submission) IsPlaceholder() bool {
	return s.State == StateUnsubmitted && len(s.Contributions) == 1
}

// HasContributor reports whether studentID contributed to s.
func (s *Submission) HasContributor(studentID int64) bool {
	return slices.Contains(s.Contributions, studentID)
}

// Clone returns a deep copy of s.
func (s *Submission) Clone() *Submission {
	c := *s
	c.Contributions = slices.Clone(s.Contributions)
	c.GroupID = clonePtr(s.GroupID)
	c.SubmittedAt = clonePtr(s.SubmittedAt)
	c.ExtendedTo = clonePtr(s.ExtendedTo)
	c.GradedAt = clonePtr(s.GradedAt)
	c.Grade = clonePtr(s.Grade)
	return &c
}

// Equal reports whether s and o are field-for-field identical.
// Contributions are compared as sets.
func (s *Submission) Equal(o *Submission) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.ID == o.ID &&
		s.ExerciseID == o.ExerciseID &&
		s.Content == o.Content &&
		s.SubmissionType == o.SubmissionType &&
		s.State == o.State &&
		sameMembers(s.Contributions, o.Contributions) &&
		ptrEqual(s.GroupID, o.GroupID) &&
		s.GroupName == o.GroupName &&
		timeEqual(s.SubmittedAt, o.SubmittedAt) &&
		timeEqual(s.ExtendedTo, o.ExtendedTo) &&
		timeEqual(s.GradedAt, o.GradedAt) &&
		ptrEqual(s.Grade, o.Grade) &&
		s.TestResultFile == o.TestResultFile &&
		s.FeedbackFile == o.FeedbackFile &&
		s.CommentFile == o.CommentFile
}

// RewindTo moves s back to target and drops the references to artifacts
// produced by the phases being undone. It returns the paths of the dropped
// artifact files; the files themselves are left alone.
func (s *Submission) RewindTo(target SubmissionState) ([]string, error) {
	if !target.Valid() {
		return nil, &InvalidStateError{Name: string(target)}
	}
	if s.State.Less(target) {
		return nil, &InvalidResetError{ID: s.ID, From: s.State, Target: target}
	}

	var dropped []string
	if target.Less(StateTested) && s.TestResultFile != "" {
		dropped = append(dropped, s.TestResultFile)
		s.TestResultFile = ""
	}
	if target.Less(StateFeedbackGenerated) {
		if s.FeedbackFile != "" {
			dropped = append(dropped, s.FeedbackFile)
			s.FeedbackFile = ""
		}
		if s.CommentFile != "" {
			dropped = append(dropped, s.CommentFile)
			s.CommentFile = ""
		}
	}
	if s.State.IsTerminal() && !target.IsTerminal() {
		s.Grade = nil
		s.GradedAt = nil
	}
	s.State = target
	return dropped, nil
}

// SortSubmissions orders submissions by id.
func SortSubmissions(subs []*Submission) {
	slices.SortFunc(subs, func(a, b *Submission) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

func sameMembers(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
