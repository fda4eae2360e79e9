package lms

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/me/oblig/pkg/model"
)

// Wire records as returned by the Canvas REST API. Only the fields oblig
// reads are declared.

type courseRecord struct {
	ID   int64  `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type userRecord struct {
	ID           int64  `json:"id" validate:"required"`
	SortableName string `json:"sortable_name"`
	LoginID      string `json:"login_id"`
	Name         string `json:"name"`
}

type enrollmentRecord struct {
	Role string     `json:"role" validate:"required"`
	User userRecord `json:"user"`
}

type assignmentGroupRecord struct {
	ID   int64  `json:"id" validate:"required"`
	Name string `json:"name"`
}

type assignmentRecord struct {
	ID              int64      `json:"id" validate:"required"`
	Name            string     `json:"name" validate:"required"`
	Description     *string    `json:"description"`
	Published       *bool      `json:"published"`
	GradingType     string     `json:"grading_type"`
	DueAt           *time.Time `json:"due_at"`
	PointsPossible  *float64   `json:"points_possible"`
	GroupCategoryID *int64     `json:"group_category_id"`
}

type submissionRecord struct {
	ID             int64      `json:"id" validate:"required"`
	UserID         int64      `json:"user_id"`
	WorkflowState  string     `json:"workflow_state" validate:"required"`
	SubmissionType *string    `json:"submission_type"`
	URL            *string    `json:"url"`
	Body           *string    `json:"body"`
	Grade          *string    `json:"grade"`
	Score          *float64   `json:"score"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	GradedAt       *time.Time `json:"graded_at"`
	CachedDueDate  *time.Time `json:"cached_due_date"`
	Group          struct {
		ID   *int64  `json:"id"`
		Name *string `json:"name"`
	} `json:"group"`
}

type groupRecord struct {
	ID              int64  `json:"id" validate:"required"`
	Name            string `json:"name"`
	GroupCategoryID int64  `json:"group_category_id"`
}

// testStudent is the sortable name of the student Canvas adds to every
// course for previewing.
const testStudent = "Teststudent"

var (
	courseNameRe = regexp.MustCompile(`^(\w+\d+)(-.*)? (\d+)([VH]) (.*)$`)
	studentNoRe  = regexp.MustCompile(`^(\d+)@`)
)

// toCourse splits names like "DAT100-1 24H Objektorientert programmering"
// into code, year, semester and description. Names that do not follow the
// pattern become the description.
func toCourse(r courseRecord) *model.Course {
	c := &model.Course{ID: r.ID, Description: r.Name}
	m := courseNameRe.FindStringSubmatch(r.Name)
	if m == nil {
		return c
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return c
	}
	c.Code = m[1]
	c.Year = 2000 + year
	c.Semester = model.SemesterFall
	if m[4] == "V" {
		c.Semester = model.SemesterSpring
	}
	c.Description = m[5]
	return c
}

// toStudent returns nil for enrollments that are not real students.
func toStudent(r enrollmentRecord) *model.Student {
	if r.Role != "StudentEnrollment" || r.User.SortableName == testStudent {
		return nil
	}
	s := &model.Student{ID: r.User.ID, Email: r.User.LoginID}
	last, first, found := strings.Cut(r.User.SortableName, ",")
	if found {
		s.FirstName, s.LastName = strings.TrimSpace(first), strings.TrimSpace(last)
	} else {
		s.FirstName = strings.TrimSpace(r.User.Name)
	}
	if m := studentNoRe.FindStringSubmatch(r.User.LoginID); m != nil {
		if no, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			s.StudentNo = &no
		}
	}
	return s
}

func toExercise(courseID int64, category string, r assignmentRecord) *model.Exercise {
	e := &model.Exercise{
		ID:                   r.ID,
		CourseID:             courseID,
		Name:                 r.Name,
		Category:             category,
		GradingType:          model.GradingType(r.GradingType),
		DescriptionType:      model.DescriptionCanvasHTML,
		MaxPoints:            r.PointsPossible,
		SubmissionCategoryID: r.GroupCategoryID,
		Published:            true,
	}
	if e.GradingType == "" {
		e.GradingType = model.GradingPoints
	}
	if r.Description != nil {
		e.Content = *r.Description
	}
	if r.Published != nil {
		e.Published = *r.Published
	}
	if r.DueAt != nil {
		d := r.DueAt.UTC()
		e.Deadline = &d
	}
	return e
}

// toSubmission maps the record onto a Submission. Group submissions get
// their contributions from the group's member list later.
func toSubmission(exerciseID int64, r submissionRecord) *model.Submission {
	s := &model.Submission{
		ID:         r.ID,
		ExerciseID: exerciseID,
		State:      model.FromWorkflowState(r.WorkflowState, deref(r.Grade)),
	}
	if r.SubmissionType != nil {
		s.SubmissionType = *r.SubmissionType
	}
	if s.SubmissionType == "online_url" {
		s.Content = deref(r.URL)
	} else {
		s.Content = deref(r.Body)
	}
	if s.State != model.StateUnsubmitted {
		s.SubmittedAt = utc(r.SubmittedAt)
	}
	if s.State == model.StatePassedImported || s.State == model.StateFailedImported {
		s.GradedAt = utc(r.GradedAt)
		s.Grade = r.Score
	}
	s.ExtendedTo = utc(r.CachedDueDate)
	if r.Group.ID != nil {
		s.GroupID = r.Group.ID
		s.GroupName = deref(r.Group.Name)
	} else if r.UserID != 0 {
		s.Contributions = []int64{r.UserID}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
