package model

import (
	"fmt"
	"slices"
)

// Semester is the half of the academic year a course instance runs in.
type Semester string

const (
	SemesterSpring Semester = "spring"
	SemesterFall   Semester = "fall"
)

// Course is one instance of a course, e.g. a given code in a given semester.
type Course struct {
	ID          int64    `json:"id"`
	Code        string   `json:"code,omitempty"`
	Description string   `json:"description"`
	Semester    Semester `json:"semester,omitempty"`
	Year        int      `json:"year,omitempty"`
}

// Label renders the course as "CODE YEAR SEMESTER" when known.
func (c *Course) Label() string {
	if c.Code == "" || c.Year == 0 {
		return c.Description
	}
	return fmt.Sprintf("%s %d %s", c.Code, c.Year, c.Semester)
}

// SortCourses orders courses chronologically; courses without a term go last.
func SortCourses(cs []*Course) {
	term := func(c *Course) int {
		if c.Year == 0 || c.Semester == "" {
			return 1 << 30
		}
		t := c.Year * 2
		if c.Semester == SemesterFall {
			t++
		}
		return t
	}
	slices.SortStableFunc(cs, func(a, b *Course) int { return term(a) - term(b) })
}

// Student is identified by the LMS user id.
type Student struct {
	ID        int64  `json:"id"`
	StudentNo *int64 `json:"student_no,omitempty"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
}

// FullName returns "First Last".
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Group is an LMS student group within a group category.
type Group struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

// GroupMembership places a student in a group.
type GroupMembership struct {
	GroupID   int64  `json:"group_id"`
	GroupName string `json:"group_name"`
	StudentID int64  `json:"student_id"`
}
