// Package lmstest provides an in-memory Canvas server for tests.
package lmstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Fixture records, serialised the way Canvas does.

type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name,omitempty"`
	SortableName string `json:"sortable_name,omitempty"`
	LoginID      string `json:"login_id,omitempty"`
}

type Enrollment struct {
	Role string `json:"role"`
	User User   `json:"user"`
}

type AssignmentGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Assignment struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Published       bool       `json:"published"`
	GradingType     string     `json:"grading_type"`
	DueAt           *time.Time `json:"due_at"`
	PointsPossible  *float64   `json:"points_possible"`
	GroupCategoryID *int64     `json:"group_category_id"`
}

type SubmissionGroup struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
}

type Submission struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	WorkflowState  string          `json:"workflow_state"`
	SubmissionType *string         `json:"submission_type"`
	URL            *string         `json:"url"`
	Body           *string         `json:"body"`
	Grade          *string         `json:"grade"`
	Score          *float64        `json:"score"`
	SubmittedAt    *time.Time      `json:"submitted_at"`
	GradedAt       *time.Time      `json:"graded_at"`
	CachedDueDate  *time.Time      `json:"cached_due_date"`
	Group          SubmissionGroup `json:"group"`
}

type Group struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	GroupCategoryID int64  `json:"group_category_id"`
}

// Put is a recorded submission update.
type Put struct {
	CourseID     int64
	AssignmentID int64
	UserID       int64
	Form         url.Values
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// URLSubmission builds a handed-in online_url submission.
func URLSubmission(id, userID int64, repo string, at time.Time) Submission {
	return Submission{
		ID:             id,
		UserID:         userID,
		WorkflowState:  "submitted",
		SubmissionType: Ptr("online_url"),
		URL:            Ptr(repo),
		SubmittedAt:    &at,
	}
}

// Unsubmitted builds the placeholder Canvas returns for a student who has
// not handed anything in.
func Unsubmitted(id, userID int64) Submission {
	return Submission{ID: id, UserID: userID, WorkflowState: "unsubmitted"}
}

// Server is a fake Canvas API.
type Server struct {
	// URL is the API root to configure clients with.
	URL   string
	Token string

	mu               sync.Mutex
	courses          []Course
	enrollments      map[int64][]Enrollment
	assignmentGroups map[int64][]AssignmentGroup
	assignments      map[int64][]Assignment
	submissions      map[int64][]Submission
	groups           map[int64][]Group
	groupUsers       map[int64][]User
	puts             []Put
	failures         map[string]int
}

// New starts a Server that accepts token and stops it when t ends.
func New(t testing.TB, token string) *Server {
	s := &Server{
		Token:            token,
		enrollments:      make(map[int64][]Enrollment),
		assignmentGroups: make(map[int64][]AssignmentGroup),
		assignments:      make(map[int64][]Assignment),
		submissions:      make(map[int64][]Submission),
		groups:           make(map[int64][]Group),
		groupUsers:       make(map[int64][]User),
		failures:         make(map[string]int),
	}
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	s.URL = srv.URL + "/api/v1"
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/courses", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			writePage(w, req, s.courses)
		})
		r.Get("/courses/{course}", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			id := param(req, "course")
			for _, c := range s.courses {
				if c.ID == id {
					writeJSON(w, c)
					return
				}
			}
			http.NotFound(w, req)
		})
		r.Get("/courses/{course}/enrollments", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			writePage(w, req, s.enrollments[param(req, "course")])
		})
		r.Get("/courses/{course}/assignment_groups", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			writePage(w, req, s.assignmentGroups[param(req, "course")])
		})
		r.Get("/courses/{course}/assignment_groups/{group}/assignments", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			writePage(w, req, s.assignments[param(req, "group")])
		})
		r.Get("/courses/{course}/assignments/{assignment}/submissions", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.fail(w, "submissions") {
				return
			}
			writePage(w, req, s.submissions[param(req, "assignment")])
		})
		r.Put("/courses/{course}/assignments/{assignment}/submissions/{user}", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.fail(w, "put") {
				return
			}
			if err := req.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.puts = append(s.puts, Put{
				CourseID:     param(req, "course"),
				AssignmentID: param(req, "assignment"),
				UserID:       param(req, "user"),
				Form:         req.PostForm,
			})
			writeJSON(w, map[string]any{"id": param(req, "user")})
		})
		r.Get("/groups/{group}/users", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			writePage(w, req, s.groupUsers[param(req, "group")])
		})
		r.Get("/group_categories/{category}/groups", func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			defer s.mu.Unlock()
			writePage(w, req, s.groups[param(req, "category")])
		})
	})
	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			http.Error(w, `{"errors":[{"message":"Invalid access token."}]}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fail consumes one injected failure for key. Callers hold s.mu.
func (s *Server) fail(w http.ResponseWriter, key string) bool {
	if s.failures[key] == 0 {
		return false
	}
	s.failures[key]--
	http.Error(w, "injected failure", http.StatusBadRequest)
	return true
}

// FailNext makes the next n requests to the endpoint answer 400. Keys are
// "submissions" and "put".
func (s *Server) FailNext(key string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] += n
}

// AddCourse registers a course and its enrollments.
func (s *Server) AddCourse(c Course, enrollments ...Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = append(s.courses, c)
	s.enrollments[c.ID] = append(s.enrollments[c.ID], enrollments...)
}

// AddAssignment registers an assignment in an assignment group of a course.
func (s *Server) AddAssignment(courseID int64, g AssignmentGroup, a Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := false
	for _, have := range s.assignmentGroups[courseID] {
		known = known || have.ID == g.ID
	}
	if !known {
		s.assignmentGroups[courseID] = append(s.assignmentGroups[courseID], g)
	}
	s.assignments[g.ID] = append(s.assignments[g.ID], a)
}

// SetSubmissions replaces the submissions of an assignment.
func (s *Server) SetSubmissions(assignmentID int64, subs ...Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[assignmentID] = subs
}

// AddGroup registers a group and its members.
func (s *Server) AddGroup(g Group, members ...User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.GroupCategoryID] = append(s.groups[g.GroupCategoryID], g)
	s.groupUsers[g.ID] = append(s.groupUsers[g.ID], members...)
}

// Puts returns the submission updates received so far.
func (s *Server) Puts() []Put {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Put(nil), s.puts...)
}

func param(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writePage serves one page of items and links the next page the way
// Canvas does.
func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 10
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	start := min((page-1)*perPage, len(items))
	end := min(start+perPage, len(items))
	if end < len(items) {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page+1))
		next := fmt.Sprintf("http://%s%s?%s", r.Host, r.URL.Path, q.Encode())
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="current",<%s>; rel="next"`, r.URL.String(), next))
	}
	out := items[start:end]
	if out == nil {
		out = []T{}
	}
	writeJSON(w, out)
}
