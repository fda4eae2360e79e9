// Package lms talks to the Canvas learning-management system.
package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/me/oblig/pkg/model"
)

// DefaultPageSize is the per_page value sent to paginated endpoints.
const DefaultPageSize = 200

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://school.instructure.com/api/v1.
	BaseURL  string
	Token    string
	PageSize int
	RetryMax int
}

// Client is a Canvas REST client.
type Client struct {
	base     string
	token    string
	pageSize int
	http     *retryablehttp.Client
	validate *validator.Validate
	logger   *slog.Logger
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("canvas %s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// NewClient creates a Client. A missing token yields
// model.ErrMissingCredential.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("canvas token: %w", model.ErrMissingCredential)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("canvas base url is not configured")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	logger = logger.With("component", "lms")

	hc := retryablehttp.NewClient()
	hc.RetryMax = cfg.RetryMax
	hc.Logger = logger

	return &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		pageSize: cfg.PageSize,
		http:     hc,
		validate: validator.New(),
		logger:   logger,
	}, nil
}

// Courses lists the courses visible to the token's user.
func (c *Client) Courses(ctx context.Context) ([]*model.Course, error) {
	recs, err := fetchAll[courseRecord](ctx, c, "/courses", nil)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Course, 0, len(recs))
	for _, r := range recs {
		out = append(out, toCourse(r))
	}
	return out, nil
}

// Course fetches a single course.
func (c *Client) Course(ctx context.Context, id int64) (*model.Course, error) {
	var r courseRecord
	if err := c.getJSON(ctx, fmt.Sprintf("/courses/%d", id), &r); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(r); err != nil {
		return nil, fmt.Errorf("course %d: %w", id, err)
	}
	return toCourse(r), nil
}

// Students lists the students enrolled in a course.
func (c *Client) Students(ctx context.Context, courseID int64) ([]*model.Student, error) {
	recs, err := fetchAll[enrollmentRecord](ctx, c, fmt.Sprintf("/courses/%d/enrollments", courseID), nil)
	if err != nil {
		return nil, err
	}
	var out []*model.Student
	for _, r := range recs {
		if s := toStudent(r); s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// Exercises lists the assignments of a course, across all assignment
// groups. The group name becomes the exercise category.
func (c *Client) Exercises(ctx context.Context, courseID int64) ([]*model.Exercise, error) {
	groups, err := fetchAll[assignmentGroupRecord](ctx, c, fmt.Sprintf("/courses/%d/assignment_groups", courseID), nil)
	if err != nil {
		return nil, err
	}
	var out []*model.Exercise
	for _, g := range groups {
		path := fmt.Sprintf("/courses/%d/assignment_groups/%d/assignments", courseID, g.ID)
		recs, err := fetchAll[assignmentRecord](ctx, c, path, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			out = append(out, toExercise(courseID, g.Name, r))
		}
	}
	return out, nil
}

// Submissions lists the submissions of an assignment, one per group for
// group assignments. Group submissions list every group member as a
// contributor.
func (c *Client) Submissions(ctx context.Context, courseID, exerciseID int64) ([]*model.Submission, error) {
	q := url.Values{"grouped": {"true"}, "include[]": {"group"}}
	path := fmt.Sprintf("/courses/%d/assignments/%d/submissions", courseID, exerciseID)
	recs, err := fetchAll[submissionRecord](ctx, c, path, q)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Submission, 0, len(recs))
	for _, r := range recs {
		s := toSubmission(exerciseID, r)
		if s.GroupID != nil {
			members, err := c.groupUsers(ctx, *s.GroupID)
			if err != nil {
				return nil, err
			}
			s.Contributions = members
		}
		out = append(out, s)
	}
	return out, nil
}

// GroupCategory returns the groups of a group category and their members.
func (c *Client) GroupCategory(ctx context.Context, categoryID int64) ([]model.Group, []model.GroupMembership, error) {
	recs, err := fetchAll[groupRecord](ctx, c, fmt.Sprintf("/group_categories/%d/groups", categoryID), nil)
	if err != nil {
		return nil, nil, err
	}
	var (
		groups  []model.Group
		members []model.GroupMembership
	)
	for _, r := range recs {
		groups = append(groups, model.Group{ID: r.ID, CategoryID: categoryID, Name: r.Name})
		ids, err := c.groupUsers(ctx, r.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, id := range ids {
			members = append(members, model.GroupMembership{GroupID: r.ID, GroupName: r.Name, StudentID: id})
		}
	}
	return groups, members, nil
}

func (c *Client) groupUsers(ctx context.Context, groupID int64) ([]int64, error) {
	users, err := fetchAll[userRecord](ctx, c, fmt.Sprintf("/groups/%d/users", groupID), nil)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// Update is a change to a student's submission page.
type Update struct {
	Comment string
	// Grade is posted as-is: "pass", "complete", "fail", "incomplete" or
	// a point score.
	Grade string
	// Group shares the comment with the whole group.
	Group bool
}

// UpdateSubmission posts a comment and/or grade for one student.
func (c *Client) UpdateSubmission(ctx context.Context, courseID, exerciseID, studentID int64, u Update) error {
	form := url.Values{}
	if u.Group {
		form.Set("comment[group_comment]", "true")
	}
	if u.Comment != "" {
		form.Set("comment[text_comment]", u.Comment)
	}
	if u.Grade != "" {
		form.Set("submission[posted_grade]", u.Grade)
	}
	endpoint := c.base + fmt.Sprintf("/courses/%d/assignments/%d/submissions/%d", courseID, exerciseID, studentID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.logger.Info("submission updated",
		"exercise_id", exerciseID,
		"student_id", studentID,
		"comment", u.Comment != "",
		"grade", u.Grade,
	)
	return nil
}

func (c *Client) do(req *retryablehttp.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("canvas %s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode/100 != 2 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Method: req.Method, URL: req.URL.Path, Code: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var nextLinkRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// fetchAll follows the Link pagination of a list endpoint and decodes each
// element separately. Elements that fail to decode or validate are logged
// and skipped so one bad record does not lose the rest of the batch.
func fetchAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("per_page", strconv.Itoa(c.pageSize))
	next := c.base + path + "?" + q.Encode()

	var out []T
	for next != "" {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, err
		}
		var page []json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		for i, raw := range page {
			var rec T
			if err := json.Unmarshal(raw, &rec); err != nil {
				c.logger.Warn("skipping malformed record", "path", path, "index", i, "error", err)
				continue
			}
			if err := c.validate.Struct(rec); err != nil {
				c.logger.Warn("skipping invalid record", "path", path, "index", i, "error", err)
				continue
			}
			out = append(out, rec)
		}

		next = ""
		if m := nextLinkRe.FindStringSubmatch(resp.Header.Get("Link")); m != nil {
			next = m[1]
		}
	}
	c.logger.Debug("fetched", "path", path, "records", len(out))
	return out, nil
}
