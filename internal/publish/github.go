// Package publish posts feedback to the repositories students submitted.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/me/oblig/pkg/model"
)

// IssueTitle is the title of the feedback issue for an exercise.
func IssueTitle(exercise string) string {
	return "Feedback: " + exercise
}

// IsGitHubURL reports whether a submission points at a GitHub repository.
func IsGitHubURL(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "https://github.com/")
}

// ParseRepoURL splits https://github.com/<owner>/<repo>[.git][/...] into
// owner and repository name.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse repository url: %w", err)
	}
	if u.Host != "github.com" {
		return "", "", fmt.Errorf("not a github repository: %s", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository url lacks owner or name: %s", raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// Issuer files feedback as GitHub issues.
type Issuer struct {
	client *github.Client
	logger *slog.Logger
}

// NewIssuer creates an Issuer authenticated with token.
func NewIssuer(token string, logger *slog.Logger) (*Issuer, error) {
	if token == "" {
		return nil, fmt.Errorf("github token: %w", model.ErrMissingCredential)
	}
	logger = logger.With("component", "publish")

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = logger

	return &Issuer{
		client: github.NewClient(client.StandardClient()).WithAuthToken(token),
		logger: logger,
	}, nil
}

// SetBaseURL points the issuer at a different API endpoint, such as a
// GitHub Enterprise server.
func (i *Issuer) SetBaseURL(base string) error {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	i.client.BaseURL = u
	return nil
}

// CreateIssue opens an issue on the repository at repoURL and returns the
// issue's web address.
func (i *Issuer) CreateIssue(ctx context.Context, repoURL, title, body string) (string, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	issue, _, err := i.client.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return "", fmt.Errorf("create issue on %s/%s: %w", owner, repo, err)
	}
	i.logger.Info("issue created", "repo", owner+"/"+repo, "url", issue.GetHTMLURL())
	return issue.GetHTMLURL(), nil
}
