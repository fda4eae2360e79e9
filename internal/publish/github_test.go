package publish_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/oblig/internal/publish"
	"github.com/me/oblig/pkg/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in          string
		owner, repo string
		wantErr     bool
	}{
		{in: "https://github.com/hvl/oblig1", owner: "hvl", repo: "oblig1"},
		{in: "https://github.com/hvl/oblig1.git", owner: "hvl", repo: "oblig1"},
		{in: "https://github.com/hvl/oblig1/tree/main", owner: "hvl", repo: "oblig1"},
		{in: "https://gitlab.com/hvl/oblig1", wantErr: true},
		{in: "https://github.com/hvl", wantErr: true},
	}
	for _, tt := range tests {
		owner, repo, err := publish.ParseRepoURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.owner, owner)
		assert.Equal(t, tt.repo, repo)
	}
}

func TestIsGitHubURL(t *testing.T) {
	assert.True(t, publish.IsGitHubURL("https://github.com/a/b"))
	assert.False(t, publish.IsGitHubURL("Here is my answer: 42"))
}

func TestNewIssuer_MissingToken(t *testing.T) {
	_, err := publish.NewIssuer("", quietLogger())
	assert.True(t, errors.Is(err, model.ErrMissingCredential))
}

func TestCreateIssue(t *testing.T) {
	var got struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	var auth string

	r := chi.NewRouter()
	r.Post("/repos/{owner}/{repo}/issues", func(w http.ResponseWriter, req *http.Request) {
		auth = req.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"number":   1,
			"html_url": "https://github.com/" + chi.URLParam(req, "owner") + "/" + chi.URLParam(req, "repo") + "/issues/1",
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	issuer, err := publish.NewIssuer("ghp_test", quietLogger())
	require.NoError(t, err)
	require.NoError(t, issuer.SetBaseURL(srv.URL))

	link, err := issuer.CreateIssue(context.Background(), "https://github.com/hvl/oblig1", publish.IssueTitle("Oblig 1"), "Good work")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/hvl/oblig1/issues/1", link)
	assert.Equal(t, "Feedback: Oblig 1", got.Title)
	assert.Equal(t, "Good work", got.Body)
	assert.Equal(t, "Bearer ghp_test", auth)
}

func TestCreateIssue_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	issuer, err := publish.NewIssuer("ghp_test", quietLogger())
	require.NoError(t, err)
	require.NoError(t, issuer.SetBaseURL(srv.URL))

	_, err = issuer.CreateIssue(context.Background(), "https://github.com/hvl/missing", "t", "b")
	assert.Error(t, err)
}
