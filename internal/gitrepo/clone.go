// Package gitrepo downloads submission repositories and pins them to the
// state they were in when the submission was handed in.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/me/oblig/pkg/model"
)

// Checkout describes a freshly cloned submission.
type Checkout struct {
	Dir  string
	Head plumbing.Hash
	// Pinned is set when commits newer than the cutoff were skipped.
	Pinned bool
}

// Cloner clones submission repositories.
type Cloner struct {
	auth   *githttp.BasicAuth
	logger *slog.Logger
	clone  func(ctx context.Context, dir string, opts *git.CloneOptions) (*git.Repository, error)
}

// NewCloner creates a Cloner. A non-empty token is sent as HTTP basic auth,
// which is how GitHub accepts personal access tokens for private repos.
func NewCloner(token string, logger *slog.Logger) *Cloner {
	c := &Cloner{
		logger: logger.With("component", "gitrepo"),
		clone: func(ctx context.Context, dir string, opts *git.CloneOptions) (*git.Repository, error) {
			return git.PlainCloneContext(ctx, dir, false, opts)
		},
	}
	if token != "" {
		c.auth = &githttp.BasicAuth{Username: "oblig", Password: token}
	}
	return c
}

// SanitizeURL strips the browser suffix LMS users often paste along with
// the repository URL.
func SanitizeURL(url string) string {
	url = strings.TrimSpace(url)
	if i := strings.Index(url, "/tree/main"); i >= 0 && strings.HasSuffix(url, "/tree/main") {
		return url[:i]
	}
	return url
}

// Download clones url into dir and, when cutoff is set, checks out the
// newest commit authored at or before it. dir must not exist yet, and it is
// removed again when any step fails so the download can be retried.
func (c *Cloner) Download(ctx context.Context, url, dir string, cutoff *time.Time) (_ *Checkout, err error) {
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%s: %w", dir, model.ErrCheckoutExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}

	url = SanitizeURL(url)
	c.logger.Info("cloning", "url", url, "dir", dir)
	opts := &git.CloneOptions{URL: url}
	if c.auth != nil {
		opts.Auth = c.auth
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				c.logger.Warn("remove failed checkout", "dir", dir, "error", rmErr)
			}
		}
	}()
	repo, err := c.clone(ctx, dir, opts)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	co := &Checkout{Dir: dir}
	if cutoff != nil {
		hash, pinned, err := PinToCutoff(repo, *cutoff)
		if err != nil {
			return nil, fmt.Errorf("pin %s: %w", url, err)
		}
		if pinned {
			c.logger.Info("ignoring commits after submission", "cutoff", *cutoff, "commit", hash.String())
		}
		co.Pinned = pinned
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	co.Head = head.Hash()
	return co, nil
}

// PinToCutoff checks out the newest commit whose author time is at or
// before cutoff, if any newer commit exists. It returns the chosen commit
// and whether HEAD was moved.
func PinToCutoff(repo *git.Repository, cutoff time.Time) (plumbing.Hash, bool, error) {
	iter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("git log: %w", err)
	}
	defer iter.Close()

	var (
		target plumbing.Hash
		newer  bool
	)
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Author.When.After(cutoff) {
			newer = true
			return nil
		}
		target = c.Hash
		return storer.ErrStop
	})
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	if target.IsZero() || !newer {
		return target, false, nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: target, Force: true}); err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("checkout %s: %w", target, err)
	}
	return target, true, nil
}

// CountCommits returns the number of commits reachable from HEAD of the
// repository in dir.
func CountCommits(dir string) (int, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return 0, fmt.Errorf("open repository %s: %w", dir, err)
	}
	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return 0, fmt.Errorf("git log: %w", err)
	}
	defer iter.Close()

	n := 0
	err = iter.ForEach(func(*object.Commit) error {
		n++
		return nil
	})
	return n, err
}
