// Package classify decides which files of a submission checkout are the
// student's own work.
package classify

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/me/oblig/pkg/model"
)

// Options tune a classification run.
type Options struct {
	// Cutoff selects the newest commit at or before this instant as the
	// baseline commit. Nil classifies the working tree as it is.
	Cutoff *time.Time
	// Ignore is an operator pattern matched against slash-separated
	// relative paths.
	Ignore *regexp.Regexp
}

// Classifier compares a checkout against the exercise template.
type Classifier struct {
	logger *slog.Logger
}

// New creates a Classifier.
func New(logger *slog.Logger) *Classifier {
	return &Classifier{logger: logger.With("component", "classify")}
}

// Classify returns the state of every candidate path of checkoutDir relative
// to baselineDir, sorted by path.
func (c *Classifier) Classify(checkoutDir, baselineDir string, opts Options) ([]model.FileState, error) {
	changes, err := c.candidates(checkoutDir, opts.Cutoff)
	if err != nil {
		return nil, err
	}

	states := make([]model.FileState, 0, len(changes))
	for _, ch := range changes {
		st := model.FileState{Path: ch.path, Change: ch.kind}
		switch {
		case ch.kind == model.ChangeDeleted:
			st.Class = model.FileOld
		case !interesting(ch.path, ch.content) || ignored(ch.path, opts.Ignore):
			st.Class = model.FileIgnored
		default:
			st.Class, err = compareBaseline(baselineDir, ch)
			if err != nil {
				return nil, err
			}
		}
		states = append(states, st)
	}

	slices.SortFunc(states, func(a, b model.FileState) int { return strings.Compare(a.Path, b.Path) })
	c.logger.Debug("classified", "checkout", checkoutDir, "files", len(states))
	return states, nil
}

// candidates returns the changed paths of the baseline commit, or every file
// of the working tree when there is no cutoff or no commit before it.
func (c *Classifier) candidates(checkoutDir string, cutoff *time.Time) ([]change, error) {
	if cutoff != nil {
		repo, err := git.PlainOpen(checkoutDir)
		switch {
		case errors.Is(err, git.ErrRepositoryNotExists):
			c.logger.Debug("no repository, using working tree", "checkout", checkoutDir)
		case err != nil:
			return nil, fmt.Errorf("open repository %s: %w", checkoutDir, err)
		default:
			commit, err := baselineCommit(repo, *cutoff)
			if err != nil {
				return nil, err
			}
			if commit != nil {
				c.logger.Debug("baseline commit", "hash", commit.Hash.String(), "when", commit.Author.When)
				return commitChanges(commit)
			}
			c.logger.Debug("no commit before cutoff, using working tree", "cutoff", *cutoff)
		}
	}
	return workingTree(checkoutDir)
}

// workingTree lists every regular file below dir as added.
func workingTree(dir string) ([]change, error) {
	var out []change
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, change{path: filepath.ToSlash(rel), kind: model.ChangeAdded, content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return out, nil
}

func compareBaseline(baselineDir string, ch change) (model.FileClassification, error) {
	if baselineDir == "" {
		return model.FileNew, nil
	}
	template, err := os.ReadFile(filepath.Join(baselineDir, filepath.FromSlash(ch.path)))
	if errors.Is(err, fs.ErrNotExist) {
		return model.FileNew, nil
	}
	if err != nil {
		return "", fmt.Errorf("read baseline %s: %w", ch.path, err)
	}
	if bytes.Equal(template, ch.content) {
		return model.FileUnchanged, nil
	}
	return model.FileChanged, nil
}

// Submitted returns the paths classified NEW or CHANGED.
func Submitted(states []model.FileState) []string {
	var out []string
	for _, s := range states {
		if s.Class.IsSubmitted() {
			out = append(out, s.Path)
		}
	}
	return out
}

// Summary counts the files of each classification.
func Summary(states []model.FileState) map[model.FileClassification]int {
	out := make(map[model.FileClassification]int)
	for _, s := range states {
		out[s.Class]++
	}
	return out
}
