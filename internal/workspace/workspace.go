// Package workspace lays out an exercise's grading directory: the baseline
// template under <grading_path>/exercise and one checkout per submission.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	cp "github.com/otiai10/copy"

	"github.com/me/oblig/pkg/model"
)

// DefaultDescriptionFile is the file of the template holding the exercise
// text.
const DefaultDescriptionFile = "README.md"

// Source is where the baseline template comes from. Exactly one of Repo
// and Dir is set.
type Source struct {
	Repo   string
	Branch string
	// Dir is a local template directory.
	Dir             string
	DescriptionFile string
}

// Template is the description reference stored in Exercise.Content for
// git_repo exercises: "<repo>;<branch>;<file>".
func (s Source) Template() string {
	return strings.Join([]string{s.Repo, s.Branch, s.DescriptionFile}, ";")
}

// ParseTemplate is the inverse of Source.Template.
func ParseTemplate(content string) Source {
	parts := strings.SplitN(content, ";", 3)
	src := Source{Repo: parts[0], Branch: "main", DescriptionFile: DefaultDescriptionFile}
	if len(parts) > 1 && parts[1] != "" {
		src.Branch = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		src.DescriptionFile = parts[2]
	}
	return src
}

// Installer prepares grading directories.
type Installer struct {
	auth   *githttp.BasicAuth
	logger *slog.Logger
}

// NewInstaller creates an Installer; token authenticates template clones.
func NewInstaller(token string, logger *slog.Logger) *Installer {
	in := &Installer{logger: logger.With("component", "workspace")}
	if token != "" {
		in.auth = &githttp.BasicAuth{Username: "oblig", Password: token}
	}
	return in
}

// Prepare makes dir the grading path of ex and installs the baseline
// template from src unless it is already present. ex is updated in place;
// the caller persists it.
func (in *Installer) Prepare(ctx context.Context, ex *model.Exercise, dir string, src Source) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("create grading path: %w", err)
	}
	ex.GradingPath = abs
	if src.DescriptionFile == "" {
		src.DescriptionFile = DefaultDescriptionFile
	}

	baseline := ex.BaselineDir()
	if _, err := os.Stat(baseline); err == nil {
		in.logger.Info("baseline already installed", "exercise_id", ex.ID, "dir", baseline)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	} else {
		switch {
		case src.Repo != "":
			err = in.clone(ctx, src, baseline)
		case src.Dir != "":
			err = copyTemplate(src.Dir, baseline)
		}
		if err != nil {
			os.RemoveAll(baseline)
			return err
		}
		in.logger.Info("baseline installed", "exercise_id", ex.ID, "dir", baseline)
	}

	if src.Repo != "" || src.Dir != "" {
		ex.DescriptionType = model.DescriptionGitRepo
	}
	if src.Repo != "" {
		if src.Branch == "" {
			src.Branch = "main"
		}
		ex.Content = src.Template()
	}
	return nil
}

func (in *Installer) clone(ctx context.Context, src Source, dest string) error {
	branch := src.Branch
	if branch == "" {
		branch = "main"
	}
	opts := &git.CloneOptions{
		URL:           src.Repo,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	}
	if in.auth != nil {
		opts.Auth = in.auth
	}
	in.logger.Info("cloning template", "repo", src.Repo, "branch", branch)
	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		return fmt.Errorf("clone template %s: %w", src.Repo, err)
	}
	return nil
}

// copyTemplate copies a local template, leaving out its git metadata.
func copyTemplate(src, dest string) error {
	err := cp.Copy(src, dest, cp.Options{
		Skip: func(info os.FileInfo, path, _ string) (bool, error) {
			return info.IsDir() && info.Name() == ".git", nil
		},
	})
	if err != nil {
		return fmt.Errorf("copy template %s: %w", src, err)
	}
	return nil
}

// Description reads the exercise text from the installed baseline.
func Description(ex *model.Exercise) (string, error) {
	name := DefaultDescriptionFile
	if ex.DescriptionType == model.DescriptionGitRepo && ex.Content != "" {
		name = ParseTemplate(ex.Content).DescriptionFile
	}
	data, err := os.ReadFile(filepath.Join(ex.BaselineDir(), name))
	if errors.Is(err, fs.ErrNotExist) && ex.Content != "" && ex.DescriptionType != model.DescriptionGitRepo {
		return ex.Content, nil
	}
	if err != nil {
		return "", fmt.Errorf("read exercise description: %w", err)
	}
	return string(data), nil
}

// ArtifactFile returns the path of a named artifact of a submission.
func ArtifactFile(ex *model.Exercise, submissionID int64, name string) string {
	return filepath.Join(ex.SubmissionDir(submissionID), "__oblig__", name)
}

// RemoveArtifacts deletes artifact files. Missing files are ignored.
func RemoveArtifacts(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
