// Package assess walks a submission through the grading phases. Every phase
// is gated by an operator confirmation and persists its outcome before the
// next phase starts, so the stored state always says what has been done.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/me/oblig/internal/classify"
	"github.com/me/oblig/internal/feedback"
	"github.com/me/oblig/internal/gitrepo"
	"github.com/me/oblig/internal/lms"
	"github.com/me/oblig/internal/testrun"
	"github.com/me/oblig/internal/workspace"
	"github.com/me/oblig/pkg/model"
)

// Store is the persistence the driver needs.
type Store interface {
	GetCourse(ctx context.Context, id int64) (*model.Course, error)
	UpdateSubmission(ctx context.Context, sub *model.Submission) error
}

// Prompter asks the operator for decisions.
type Prompter interface {
	Confirm(question string, def bool) (bool, error)
	// Choose returns one of choices. An empty def means no default.
	Choose(question string, choices []string, def string) (string, error)
	Input(question, def string) (string, error)
}

// Reporter shows progress to the operator.
type Reporter interface {
	Rule(title string)
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Markdown(text string)
}

// Downloader clones a submission repository.
type Downloader interface {
	Download(ctx context.Context, url, dir string, cutoff *time.Time) (*gitrepo.Checkout, error)
}

// TestRunner executes a test backend.
type TestRunner interface {
	Run(ctx context.Context, req testrun.Request) (*testrun.Result, error)
}

// Classifier finds the student's own files in a checkout.
type Classifier interface {
	Classify(checkoutDir, baselineDir string, opts classify.Options) ([]model.FileState, error)
}

// Completer drafts feedback with a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// IssueCreator publishes feedback on a repository.
type IssueCreator interface {
	CreateIssue(ctx context.Context, repoURL, title, body string) (string, error)
}

// Grader posts comments and grades to the LMS.
type Grader interface {
	UpdateSubmission(ctx context.Context, courseID, exerciseID, studentID int64, u lms.Update) error
}

// Editor opens a file for the operator to edit.
type Editor interface {
	Edit(ctx context.Context, path string) error
}

// Deps are the driver's collaborators. LLM, Issues, LMS and Editor may be
// nil when they are not configured; phases needing them then fail with
// model.ErrMissingCredential.
type Deps struct {
	Store      Store
	Prompter   Prompter
	Reporter   Reporter
	Downloader Downloader
	Tests      TestRunner
	Classifier Classifier
	LLM        Completer
	Issues     IssueCreator
	LMS        Grader
	Editor     Editor
}

// Options tune the phases.
type Options struct {
	// Locale is the default feedback language.
	Locale feedback.Locale
	// Ignore is passed on to the classifier.
	Ignore *regexp.Regexp
	// Backend is the default test backend.
	Backend testrun.Backend
	// TestCommand is the default shell test command.
	TestCommand string
	TestDir     string
}

// Driver advances submissions through the assessment phases.
type Driver struct {
	Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewDriver creates a Driver.
func NewDriver(deps Deps, opts Options, logger *slog.Logger) *Driver {
	if opts.Locale == "" {
		opts.Locale = feedback.LocaleNorwegian
	}
	if opts.Backend == "" {
		opts.Backend = testrun.BackendNone
	}
	return &Driver{
		Deps:   deps,
		opts:   opts,
		logger: logger.With("component", "assess"),
		now:    time.Now,
	}
}

// outcome is what a phase did to the submission.
type outcome int

const (
	// stay: nothing to persist.
	stay outcome = iota
	// advanced: persist and continue with the next phase.
	advanced
	// paused: persist and hand control back to the operator.
	paused
)

type phaseFunc func(ctx context.Context, ex *model.Exercise, sub *model.Submission) (outcome, error)

func (d *Driver) phase(p model.Phase) phaseFunc {
	switch p {
	case model.PhaseDownloading:
		return d.download
	case model.PhaseTesting:
		return d.test
	case model.PhaseEvaluation:
		return d.evaluate
	case model.PhasePublishing:
		return d.publish
	case model.PhaseFinishing:
		return d.finish
	}
	return nil
}

// Advance runs the phase that follows the submission's state and keeps
// going while the operator confirms. A submission with no next phase yields
// *model.UnsupportedTransitionError. A failing external call yields
// *model.PhaseError and leaves the stored state as it was.
func (d *Driver) Advance(ctx context.Context, ex *model.Exercise, sub *model.Submission) error {
	p, err := model.NextPhase(sub.State)
	if err != nil {
		return err
	}
	for {
		d.Reporter.Rule(fmt.Sprintf("Current state: %s | Next phase: %s", sub.State, p))
		ok, err := d.Prompter.Confirm("Proceed?", true)
		if err != nil {
			return err
		}
		if !ok {
			d.logger.Info("phase declined", "submission_id", sub.ID, "phase", p)
			d.Reporter.Info("Stopping. Run `oblig submission grade` to continue later.")
			return nil
		}

		more, err := d.run(ctx, p, ex, sub)
		if err != nil || !more {
			return err
		}
		if p, err = model.NextPhase(sub.State); err != nil {
			return nil
		}
	}
}

// run executes one phase on a copy of sub and persists the copy when the
// phase succeeds.
func (d *Driver) run(ctx context.Context, p model.Phase, ex *model.Exercise, sub *model.Submission) (bool, error) {
	fn := d.phase(p)
	if fn == nil {
		return false, &model.UnsupportedTransitionError{State: sub.State}
	}

	next := sub.Clone()
	out, err := fn(ctx, ex, next)
	if err != nil {
		var pe *model.PhaseError
		if errors.As(err, &pe) {
			d.logger.Error("phase failed", "submission_id", sub.ID, "phase", p, "error", pe.Err)
			d.Reporter.Error("%s failed: %v", p, pe.Err)
		}
		return false, err
	}
	if out == stay {
		return false, nil
	}

	if err := d.Store.UpdateSubmission(ctx, next); err != nil {
		return false, fmt.Errorf("persist submission %d: %w", next.ID, err)
	}
	d.logger.Info("phase completed",
		"submission_id", next.ID,
		"phase", p,
		"from", sub.State,
		"to", next.State,
	)
	*sub = *next
	return out == advanced, nil
}

func (d *Driver) fail(p model.Phase, sub *model.Submission, err error) error {
	return &model.PhaseError{Phase: p, SubmissionID: sub.ID, Err: err}
}

// Reset moves sub back to target. References to artifacts of the undone
// phases are cleared; with purge the files go too, and a reset to before
// CHECKED_OUT removes the checkout.
func (d *Driver) Reset(ctx context.Context, ex *model.Exercise, sub *model.Submission, target model.SubmissionState, purge bool) error {
	next := sub.Clone()
	dropped, err := next.RewindTo(target)
	if err != nil {
		return err
	}

	question := fmt.Sprintf("Reset submission %d from %s to %s?", sub.ID, sub.State, target)
	if purge {
		question = fmt.Sprintf("Reset submission %d from %s to %s and delete its files?", sub.ID, sub.State, target)
	}
	ok, err := d.Prompter.Confirm(question, true)
	if err != nil || !ok {
		return err
	}

	if purge {
		if err := workspace.RemoveArtifacts(dropped); err != nil {
			return fmt.Errorf("remove artifacts: %w", err)
		}
		if target.Less(model.StateCheckedOut) && ex.GradingPath != "" {
			dir := ex.SubmissionDir(sub.ID)
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("remove checkout: %w", err)
			}
			d.Reporter.Info("Removed directory '%s'", dir)
		}
	}

	if err := d.Store.UpdateSubmission(ctx, next); err != nil {
		return fmt.Errorf("persist submission %d: %w", next.ID, err)
	}
	d.logger.Info("submission reset",
		"submission_id", sub.ID,
		"from", sub.State,
		"to", next.State,
		"artifacts", len(dropped),
		"purge", purge,
	)
	d.Reporter.Success("Submission %d is reset to %s", sub.ID, next.State)
	*sub = *next
	return nil
}
