package assess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/me/oblig/internal/classify"
	"github.com/me/oblig/internal/feedback"
	"github.com/me/oblig/internal/gitrepo"
	"github.com/me/oblig/internal/lms"
	"github.com/me/oblig/internal/publish"
	"github.com/me/oblig/internal/testrun"
	"github.com/me/oblig/internal/ui"
	"github.com/me/oblig/internal/workspace"
	"github.com/me/oblig/pkg/model"
)

const (
	feedbackName = "feedback.xml"
	commentName  = "comment.md"
)

var passFailGrades = []string{"pass", "complete", "fail", "incomplete"}

func (d *Driver) download(ctx context.Context, ex *model.Exercise, sub *model.Submission) (outcome, error) {
	if !ex.SupportsCheckout() {
		return stay, fmt.Errorf("exercise %d (%s): %w", ex.ID, ex.DescriptionType, model.ErrUnsupportedExercise)
	}
	url := gitrepo.SanitizeURL(sub.Content)
	if url == "" {
		return stay, fmt.Errorf("submission %d has no repository url: %w", sub.ID, model.ErrUnsupportedExercise)
	}

	dir := ex.SubmissionDir(sub.ID)
	d.Reporter.Info("Cloning <%s> into '%s'", url, dir)
	co, err := d.Downloader.Download(ctx, url, dir, sub.SubmittedAt)
	if err != nil {
		if errors.Is(err, model.ErrCheckoutExists) {
			d.Reporter.Warn("The directory '%s' exists already. Remove it or reset the submission with --purge.", dir)
		}
		return stay, d.fail(model.PhaseDownloading, sub, err)
	}
	if co.Pinned {
		d.Reporter.Warn("There are commits after the submission on %s, they are ignored.", sub.SubmittedAt.Format("2006-01-02 15:04"))
		d.Reporter.Info("Checked out latest commit before the submission: %s", co.Head)
	}

	sub.State = model.StateCheckedOut
	return advanced, nil
}

func (d *Driver) test(ctx context.Context, ex *model.Exercise, sub *model.Submission) (outcome, error) {
	dir, err := d.checkout(ex, sub)
	if err != nil {
		return stay, err
	}

	states, err := d.Classifier.Classify(dir, ex.BaselineDir(), classify.Options{Cutoff: sub.SubmittedAt, Ignore: d.opts.Ignore})
	if err != nil {
		return stay, fmt.Errorf("classify submission %d: %w", sub.ID, err)
	}
	commits, err := gitrepo.CountCommits(dir)
	if err != nil {
		d.logger.Debug("count commits", "dir", dir, "error", err)
	}
	if commits <= 1 && len(classify.Submitted(states)) == 0 {
		d.Reporter.Warn("Only a single commit and no work seems to have been done.")
	} else {
		d.Reporter.Info("Submission overview: %d commits", commits)
		d.Reporter.Info("%s", ui.FileTree(states))
	}

	backend, err := d.Prompter.Choose("Test backend", testrun.Backends(), string(d.opts.Backend))
	if err != nil {
		return stay, err
	}
	req := testrun.Request{Backend: testrun.Backend(backend), Dir: dir, TestDir: d.opts.TestDir}
	if req.Backend == testrun.BackendShell {
		if req.Command, err = d.Prompter.Input("Shell command", d.opts.TestCommand); err != nil {
			return stay, err
		}
	}

	res, err := d.Tests.Run(ctx, req)
	if err != nil {
		return stay, d.fail(model.PhaseTesting, sub, err)
	}
	if s := res.Summary(); s != "" {
		d.Reporter.Info("Test result: %s", s)
	}
	d.Reporter.Info("Exit code %d, result written to '%s'", res.ExitCode, res.File)

	sub.TestResultFile = res.File
	sub.State = model.StateTested
	return advanced, nil
}

func (d *Driver) evaluate(ctx context.Context, ex *model.Exercise, sub *model.Submission) (outcome, error) {
	dir, err := d.checkout(ex, sub)
	if err != nil {
		return stay, err
	}
	artifacts := filepath.Join(dir, testrun.ArtifactDir)
	if err := os.MkdirAll(artifacts, 0o755); err != nil {
		return stay, fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(artifacts, feedbackName)

	useAI, err := d.Prompter.Confirm("Use AI for automatic evaluation?", d.LLM != nil)
	if err != nil {
		return stay, err
	}
	if !useAI {
		return d.manualFeedback(ctx, sub, path)
	}
	if d.LLM == nil {
		return stay, d.fail(model.PhaseEvaluation, sub, fmt.Errorf("llm api key: %w", model.ErrMissingCredential))
	}

	withComment, err := d.Prompter.Confirm("Supply an additional comment for the AI-based assessment?", false)
	if err != nil {
		return stay, err
	}
	if withComment {
		text, err := d.Prompter.Input("Comment", "")
		if err != nil {
			return stay, err
		}
		commentFile := filepath.Join(artifacts, commentName)
		if err := os.WriteFile(commentFile, []byte(text), 0o644); err != nil {
			return stay, fmt.Errorf("write comment: %w", err)
		}
		d.Reporter.Info("Comment written to '%s'", commentFile)
		sub.CommentFile = commentFile
	}

	addr, err := d.address(sub)
	if err != nil {
		return stay, err
	}
	system, user, err := d.prompts(ctx, ex, sub, addr)
	if err != nil {
		return stay, err
	}

	d.Reporter.Info("Submission content sent for assessment.")
	raw, err := d.LLM.Complete(ctx, system, user)
	if err != nil {
		return stay, d.fail(model.PhaseEvaluation, sub, err)
	}
	if err := os.WriteFile(path, []byte(feedback.Normalize(raw)), 0o644); err != nil {
		return stay, fmt.Errorf("write feedback: %w", err)
	}
	resp, err := feedback.Read(path)
	if err != nil {
		return stay, d.fail(model.PhaseEvaluation, sub, err)
	}

	d.Reporter.Markdown(resp.Review)
	d.Reporter.Info("Initial assessment: %s", resp.Letter())
	d.Reporter.Info("You may want to inspect and modify the feedback at '%s' before publishing it.", path)

	sub.FeedbackFile = path
	sub.State = model.StateFeedbackGenerated
	return advanced, nil
}

// manualFeedback prepares a template for the operator and stops, so the
// feedback can be written before it is published.
func (d *Driver) manualFeedback(ctx context.Context, sub *model.Submission, path string) (outcome, error) {
	write := true
	if _, err := os.Stat(path); err == nil {
		keep, err := d.Prompter.Confirm(fmt.Sprintf("'%s' exists already. Keep it?", path), true)
		if err != nil {
			return stay, err
		}
		write = !keep
	}
	if write {
		addr := feedback.Address{Locale: d.opts.Locale, Plural: len(sub.Contributions) > 1}
		if err := feedback.Write(path, feedback.Manual(sub.GroupName, addr)); err != nil {
			return stay, err
		}
		d.Reporter.Info("Prepared feedback file '%s'", path)
	}

	if d.Editor != nil {
		edit, err := d.Prompter.Confirm("Edit this file now?", true)
		if err != nil {
			return stay, err
		}
		if edit {
			if err := d.Editor.Edit(ctx, path); err != nil {
				d.logger.Warn("editor failed", "path", path, "error", err)
				d.Reporter.Warn("Editor failed: %v", err)
			}
		}
	}

	sub.FeedbackFile = path
	sub.State = model.StateFeedbackGenerated
	return paused, nil
}

func (d *Driver) publish(ctx context.Context, ex *model.Exercise, sub *model.Submission) (outcome, error) {
	resp, err := feedback.Read(sub.FeedbackFile)
	if err != nil {
		return stay, err
	}
	d.Reporter.Info("Current feedback:")
	d.Reporter.Markdown(resp.Review)

	posted := false
	if publish.IsGitHubURL(sub.Content) {
		repo := gitrepo.SanitizeURL(sub.Content)
		ok, err := d.Prompter.Confirm(fmt.Sprintf("Upload this feedback to %s?", repo), false)
		if err != nil {
			return stay, err
		}
		if ok {
			addr, err := d.address(sub)
			if err != nil {
				return stay, err
			}
			if d.Issues == nil {
				return stay, d.fail(model.PhasePublishing, sub, fmt.Errorf("github token: %w", model.ErrMissingCredential))
			}
			link, err := d.Issues.CreateIssue(ctx, repo, publish.IssueTitle(ex.Name), resp.Review+"\n\n"+addr.IssueAddendum())
			if err != nil {
				return stay, d.fail(model.PhasePublishing, sub, err)
			}
			posted = true
			d.Reporter.Success("Feedback posted at <%s>", link)

			seeAlso, err := d.Prompter.Confirm("Link to this issue on the LMS submission page?", true)
			if err != nil {
				return stay, err
			}
			if seeAlso {
				// The issue is out already; a failing link must not cause
				// it to be posted twice.
				if err := d.comment(ctx, ex, sub, addr.SeeAlso(link)); err != nil {
					d.logger.Warn("link issue on lms", "submission_id", sub.ID, "error", err)
					d.Reporter.Warn("Could not link the issue on the LMS: %v", err)
				}
			}
		}
	} else {
		ok, err := d.Prompter.Confirm("Upload this feedback to the LMS submission page?", false)
		if err != nil {
			return stay, err
		}
		if ok {
			if err := d.comment(ctx, ex, sub, resp.Review); err != nil {
				return stay, d.fail(model.PhasePublishing, sub, err)
			}
			posted = true
			d.Reporter.Success("Feedback posted on the LMS")
		}
	}

	if !posted {
		ok, err := d.Prompter.Confirm("The feedback was not posted anywhere. Proceed to the final grading anyway?", false)
		if err != nil || !ok {
			return stay, err
		}
	}
	sub.State = model.StateFeedbackPublished
	return advanced, nil
}

func (d *Driver) finish(ctx context.Context, ex *model.Exercise, sub *model.Submission) (outcome, error) {
	if sub.TestResultFile != "" {
		if data, err := os.ReadFile(sub.TestResultFile); err == nil {
			if s := testrun.Summary(string(data)); s != "" {
				d.Reporter.Info("Test result was: %s", s)
			}
		}
	}
	var letter string
	if sub.FeedbackFile != "" {
		if resp, err := feedback.Read(sub.FeedbackFile); err == nil {
			letter = resp.Letter()
		}
		if letter != "" {
			d.Reporter.Info("Suggested grade was: %s", letter)
		}
	}

	var (
		posted string
		passed bool
		grade  *float64
	)
	switch ex.GradingType {
	case model.GradingPassFail:
		choice, err := d.Prompter.Choose("Grade", passFailGrades, "")
		if err != nil {
			return stay, err
		}
		posted = choice
		passed = choice == "pass" || choice == "complete"
		switch {
		case !passed:
			zero := 0.0
			grade = &zero
		case letter != "":
			g := feedback.LetterToGrade(letter)
			grade = &g
		}
	default:
		in, err := d.Prompter.Input("Point score (e.g. 42.0)", "")
		if err != nil {
			return stay, err
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(in), 64)
		if err != nil {
			return stay, fmt.Errorf("invalid point score %q", in)
		}
		posted = strconv.FormatFloat(score, 'f', -1, 64)
		passed = score > 0
		grade = &score
	}

	comment, err := d.Prompter.Input("Additional comment (optional)", "")
	if err != nil {
		return stay, err
	}
	if err := d.postAll(ctx, ex, sub, lms.Update{Comment: comment, Grade: posted}); err != nil {
		return stay, d.fail(model.PhaseFinishing, sub, err)
	}

	now := d.now().UTC()
	sub.Grade = grade
	sub.GradedAt = &now
	sub.State = model.StateFailed
	if passed {
		sub.State = model.StatePassed
	}
	d.Reporter.Success("Assessment of submission %d is now completed!", sub.ID)
	return advanced, nil
}

// checkout returns the checkout directory of sub, which earlier phases must
// have created.
func (d *Driver) checkout(ex *model.Exercise, sub *model.Submission) (string, error) {
	if ex.GradingPath == "" {
		return "", fmt.Errorf("exercise %d has no grading path: %w", ex.ID, model.ErrUnsupportedExercise)
	}
	dir := ex.SubmissionDir(sub.ID)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("checkout of submission %d: %w", sub.ID, err)
	}
	return dir, nil
}

func (d *Driver) address(sub *model.Submission) (feedback.Address, error) {
	choice, err := d.Prompter.Choose("Locale", feedback.Locales(), string(d.opts.Locale))
	if err != nil {
		return feedback.Address{}, err
	}
	loc, err := feedback.ParseLocale(choice)
	if err != nil {
		return feedback.Address{}, err
	}
	return feedback.Address{Locale: loc, Plural: len(sub.Contributions) > 1}, nil
}

func (d *Driver) comment(ctx context.Context, ex *model.Exercise, sub *model.Submission, text string) error {
	return d.postAll(ctx, ex, sub, lms.Update{Comment: text})
}

// postAll sends u to the LMS once per contributor.
func (d *Driver) postAll(ctx context.Context, ex *model.Exercise, sub *model.Submission, u lms.Update) error {
	if d.LMS == nil {
		return fmt.Errorf("canvas token: %w", model.ErrMissingCredential)
	}
	for _, student := range sub.Contributions {
		if err := d.LMS.UpdateSubmission(ctx, ex.CourseID, ex.ID, student, u); err != nil {
			return fmt.Errorf("update student %d: %w", student, err)
		}
	}
	return nil
}

// prompts builds the system prompt from the exercise and its start code,
// and the user prompt from the student's own files.
func (d *Driver) prompts(ctx context.Context, ex *model.Exercise, sub *model.Submission, addr feedback.Address) (string, string, error) {
	desc, err := workspace.Description(ex)
	if err != nil {
		d.logger.Warn("no exercise description", "exercise_id", ex.ID, "error", err)
	}
	var courseName string
	if c, err := d.Store.GetCourse(ctx, ex.CourseID); err == nil && c != nil {
		courseName = c.Label()
	}

	var startcode []feedback.File
	if _, err := os.Stat(ex.BaselineDir()); err == nil {
		states, err := d.Classifier.Classify(ex.BaselineDir(), "", classify.Options{Ignore: d.opts.Ignore})
		if err != nil {
			return "", "", fmt.Errorf("classify baseline: %w", err)
		}
		if startcode, err = readFiles(ex.BaselineDir(), classify.Submitted(states)); err != nil {
			return "", "", err
		}
	}

	dir := ex.SubmissionDir(sub.ID)
	states, err := d.Classifier.Classify(dir, ex.BaselineDir(), classify.Options{Cutoff: sub.SubmittedAt, Ignore: d.opts.Ignore})
	if err != nil {
		return "", "", fmt.Errorf("classify submission %d: %w", sub.ID, err)
	}
	files, err := readFiles(dir, classify.Submitted(states))
	if err != nil {
		return "", "", err
	}

	system, err := feedback.SystemPrompt(feedback.SystemInput{
		Course:      courseName,
		Exercise:    ex.Name,
		Description: desc,
		Startcode:   startcode,
		Address:     addr,
	})
	if err != nil {
		return "", "", err
	}
	user, err := feedback.UserPrompt(feedback.UserInput{
		SubmissionID: sub.ID,
		Files:        files,
		TestResult:   readOptional(sub.TestResultFile),
		Comment:      readOptional(sub.CommentFile),
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// readFiles reads the slash-separated paths below root. Paths that vanished
// since classification are skipped.
func readFiles(root string, paths []string) ([]feedback.File, error) {
	out := make([]feedback.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		out = append(out, feedback.File{Path: p, Content: string(data)})
	}
	return out, nil
}

func readOptional(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
