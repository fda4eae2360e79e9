package assess_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/oblig/internal/assess"
	"github.com/me/oblig/internal/classify"
	"github.com/me/oblig/internal/feedback"
	"github.com/me/oblig/internal/gitrepo"
	"github.com/me/oblig/internal/lms"
	"github.com/me/oblig/internal/logging"
	"github.com/me/oblig/internal/reconcile"
	"github.com/me/oblig/internal/store"
	"github.com/me/oblig/internal/testrun"
	"github.com/me/oblig/internal/ui"
	"github.com/me/oblig/pkg/model"
)

const (
	exerciseID = 10
	repoURL    = "https://github.com/student/oblig1"
)

var submittedAt = time.Date(2024, 9, 14, 10, 0, 0, 0, time.UTC)

// script answers the driver's questions in order. Each answer names a
// fragment the question must contain.
type script struct {
	t       *testing.T
	answers [][2]string
}

func (s *script) add(pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		s.answers = append(s.answers, [2]string{pairs[i], pairs[i+1]})
	}
}

func (s *script) next(question string) string {
	s.t.Helper()
	require.NotEmpty(s.t, s.answers, "unexpected question %q", question)
	a := s.answers[0]
	s.answers = s.answers[1:]
	require.Contains(s.t, question, a[0])
	return a[1]
}

func (s *script) Confirm(question string, _ bool) (bool, error) {
	return s.next(question) == "y", nil
}

func (s *script) Choose(question string, choices []string, _ string) (string, error) {
	answer := s.next(question)
	require.Contains(s.t, choices, answer)
	return answer, nil
}

func (s *script) Input(question, _ string) (string, error) {
	return s.next(question), nil
}

func (s *script) done() {
	assert.Empty(s.t, s.answers, "unanswered questions")
}

type fakeDownloader struct {
	files map[string]string
	err   error
	urls  []string
}

func (f *fakeDownloader) Download(_ context.Context, url, dir string, cutoff *time.Time) (*gitrepo.Checkout, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	if cutoff == nil || !cutoff.Equal(submittedAt) {
		return nil, errors.New("unexpected cutoff")
	}
	for name, content := range f.files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return &gitrepo.Checkout{Dir: dir}, nil
}

type fakeLLM struct {
	reply        string
	err          error
	system, user string
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

type issue struct{ repo, title, body string }

type fakeIssues struct {
	issues []issue
	err    error
}

func (f *fakeIssues) CreateIssue(_ context.Context, repo, title, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.issues = append(f.issues, issue{repo, title, body})
	return repo + "/issues/1", nil
}

type update struct {
	student int64
	u       lms.Update
}

type fakeLMS struct {
	updates []update
	err     error
}

func (f *fakeLMS) UpdateSubmission(_ context.Context, courseID, exID, studentID int64, u lms.Update) error {
	if f.err != nil {
		return f.err
	}
	if courseID != 1 || exID != exerciseID {
		return errors.New("wrong exercise")
	}
	f.updates = append(f.updates, update{studentID, u})
	return nil
}

type env struct {
	st     *store.SQLiteStore
	ex     *model.Exercise
	prompt *script
	dl     *fakeDownloader
	llm    *fakeLLM
	issues *fakeIssues
	lms    *fakeLMS
	out    *bytes.Buffer
	deps   assess.Deps
}

func newEnv(t *testing.T, grading model.GradingType) *env {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()

	st, err := store.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	_, err = st.UpsertCourse(ctx, &model.Course{ID: 1, Code: "DAT100", Description: "DAT100 Programmering 2024H", Semester: model.SemesterFall, Year: 2024})
	require.NoError(t, err)

	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "exercise"), map[string]string{
		"README.md": "# Oblig 1\n\nWrite a function that solves it.\n",
		"main.py":   "def solve():\n    pass\n",
	})
	ex := &model.Exercise{
		ID:              exerciseID,
		CourseID:        1,
		Name:            "Oblig 1",
		GradingType:     grading,
		DescriptionType: model.DescriptionGitRepo,
		Published:       true,
		GradingPath:     root,
	}
	_, err = st.UpsertExercise(ctx, ex)
	require.NoError(t, err)

	e := &env{
		st:     st,
		ex:     ex,
		prompt: &script{t: t},
		dl: &fakeDownloader{files: map[string]string{
			"README.md":        "# Oblig 1\n\nWrite a function that solves it.\n",
			"main.py":          "def solve():\n    return 42\n",
			"requirements.txt": "pytest\n",
		}},
		llm:    &fakeLLM{reply: "```xml\n<review>\n  Good work on `solve`!\n</review>\n<assessment>B</assessment>\n```"},
		issues: &fakeIssues{},
		lms:    &fakeLMS{},
		out:    &bytes.Buffer{},
	}
	e.deps = assess.Deps{
		Store:      st,
		Prompter:   e.prompt,
		Reporter:   ui.NewConsole(e.out, true),
		Downloader: e.dl,
		Tests:      testrun.NewRunner("", logger),
		Classifier: classify.New(logger),
		LLM:        e.llm,
		Issues:     e.issues,
		LMS:        e.lms,
	}
	t.Cleanup(e.prompt.done)
	return e
}

func (e *env) driver() *assess.Driver {
	return assess.NewDriver(e.deps, assess.Options{Locale: feedback.LocaleEnglish}, logging.Discard())
}

// seed stores a submission in state, creating the artifacts the earlier
// phases would have left behind.
func (e *env) seed(t *testing.T, state model.SubmissionState, content string, contributors ...int64) *model.Submission {
	t.Helper()
	at := submittedAt
	sub := &model.Submission{
		ID:             2,
		ExerciseID:     exerciseID,
		Content:        content,
		SubmissionType: "online_url",
		State:          state,
		Contributions:  contributors,
		SubmittedAt:    &at,
	}
	dir := e.ex.SubmissionDir(sub.ID)
	if !state.Less(model.StateCheckedOut) {
		writeFiles(t, dir, e.dl.files)
	}
	if !state.Less(model.StateTested) {
		sub.TestResultFile = testrun.ResultPath(dir)
		writeFiles(t, dir, map[string]string{"__oblig__/testresult.txt": "===== 3 passed in 0.12s =====\n"})
	}
	if !state.Less(model.StateFeedbackGenerated) {
		sub.FeedbackFile = filepath.Join(dir, "__oblig__", "feedback.xml")
		require.NoError(t, feedback.Write(sub.FeedbackFile, &feedback.Response{Review: "Nice **work**", Assessment: "A"}))
	}
	require.NoError(t, e.st.InsertSubmission(context.Background(), sub))
	return sub
}

func (e *env) stored(t *testing.T, id int64) *model.Submission {
	t.Helper()
	sub, err := e.st.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestAdvance_EndToEnd(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	ctx := context.Background()
	eng := reconcile.NewEngine(e.st, logging.Discard())

	_, err := eng.Merge(ctx, exerciseID, []*model.Submission{
		{ID: 1, ExerciseID: exerciseID, State: model.StateUnsubmitted, Contributions: []int64{100}},
	}, false)
	require.NoError(t, err)

	at := submittedAt
	res, err := eng.Merge(ctx, exerciseID, []*model.Submission{{
		ID:             2,
		ExerciseID:     exerciseID,
		Content:        repoURL + "/tree/main",
		SubmissionType: "online_url",
		State:          model.StateSubmitted,
		Contributions:  []int64{100},
		SubmittedAt:    &at,
	}}, false)
	require.NoError(t, err)
	assert.Equal(t, model.UpdateRemoved, res.Entries[1].Result)
	require.Equal(t, model.UpdateNew, res.Entries[2].Result)

	sub := e.stored(t, 2)
	d := e.driver()
	ranks := []int{sub.State.Rank()}
	step := func(answers ...string) {
		t.Helper()
		e.prompt.add(answers...)
		require.NoError(t, d.Advance(ctx, e.ex, sub))
		e.prompt.done()
		assert.True(t, sub.Equal(e.stored(t, 2)), "in-memory and stored submission differ")
		ranks = append(ranks, sub.State.Rank())
	}

	step("Proceed", "y", "Proceed", "n")
	assert.Equal(t, model.StateCheckedOut, sub.State)
	assert.Equal(t, []string{repoURL}, e.dl.urls)

	step("Proceed", "y", "Test backend", "none", "Proceed", "n")
	assert.Equal(t, model.StateTested, sub.State)
	assert.Equal(t, testrun.ResultPath(e.ex.SubmissionDir(2)), sub.TestResultFile)
	result, err := os.ReadFile(sub.TestResultFile)
	require.NoError(t, err)
	assert.Equal(t, testrun.NoTestsMarker, string(result))

	step("Proceed", "y",
		"Use AI", "y",
		"additional comment", "y",
		"Comment", "Check the edge cases",
		"Locale", "en",
		"Proceed", "n")
	assert.Equal(t, model.StateFeedbackGenerated, sub.State)
	assert.Empty(t, e.lms.updates)
	assert.Contains(t, e.llm.system, `in the course: "DAT100 2024 fall"`)
	assert.Contains(t, e.llm.system, "Write a function that solves it.")
	assert.Contains(t, e.llm.system, "def solve():\n    pass")
	assert.Contains(t, e.llm.system, "Write your feedback in English.")
	assert.Contains(t, e.llm.user, `<file path="main.py">`)
	assert.Contains(t, e.llm.user, "return 42")
	assert.NotContains(t, e.llm.user, "requirements.txt")
	assert.Contains(t, e.llm.user, testrun.NoTestsMarker)
	assert.Contains(t, e.llm.user, "Check the edge cases")
	fb, err := feedback.Read(sub.FeedbackFile)
	require.NoError(t, err)
	assert.Equal(t, "Good work on `solve`!", fb.Review)
	assert.Equal(t, "B", fb.Letter())
	assert.FileExists(t, sub.CommentFile)

	step("Proceed", "y",
		"Upload this feedback to "+repoURL, "n",
		"not posted anywhere", "y",
		"Proceed", "n")
	assert.Equal(t, model.StateFeedbackPublished, sub.State)
	assert.Empty(t, e.issues.issues)

	step("Proceed", "y", "Grade", "pass", "Additional comment", "")
	assert.Equal(t, model.StatePassed, sub.State)
	require.NotNil(t, sub.Grade)
	assert.Equal(t, 85.0, *sub.Grade)
	require.NotNil(t, sub.GradedAt)
	assert.Equal(t, []update{{100, lms.Update{Grade: "pass"}}}, e.lms.updates)

	for i := 1; i < len(ranks); i++ {
		assert.LessOrEqual(t, ranks[i-1], ranks[i], "state went backwards at step %d", i)
	}

	var unsupported *model.UnsupportedTransitionError
	assert.ErrorAs(t, d.Advance(ctx, e.ex, sub), &unsupported)
}

func TestAdvance_Declined(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateSubmitted, repoURL, 100)

	e.prompt.add("Proceed", "n")
	require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))
	assert.Equal(t, model.StateSubmitted, e.stored(t, 2).State)
	assert.Empty(t, e.dl.urls)
}

func TestAdvance_UnsupportedExercise(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateSubmitted, "I wrote it on paper", 100)
	e.ex.DescriptionType = model.DescriptionCanvasHTML

	e.prompt.add("Proceed", "y")
	err := e.driver().Advance(context.Background(), e.ex, sub)
	assert.ErrorIs(t, err, model.ErrUnsupportedExercise)
	assert.Equal(t, model.StateSubmitted, e.stored(t, 2).State)
}

func TestAdvance_DownloadFailureKeepsState(t *testing.T) {
	for name, cause := range map[string]error{
		"clone error":     errors.New("authentication required"),
		"checkout exists": model.ErrCheckoutExists,
	} {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t, model.GradingPassFail)
			e.dl.err = cause
			sub := e.seed(t, model.StateSubmitted, repoURL, 100)

			e.prompt.add("Proceed", "y")
			err := e.driver().Advance(context.Background(), e.ex, sub)

			var pe *model.PhaseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, model.PhaseDownloading, pe.Phase)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, model.StateSubmitted, sub.State)
			assert.Equal(t, model.StateSubmitted, e.stored(t, 2).State)
		})
	}
}

func TestAdvance_TestingNeedsCheckout(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateCheckedOut, repoURL, 100)
	require.NoError(t, os.RemoveAll(e.ex.SubmissionDir(2)))

	e.prompt.add("Proceed", "y")
	err := e.driver().Advance(context.Background(), e.ex, sub)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, model.StateCheckedOut, e.stored(t, 2).State)
}

func TestAdvance_ShellBackend(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateCheckedOut, repoURL, 100)

	e.prompt.add("Proceed", "y", "Test backend", "shell", "Shell command", "echo '=== 1 passed in 0.01s ==='", "Proceed", "n")
	require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))
	assert.Equal(t, model.StateTested, sub.State)
	assert.Contains(t, e.out.String(), "1 passed in 0.01s")
}

func TestAdvance_ManualFeedbackPauses(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateTested, repoURL, 100, 101)
	sub.GroupName = "Gruppe 7"

	e.prompt.add("Proceed", "y", "Use AI", "n")
	require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))

	assert.Equal(t, model.StateFeedbackGenerated, e.stored(t, 2).State)
	fb, err := feedback.Read(sub.FeedbackFile)
	require.NoError(t, err)
	assert.Equal(t, "F", fb.Letter())
	assert.True(t, strings.HasPrefix(fb.Review, "# Group Gruppe 7"), fb.Review)
}

func TestAdvance_MissingLLM(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	e.deps.LLM = nil
	sub := e.seed(t, model.StateTested, repoURL, 100)

	e.prompt.add("Proceed", "y", "Use AI", "y")
	err := e.driver().Advance(context.Background(), e.ex, sub)
	assert.ErrorIs(t, err, model.ErrMissingCredential)
	assert.Equal(t, model.StateTested, e.stored(t, 2).State)
}

func TestAdvance_LLMFailure(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	e.llm.err = errors.New("quota exceeded")
	sub := e.seed(t, model.StateTested, repoURL, 100)

	e.prompt.add("Proceed", "y", "Use AI", "y", "additional comment", "n", "Locale", "de")
	err := e.driver().Advance(context.Background(), e.ex, sub)

	var pe *model.PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.PhaseEvaluation, pe.Phase)
	assert.Contains(t, e.llm.system, "German")
	stored := e.stored(t, 2)
	assert.Equal(t, model.StateTested, stored.State)
	assert.Empty(t, stored.FeedbackFile)
}

func TestAdvance_PublishIssueWithLink(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateFeedbackGenerated, repoURL, 100, 101)

	e.prompt.add("Proceed", "y",
		"Upload this feedback to "+repoURL, "y",
		"Locale", "no",
		"Link to this issue", "y",
		"Proceed", "n")
	require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))

	assert.Equal(t, model.StateFeedbackPublished, e.stored(t, 2).State)
	require.Len(t, e.issues.issues, 1)
	got := e.issues.issues[0]
	assert.Equal(t, repoURL, got.repo)
	assert.Equal(t, "Feedback: Oblig 1", got.title)
	assert.True(t, strings.HasPrefix(got.body, "Nice **work**\n\n"), got.body)
	assert.Contains(t, got.body, "Dere kan bare _lukke_")

	link := "Se flere detaljer her: " + repoURL + "/issues/1"
	assert.Equal(t, []update{
		{100, lms.Update{Comment: link}},
		{101, lms.Update{Comment: link}},
	}, e.lms.updates)
}

func TestAdvance_PublishLinkFailureStillPublishes(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	e.lms.err = errors.New("503")
	sub := e.seed(t, model.StateFeedbackGenerated, repoURL, 100)

	e.prompt.add("Proceed", "y", "Upload", "y", "Locale", "en", "Link", "y", "Proceed", "n")
	require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))
	assert.Equal(t, model.StateFeedbackPublished, e.stored(t, 2).State)
	assert.Len(t, e.issues.issues, 1)
}

func TestAdvance_PublishToLMS(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateFeedbackGenerated, "https://gitlab.com/student/oblig1", 100)

	e.prompt.add("Proceed", "y", "Upload this feedback to the LMS", "y", "Proceed", "n")
	require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))
	assert.Equal(t, model.StateFeedbackPublished, e.stored(t, 2).State)
	assert.Equal(t, []update{{100, lms.Update{Comment: "Nice **work**"}}}, e.lms.updates)
}

func TestAdvance_PublishFailureKeepsState(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	e.lms.err = errors.New("503")
	sub := e.seed(t, model.StateFeedbackGenerated, "https://gitlab.com/student/oblig1", 100)

	e.prompt.add("Proceed", "y", "Upload this feedback to the LMS", "y")
	err := e.driver().Advance(context.Background(), e.ex, sub)
	var pe *model.PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.PhasePublishing, pe.Phase)
	assert.Equal(t, model.StateFeedbackGenerated, e.stored(t, 2).State)
}

func TestAdvance_PublishNotConcluded(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateFeedbackGenerated, "https://gitlab.com/student/oblig1", 100)

	e.prompt.add("Proceed", "y", "Upload", "n", "not posted anywhere", "n")
	require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))
	assert.Equal(t, model.StateFeedbackGenerated, e.stored(t, 2).State)
}

func TestAdvance_FinishPassFail(t *testing.T) {
	tests := []struct {
		grade string
		state model.SubmissionState
		score float64
	}{
		{"complete", model.StatePassed, 100},
		{"fail", model.StateFailed, 0},
		{"incomplete", model.StateFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.grade, func(t *testing.T) {
			e := newEnv(t, model.GradingPassFail)
			sub := e.seed(t, model.StateFeedbackPublished, repoURL, 100, 101)

			e.prompt.add("Proceed", "y", "Grade", tt.grade, "Additional comment", "See issue")
			require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))

			stored := e.stored(t, 2)
			assert.Equal(t, tt.state, stored.State)
			require.NotNil(t, stored.Grade)
			assert.Equal(t, tt.score, *stored.Grade)
			assert.NotNil(t, stored.GradedAt)
			assert.Len(t, e.lms.updates, 2)
			for _, u := range e.lms.updates {
				assert.Equal(t, lms.Update{Grade: tt.grade, Comment: "See issue"}, u.u)
			}
		})
	}
}

func TestAdvance_FinishPoints(t *testing.T) {
	tests := []struct {
		input string
		state model.SubmissionState
		score float64
	}{
		{"42.5", model.StatePassed, 42.5},
		{" 0 ", model.StateFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e := newEnv(t, model.GradingPoints)
			sub := e.seed(t, model.StateFeedbackPublished, repoURL, 100)

			e.prompt.add("Proceed", "y", "Point score", tt.input, "Additional comment", "")
			require.NoError(t, e.driver().Advance(context.Background(), e.ex, sub))

			stored := e.stored(t, 2)
			assert.Equal(t, tt.state, stored.State)
			assert.Equal(t, tt.score, *stored.Grade)
		})
	}
}

func TestAdvance_FinishInvalidPoints(t *testing.T) {
	e := newEnv(t, model.GradingPoints)
	sub := e.seed(t, model.StateFeedbackPublished, repoURL, 100)

	e.prompt.add("Proceed", "y", "Point score", "lots")
	assert.Error(t, e.driver().Advance(context.Background(), e.ex, sub))
	assert.Equal(t, model.StateFeedbackPublished, e.stored(t, 2).State)
	assert.Empty(t, e.lms.updates)
}

func TestAdvance_FinishWithoutLMS(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	e.deps.LMS = nil
	sub := e.seed(t, model.StateFeedbackPublished, repoURL, 100)

	e.prompt.add("Proceed", "y", "Grade", "pass", "Additional comment", "")
	err := e.driver().Advance(context.Background(), e.ex, sub)
	assert.ErrorIs(t, err, model.ErrMissingCredential)
	assert.Equal(t, model.StateFeedbackPublished, e.stored(t, 2).State)
}

func TestAdvance_Terminal(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	for _, state := range []model.SubmissionState{model.StatePassed, model.StateFailedImported, model.StateUnsubmitted} {
		sub := &model.Submission{ID: 2, State: state}
		var unsupported *model.UnsupportedTransitionError
		assert.ErrorAs(t, e.driver().Advance(context.Background(), e.ex, sub), &unsupported, state)
	}
}

func TestReset(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	ctx := context.Background()
	sub := e.seed(t, model.StateFeedbackPublished, repoURL, 100)
	feedbackFile, testResult := sub.FeedbackFile, sub.TestResultFile

	e.prompt.add("Reset submission 2 from FEEDBACK_PUBLISHED to TESTED", "y")
	require.NoError(t, e.driver().Reset(ctx, e.ex, sub, model.StateTested, false))
	stored := e.stored(t, 2)
	assert.Equal(t, model.StateTested, stored.State)
	assert.Empty(t, stored.FeedbackFile)
	assert.Equal(t, testResult, stored.TestResultFile)
	assert.FileExists(t, feedbackFile, "reset without purge keeps files")

	var invalid *model.InvalidResetError
	assert.ErrorAs(t, e.driver().Reset(ctx, e.ex, sub, model.StatePassed, false), &invalid)

	e.prompt.add("delete its files", "y")
	require.NoError(t, e.driver().Reset(ctx, e.ex, sub, model.StateCheckedOut, true))
	assert.NoFileExists(t, testResult)
	assert.DirExists(t, e.ex.SubmissionDir(2))

	e.prompt.add("delete its files", "y")
	require.NoError(t, e.driver().Reset(ctx, e.ex, sub, model.StateSubmitted, true))
	assert.NoDirExists(t, e.ex.SubmissionDir(2))
	assert.Equal(t, model.StateSubmitted, e.stored(t, 2).State)
}

func TestReset_Declined(t *testing.T) {
	e := newEnv(t, model.GradingPassFail)
	sub := e.seed(t, model.StateTested, repoURL, 100)

	e.prompt.add("Reset", "n")
	require.NoError(t, e.driver().Reset(context.Background(), e.ex, sub, model.StateSubmitted, true))
	assert.Equal(t, model.StateTested, e.stored(t, 2).State)
	assert.DirExists(t, e.ex.SubmissionDir(2))
}
