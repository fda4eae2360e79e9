package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/oblig/internal/assess"
	"github.com/me/oblig/internal/classify"
	"github.com/me/oblig/internal/config"
	"github.com/me/oblig/internal/feedback"
	"github.com/me/oblig/internal/gitrepo"
	"github.com/me/oblig/internal/llm"
	"github.com/me/oblig/internal/lms"
	"github.com/me/oblig/internal/logging"
	"github.com/me/oblig/internal/publish"
	"github.com/me/oblig/internal/store"
	"github.com/me/oblig/internal/testrun"
	"github.com/me/oblig/internal/ui"
	"github.com/me/oblig/pkg/model"
)

// app carries the per-invocation state shared by all commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closer  io.Closer
	console *ui.Console
	in      io.Reader
	loc     *time.Location
	st      *store.SQLiteStore
}

func (a *app) setup(cmd *cobra.Command) error {
	home := flagHome
	if home == "" {
		var err error
		if home, err = config.HomeDir(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(home)
	if err != nil {
		return err
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagDebug {
		level = "debug"
	}
	if flagLogFormat != "" {
		format = flagLogFormat
	}
	logger, closer, err := logging.Setup(logging.Options{Level: level, Format: format, AuditFile: cfg.Log.File}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.closer = closer
	a.console = ui.NewConsole(cmd.OutOrStdout(), flagPlain)
	a.in = cmd.InOrStdin()
	a.loc = time.Local
	if cfg.Timezone != "" {
		if a.loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

func (a *app) close() {
	if a.st != nil {
		a.st.Close()
		a.st = nil
	}
	if a.closer != nil {
		a.closer.Close()
		a.closer = nil
	}
}

// store opens the database on first use.
func (a *app) store(ctx context.Context) (*store.SQLiteStore, error) {
	if a.st != nil {
		return a.st, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	st, err := store.NewSQLiteStore(a.cfg.DBPath, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.st = st
	return st, nil
}

func (a *app) lms() (*lms.Client, error) {
	return lms.NewClient(lms.Config{
		BaseURL:  a.cfg.Canvas.BaseURL,
		Token:    a.cfg.Canvas.Token,
		PageSize: a.cfg.Canvas.PageSize,
		RetryMax: a.cfg.Canvas.RetryMax,
	}, a.logger)
}

// current resolves an id given as argument, or falls back to the stored
// selection under key.
func (a *app) current(ctx context.Context, key string, args []string) (int64, error) {
	if len(args) > 0 {
		return parseID(args[0])
	}
	st, err := a.store(ctx)
	if err != nil {
		return 0, err
	}
	v, err := st.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, fmt.Errorf("no %s selected", strings.TrimPrefix(key, "current_"))
	}
	return parseID(v)
}

func (a *app) remember(ctx context.Context, key string, id int64) error {
	st, err := a.store(ctx)
	if err != nil {
		return err
	}
	return st.SetSetting(ctx, key, strconv.FormatInt(id, 10))
}

func (a *app) exercise(ctx context.Context, id int64) (*model.Exercise, error) {
	st, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	ex, err := st.GetExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, fmt.Errorf("exercise %d: %w", id, model.ErrNotFound)
	}
	return ex, nil
}

func (a *app) submission(ctx context.Context, id int64) (*model.Submission, *model.Exercise, error) {
	st, err := a.store(ctx)
	if err != nil {
		return nil, nil, err
	}
	sub, err := st.GetSubmission(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, fmt.Errorf("submission %d: %w", id, model.ErrNotFound)
	}
	ex, err := a.exercise(ctx, sub.ExerciseID)
	if err != nil {
		return nil, nil, err
	}
	return sub, ex, nil
}

// driver wires the assessment phases to the configured collaborators.
// Collaborators without credentials are left out.
func (a *app) driver(ctx context.Context, ignore *regexp.Regexp) (*assess.Driver, error) {
	st, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	deps := assess.Deps{
		Store:      st,
		Prompter:   assess.NewTerminal(a.in, a.console.Writer()),
		Reporter:   a.console,
		Downloader: gitrepo.NewCloner(a.cfg.GitHub.Token, a.logger),
		Tests:      testrun.NewRunner(a.cfg.Python, a.logger),
		Classifier: classify.New(a.logger),
	}
	if a.cfg.Editor != "" {
		deps.Editor = assess.CommandEditor{Command: a.cfg.Editor}
	}
	if a.cfg.LLM.APIKey != "" {
		c, err := llm.New(ctx, a.cfg.LLM.APIKey, a.cfg.LLM.Model, a.logger)
		if err != nil {
			return nil, err
		}
		deps.LLM = c
	}
	if a.cfg.GitHub.Token != "" {
		i, err := publish.NewIssuer(a.cfg.GitHub.Token, a.logger)
		if err != nil {
			return nil, err
		}
		deps.Issues = i
	}
	if a.cfg.Canvas.Token != "" {
		c, err := a.lms()
		if err != nil {
			return nil, err
		}
		deps.LMS = c
	}

	locale, err := feedback.ParseLocale(a.cfg.Locale)
	if err != nil {
		return nil, err
	}
	return assess.NewDriver(deps, assess.Options{Locale: locale, Ignore: ignore}, a.logger), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func compileIgnore(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("ignore pattern: %w", err)
	}
	return re, nil
}
