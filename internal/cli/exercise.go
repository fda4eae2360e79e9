package cli

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/oblig/internal/config"
	"github.com/me/oblig/internal/store"
	"github.com/me/oblig/internal/ui"
	"github.com/me/oblig/internal/workspace"
	"github.com/me/oblig/pkg/model"
)

func newExerciseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exercise",
		Short: "Manage the exercises of the current course",
	}
	cmd.AddCommand(newExerciseListCmd(a), newExerciseFetchCmd(a), newExerciseGradeCmd(a))
	return cmd
}

func exerciseRow(a *app, ex *model.Exercise) []string {
	return []string{
		strconv.FormatInt(ex.ID, 10),
		ex.Name,
		ex.Category,
		string(ex.GradingType),
		ui.FormatTime(ex.Deadline, a.loc),
		ex.Status(),
	}
}

var exerciseHeaders = []string{"ID", "NAME", "CATEGORY", "GRADING", "DEADLINE", "STATUS"}

func newExerciseListCmd(a *app) *cobra.Command {
	var courseFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored exercises of the current course",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			courseID, err := a.current(ctx, store.SettingCurrentCourse, optional(courseFlag))
			if err != nil {
				return err
			}
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			exs, err := st.ListExercises(ctx, courseID)
			if err != nil {
				return err
			}
			if len(exs) == 0 {
				a.console.Info("No exercises found. Run `oblig exercise fetch` first.")
				return nil
			}
			rows := make([][]string, 0, len(exs))
			for _, ex := range exs {
				rows = append(rows, exerciseRow(a, ex))
			}
			a.console.Table(exerciseHeaders, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&courseFlag, "course", "", "Course id (default: current course)")
	return cmd
}

func newExerciseFetchCmd(a *app) *cobra.Command {
	var courseFlag string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the exercises of the current course from the LMS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			courseID, err := a.current(ctx, store.SettingCurrentCourse, optional(courseFlag))
			if err != nil {
				return err
			}
			client, err := a.lms()
			if err != nil {
				return err
			}
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			exs, err := client.Exercises(ctx, courseID)
			if err != nil {
				return fmt.Errorf("list exercises: %w", err)
			}

			rows := make([][]string, 0, len(exs))
			for _, ex := range exs {
				res, err := st.UpsertExercise(ctx, ex)
				if err != nil {
					return err
				}
				a.logger.Info("exercise reconciled", "exercise_id", ex.ID, "result", res)
				rows = append(rows, append(exerciseRow(a, ex), ui.ResultStyle(res).Render(res.String())))
			}
			a.console.Table(append(exerciseHeaders, "RESULT"), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&courseFlag, "course", "", "Course id (default: current course)")
	return cmd
}

func newExerciseGradeCmd(a *app) *cobra.Command {
	var (
		path     string
		src      workspace.Source
		template string
	)
	cmd := &cobra.Command{
		Use:   "grade <exercise_id>",
		Short: "Start grading an exercise: set up its grading directory and select it",
		Long: "Creates the grading directory of an exercise and installs the exercise template\n" +
			"from a git repository (--repo) or a local directory (--template) as the baseline\n" +
			"submissions are compared against.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ex, err := a.exercise(ctx, id)
			if err != nil {
				return err
			}

			dir := path
			switch {
			case dir != "":
			case ex.GradingPath != "":
				dir = ex.GradingPath
			case a.cfg.GradingPath != "":
				dir = filepath.Join(a.cfg.GradingPath, strconv.FormatInt(ex.CourseID, 10), strconv.FormatInt(ex.ID, 10))
			default:
				return fmt.Errorf("no grading directory: pass --path or set %s", config.GradingPath)
			}
			src.Dir = template

			inst := workspace.NewInstaller(a.cfg.GitHub.Token, a.logger)
			if err := inst.Prepare(ctx, ex, dir, src); err != nil {
				return err
			}
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			if _, err := st.UpsertExercise(ctx, ex); err != nil {
				return err
			}
			if err := a.remember(ctx, store.SettingCurrentExercise, ex.ID); err != nil {
				return err
			}
			a.console.Success("Grading %q in '%s'", ex.Name, ex.GradingPath)
			if !ex.SupportsCheckout() {
				a.console.Warn("Exercise is of type %s; submissions cannot be checked out.", ex.DescriptionType)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Grading directory (default: <grading_path>/<course>/<exercise>)")
	cmd.Flags().StringVar(&src.Repo, "repo", "", "Git repository holding the exercise template")
	cmd.Flags().StringVar(&src.Branch, "branch", "main", "Branch of the template repository")
	cmd.Flags().StringVar(&src.DescriptionFile, "description", workspace.DefaultDescriptionFile, "File of the template holding the exercise text")
	cmd.Flags().StringVar(&template, "template", "", "Local directory holding the exercise template")
	cmd.MarkFlagsMutuallyExclusive("repo", "template")
	return cmd
}

// optional turns a flag value into the argument list expected by
// app.current.
func optional(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}
