package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/oblig/internal/classify"
	"github.com/me/oblig/internal/feedback"
	"github.com/me/oblig/internal/reconcile"
	"github.com/me/oblig/internal/store"
	"github.com/me/oblig/internal/ui"
	"github.com/me/oblig/pkg/model"
)

func newSubmissionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submission",
		Short: "Fetch, inspect and grade the submissions of the current exercise",
	}
	cmd.AddCommand(
		newSubmissionFetchCmd(a),
		newSubmissionListCmd(a),
		newSubmissionShowCmd(a),
		newSubmissionGradeCmd(a),
		newSubmissionResetCmd(a),
		newSubmissionFilesCmd(a),
	)
	return cmd
}

// contributors renders the contributing students of sub, or its group name.
func (a *app) contributors(ctx context.Context, sub *model.Submission) string {
	st, err := a.store(ctx)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(sub.Contributions))
	for _, id := range sub.Contributions {
		s, err := st.GetStudent(ctx, id)
		if err != nil || s == nil {
			names = append(names, strconv.FormatInt(id, 10))
			continue
		}
		names = append(names, s.FullName())
	}
	text := strings.Join(names, ", ")
	if sub.GroupName != "" {
		text = sub.GroupName + ": " + text
	}
	return text
}

func gradeText(g *float64) string {
	if g == nil {
		return ""
	}
	return strconv.FormatFloat(*g, 'f', -1, 64)
}

func newSubmissionFetchCmd(a *app) *cobra.Command {
	var (
		exerciseFlag string
		force        bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch submissions from the LMS and reconcile them with the local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exID, err := a.current(ctx, store.SettingCurrentExercise, optional(exerciseFlag))
			if err != nil {
				return err
			}
			ex, err := a.exercise(ctx, exID)
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

			if ex.SubmissionCategoryID != nil {
				groups, members, err := client.GroupCategory(ctx, *ex.SubmissionCategoryID)
				if err != nil {
					return fmt.Errorf("fetch groups: %w", err)
				}
				if err := st.ReplaceGroups(ctx, *ex.SubmissionCategoryID, groups, members); err != nil {
					return err
				}
			}
			incoming, err := client.Submissions(ctx, ex.CourseID, ex.ID)
			if err != nil {
				return fmt.Errorf("fetch submissions: %w", err)
			}
			res, err := reconcile.NewEngine(st, a.logger).Merge(ctx, ex.ID, incoming, force)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Entries))
			for _, id := range res.IDs() {
				e := res.Entries[id]
				rows = append(rows, []string{
					strconv.FormatInt(id, 10),
					ui.StateStyle(e.Submission.State).Render(e.Submission.State.String()),
					a.contributors(ctx, e.Submission),
					ui.FormatTime(e.Submission.SubmittedAt, a.loc),
					ui.ResultStyle(e.Result).Render(e.Result.String()),
				})
			}
			a.console.Table([]string{"ID", "STATE", "CONTRIBUTORS", "SUBMITTED", "RESULT"}, rows)
			a.console.Info("%d new, %d modified, %d removed, %d rejected, %d unchanged",
				res.Count(model.UpdateNew), res.Count(model.UpdateModified), res.Count(model.UpdateRemoved),
				res.Count(model.UpdateRejected), res.Count(model.UpdateUnchanged))
			if n := res.Count(model.UpdateRejected); n > 0 {
				a.console.Warn("%d submissions are further along locally than on the LMS and were kept; --force overwrites them.", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&exerciseFlag, "exercise", "", "Exercise id (default: current exercise)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite local progress with the LMS state")
	return cmd
}

func newSubmissionListCmd(a *app) *cobra.Command {
	var (
		exerciseFlag string
		stateFlag    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored submissions of the current exercise",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exID, err := a.current(ctx, store.SettingCurrentExercise, optional(exerciseFlag))
			if err != nil {
				return err
			}
			var filter model.SubmissionState
			if stateFlag != "" {
				if filter, err = model.ParseSubmissionState(stateFlag); err != nil {
					return err
				}
			}
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			subs, err := st.ListSubmissions(ctx, exID)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(subs))
			for _, s := range subs {
				if filter != "" && s.State != filter {
					continue
				}
				rows = append(rows, []string{
					strconv.FormatInt(s.ID, 10),
					ui.StateStyle(s.State).Render(s.State.String()),
					a.contributors(ctx, s),
					ui.FormatTime(s.SubmittedAt, a.loc),
					gradeText(s.Grade),
				})
			}
			if len(rows) == 0 {
				a.console.Info("No submissions found.")
				return nil
			}
			a.console.Table([]string{"ID", "STATE", "CONTRIBUTORS", "SUBMITTED", "GRADE"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&exerciseFlag, "exercise", "", "Exercise id (default: current exercise)")
	cmd.Flags().StringVar(&stateFlag, "state", "", "Only list submissions in this state")
	return cmd
}

func newSubmissionShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [submission_id]",
		Short: "Show a submission and its feedback",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := a.current(ctx, store.SettingCurrentSubmission, args)
			if err != nil {
				return err
			}
			sub, ex, err := a.submission(ctx, id)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Exercise:     %s\n", ex.Name)
			fmt.Fprintf(&b, "State:        %s\n", model.FormatRank(sub.State))
			fmt.Fprintf(&b, "Contributors: %s\n", a.contributors(ctx, sub))
			fmt.Fprintf(&b, "Content:      %s\n", sub.Content)
			fmt.Fprintf(&b, "Submitted:    %s\n", ui.FormatTime(sub.SubmittedAt, a.loc))
			if sub.ExtendedTo != nil {
				fmt.Fprintf(&b, "Extended to:  %s\n", ui.FormatTime(sub.ExtendedTo, a.loc))
			}
			if sub.GradedAt != nil {
				fmt.Fprintf(&b, "Graded:       %s (%s)\n", ui.FormatTime(sub.GradedAt, a.loc), gradeText(sub.Grade))
			}
			if sub.TestResultFile != "" {
				fmt.Fprintf(&b, "Test result:  %s\n", sub.TestResultFile)
			}
			if sub.CommentFile != "" {
				fmt.Fprintf(&b, "Comment:      %s\n", sub.CommentFile)
			}
			a.console.Panel(fmt.Sprintf("Submission %d", sub.ID), b.String())

			if sub.FeedbackFile != "" {
				resp, err := feedback.Read(sub.FeedbackFile)
				if err != nil {
					a.console.Warn("Feedback: %v", err)
					return nil
				}
				a.console.Markdown(resp.Review)
				if l := resp.Letter(); l != "" {
					a.console.Info("Assessment: %s", l)
				}
			}
			return nil
		},
	}
}

func newSubmissionGradeCmd(a *app) *cobra.Command {
	var ignore string
	cmd := &cobra.Command{
		Use:   "grade [submission_id]",
		Short: "Run the next grading phases of a submission",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := a.current(ctx, store.SettingCurrentSubmission, args)
			if err != nil {
				return err
			}
			sub, ex, err := a.submission(ctx, id)
			if err != nil {
				return err
			}
			if err := a.remember(ctx, store.SettingCurrentSubmission, id); err != nil {
				return err
			}
			re, err := compileIgnore(ignore)
			if err != nil {
				return err
			}
			d, err := a.driver(ctx, re)
			if err != nil {
				return err
			}
			a.console.Panel(fmt.Sprintf("Submission %d", sub.ID), a.contributors(ctx, sub))
			return d.Advance(ctx, ex, sub)
		},
	}
	cmd.Flags().StringVar(&ignore, "ignore", "", "Regular expression of paths to leave out of the evaluation")
	return cmd
}

func newSubmissionResetCmd(a *app) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "reset <submission_id> <state>",
		Short: "Move a submission back to an earlier state",
		Long: "Moves a submission back to an earlier state and forgets the artifacts of the\n" +
			"undone phases. Files stay on disk unless --purge is given.\n\n" +
			"States: " + strings.Join(stateNames(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			target, err := model.ParseSubmissionState(args[1])
			if err != nil {
				return err
			}
			sub, ex, err := a.submission(ctx, id)
			if err != nil {
				return err
			}
			d, err := a.driver(ctx, nil)
			if err != nil {
				return err
			}
			return d.Reset(ctx, ex, sub, target, purge)
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the files of the undone phases")
	return cmd
}

func newSubmissionFilesCmd(a *app) *cobra.Command {
	var ignore string
	cmd := &cobra.Command{
		Use:   "files [submission_id]",
		Short: "Show the checkout of a submission with each file's classification",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := a.current(ctx, store.SettingCurrentSubmission, args)
			if err != nil {
				return err
			}
			sub, ex, err := a.submission(ctx, id)
			if err != nil {
				return err
			}
			if !ex.SupportsCheckout() {
				return fmt.Errorf("exercise %d: %w", ex.ID, model.ErrUnsupportedExercise)
			}
			dir := ex.SubmissionDir(sub.ID)
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("submission %d is not checked out: %w", sub.ID, err)
			}
			re, err := compileIgnore(ignore)
			if err != nil {
				return err
			}
			states, err := classify.New(a.logger).Classify(dir, ex.BaselineDir(), classify.Options{Cutoff: sub.SubmittedAt, Ignore: re})
			if err != nil {
				return err
			}
			a.console.Info("Files of submission %d located at '%s'", sub.ID, dir)
			a.console.Info("%s", ui.FileTree(states))
			return nil
		},
	}
	cmd.Flags().StringVar(&ignore, "ignore", "", "Regular expression of paths to classify as IGNORED")
	return cmd
}

func stateNames() []string {
	states := model.SubmissionStates()
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.String()
	}
	return out
}
