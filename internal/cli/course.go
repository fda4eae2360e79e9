package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/oblig/internal/store"
	"github.com/me/oblig/internal/ui"
	"github.com/me/oblig/pkg/model"
)

func newCourseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Manage courses",
	}
	cmd.AddCommand(newCourseListCmd(a), newCourseAddCmd(a))
	return cmd
}

func newCourseListCmd(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var courses []*model.Course
			if remote {
				client, err := a.lms()
				if err != nil {
					return err
				}
				if courses, err = client.Courses(ctx); err != nil {
					return fmt.Errorf("list courses: %w", err)
				}
				model.SortCourses(courses)
			} else {
				st, err := a.store(ctx)
				if err != nil {
					return err
				}
				if courses, err = st.ListCourses(ctx); err != nil {
					return err
				}
			}
			if len(courses) == 0 {
				a.console.Info("No courses found.")
				return nil
			}

			current, _ := a.current(ctx, store.SettingCurrentCourse, nil)
			rows := make([][]string, 0, len(courses))
			for _, c := range courses {
				marker := ""
				if c.ID == current {
					marker = "*"
				}
				term := ""
				if c.Year != 0 {
					term = fmt.Sprintf("%d %s", c.Year, c.Semester)
				}
				rows = append(rows, []string{marker, strconv.FormatInt(c.ID, 10), c.Code, term, c.Description})
			}
			a.console.Table([]string{"", "ID", "CODE", "TERM", "DESCRIPTION"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "List the courses available on the LMS instead")
	return cmd
}

func newCourseAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <course_id>",
		Short: "Import a course and its students from the LMS and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
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

			course, err := client.Course(ctx, id)
			if err != nil {
				return fmt.Errorf("get course %d: %w", id, err)
			}
			res, err := st.UpsertCourse(ctx, course)
			if err != nil {
				return err
			}
			students, err := client.Students(ctx, id)
			if err != nil {
				return fmt.Errorf("list students: %w", err)
			}
			added := 0
			for _, s := range students {
				r, err := st.UpsertStudent(ctx, s)
				if err != nil {
					return err
				}
				if r == model.UpdateNew {
					added++
				}
				if err := st.Enroll(ctx, id, s.ID); err != nil {
					return err
				}
			}
			if err := a.remember(ctx, store.SettingCurrentCourse, id); err != nil {
				return err
			}

			a.logger.Info("course imported", "course_id", id, "result", res, "students", len(students))
			a.console.Success("Course %s %s: %s, %d students (%d new)",
				course.Label(), ui.ResultStyle(res).Render(res.String()), course.Description, len(students), added)
			return nil
		},
	}
}
