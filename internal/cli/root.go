package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagHome      string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagPlain     bool
)

// NewRootCmd creates the root cobra command for the oblig CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "oblig",
		Short: "oblig: grading workbench for programming exercises",
		Long: "oblig fetches submissions from the LMS, keeps them in a local database and walks\n" +
			"each one through download, testing, feedback, publishing and final grading.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagHome, "home", "", "oblig home directory (or OBLIG_HOME env, default ~/.oblig)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json); overrides log.format")
	root.PersistentFlags().BoolVar(&flagPlain, "plain", false, "Disable styled terminal output")

	root.AddCommand(
		newCourseCmd(a),
		newExerciseCmd(a),
		newSubmissionCmd(a),
		newConfigCmd(a),
	)

	return root
}
