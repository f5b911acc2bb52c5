package topickeeper

import (
	"context"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/skaphos/topickeeper/internal/manifest"
	"github.com/skaphos/topickeeper/internal/vcs"
)

var forallCmd = &cobra.Command{
	Use:   "forall <command-line>",
	Short: "Run a command in every repository",
	Example: `  topickeeper forall 'git log -1 --oneline'
  topickeeper forall -- make test`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
			return err
		}
		_, err := splitCommandLine(args)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdForall, args)
	},
}

func init() {
	rootCmd.AddCommand(forallCmd)
}

// splitCommandLine joins the arguments and splits them shell-style, so a
// quoted single argument and unquoted words behave the same.
func splitCommandLine(args []string) ([]string, error) {
	argv, err := shlex.Split(strings.Join(args, " "))
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, vcs.ErrEmptyCommand
	}
	return argv, nil
}

func runForall(ctx context.Context, ws *workspace, e manifest.Entry) error {
	argv, err := splitCommandLine(ws.args)
	if err != nil {
		return err
	}
	ws.printf("Running command")
	return vcs.RunCommand(ctx, e.Path, ws.out, ws.cmd.ErrOrStderr(), argv)
}
