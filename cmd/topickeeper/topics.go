package topickeeper

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skaphos/topickeeper/internal/manifest"
)

// errNoTopic is returned by rename when HEAD is detached.
var errNoTopic = errors.New("there is no topic")

const noTopic = "(none)"

var flagSyncDetach bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Clone missing repositories and rebase the others on the remote HEAD",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdSync, args)
	},
}

var startCmd = &cobra.Command{
	Use:   "start <topic>",
	Short: "Start a topic branch in every repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdStart, args)
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch <topic>",
	Short: "Check out an existing topic branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdSwitch, args)
	},
}

var endCmd = &cobra.Command{
	Use:   "end <topic>",
	Short: "Leave and delete a topic branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdEnd, args)
	},
}

var rebaseCmd = &cobra.Command{
	Use:   "rebase <topic>",
	Short: "Rebase the current state onto another local topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdRebase, args)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <topic>",
	Short: "Rename the current topic branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdRename, args)
	},
}

var stashCmd = &cobra.Command{
	Use:   "stash",
	Short: "Stash local modifications in every repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdStash, args)
	},
}

var popCmd = &cobra.Command{
	Use:   "pop",
	Short: "Pop the latest stash in every repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdPop, args)
	},
}

func init() {
	syncCmd.Flags().BoolVarP(&flagSyncDetach, "detach", "d", false, "detach HEAD instead of rebasing")
	rootCmd.AddCommand(syncCmd, startCmd, switchCmd, endCmd, rebaseCmd, renameCmd, stashCmd, popCmd)
}

func runSync(ctx context.Context, ws *workspace, e manifest.Entry) error {
	if _, err := os.Stat(filepath.Join(e.Path, ".git")); os.IsNotExist(err) {
		ws.printf("Cloning from %s", e.URL)
		if err := ws.adapter.Clone(ctx, e.Path, e.URL); err != nil {
			return err
		}
		branch, err := ws.adapter.CurrentBranch(ctx, e.Path)
		if err != nil {
			return err
		}
		if err := ws.adapter.Checkout(ctx, e.Path, "HEAD", true); err != nil {
			return err
		}
		if branch == "" {
			return nil
		}
		return ws.adapter.DeleteBranch(ctx, e.Path, branch)
	} else if err != nil {
		return err
	}

	ws.printf("Syncing from %s", e.URL)
	remote, err := ws.remote(ctx, e)
	if err != nil {
		return err
	}
	if err := ws.adapter.Fetch(ctx, e.Path, remote, "HEAD"); err != nil {
		return err
	}
	if flagSyncDetach {
		return ws.adapter.Checkout(ctx, e.Path, "FETCH_HEAD", true)
	}
	return ws.rebase(ctx, e.Path, "FETCH_HEAD", true)
}

func currentTopic(ctx context.Context, ws *workspace, dir string) (string, error) {
	branch, err := ws.adapter.CurrentBranch(ctx, dir)
	if err != nil {
		return "", err
	}
	if branch == "" {
		return noTopic, nil
	}
	return branch, nil
}

func runStart(ctx context.Context, ws *workspace, e manifest.Entry) error {
	from, err := currentTopic(ctx, ws, e.Path)
	if err != nil {
		return err
	}
	ws.printf("Creating new topic: %s -> %s", from, ws.args[0])
	return ws.adapter.CreateBranch(ctx, e.Path, ws.args[0])
}

func runSwitch(ctx context.Context, ws *workspace, e manifest.Entry) error {
	from, err := currentTopic(ctx, ws, e.Path)
	if err != nil {
		return err
	}
	ws.printf("Switching topic: %s -> %s", from, ws.args[0])
	return ws.adapter.Checkout(ctx, e.Path, ws.args[0], false)
}

func runEnd(ctx context.Context, ws *workspace, e manifest.Entry) error {
	topic := ws.args[0]
	branch, err := ws.adapter.CurrentBranch(ctx, e.Path)
	if err != nil {
		return err
	}
	if branch == topic {
		ws.printf("Detaching HEAD")
		remote, err := ws.remote(ctx, e)
		if err != nil {
			return err
		}
		if err := ws.adapter.Fetch(ctx, e.Path, remote, "HEAD"); err != nil {
			return err
		}
		if err := ws.adapter.Checkout(ctx, e.Path, "FETCH_HEAD", true); err != nil {
			return err
		}
	}
	ws.printf("Deleting topic %s", topic)
	return ws.adapter.DeleteBranch(ctx, e.Path, topic)
}

func runRebase(ctx context.Context, ws *workspace, e manifest.Entry) error {
	ws.printf("Rebasing current state on %s", ws.args[0])
	return ws.rebase(ctx, e.Path, ws.args[0], false)
}

func runRename(ctx context.Context, ws *workspace, e manifest.Entry) error {
	branch, err := ws.adapter.CurrentBranch(ctx, e.Path)
	if err != nil {
		return err
	}
	if branch == "" {
		return errNoTopic
	}
	ws.printf("Renaming topic: %s -> %s", branch, ws.args[0])
	return ws.adapter.RenameBranch(ctx, e.Path, ws.args[0])
}

func runStash(ctx context.Context, ws *workspace, e manifest.Entry) error {
	ws.printf("Stashing content")
	return ws.adapter.StashPush(ctx, e.Path)
}

func runPop(ctx context.Context, ws *workspace, e manifest.Entry) error {
	ws.printf("Retrieving stashed content")
	entries, err := ws.adapter.StashList(ctx, e.Path)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ws.warnf("No content to retrieve")
		return nil
	}
	return ws.adapter.StashPop(ctx, e.Path)
}
