package topickeeper

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skaphos/topickeeper/internal/gerrit"
	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/manifest"
	"github.com/skaphos/topickeeper/internal/reconcile"
	"github.com/skaphos/topickeeper/internal/review"
)

var (
	flagPushTopic      string
	flagPushBranch     string
	flagPullBranch     string
	flagDownloadDetach bool
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push HEAD of every repository for review",
	Args:  cobra.NoArgs,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if flagPushTopic == "" {
			return nil
		}
		return gerrit.ValidateTopic(flagPushTopic)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdPush, args)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Check out the current patch set of every change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdPull, args)
	},
}

var downloadCmd = &cobra.Command{
	Use:     "download <repo> <change>/<patchset>",
	Short:   "Download a patch set and rebase on it",
	Example: "  topickeeper download tools/build 4512/3",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(2)(cmd, args); err != nil {
			return err
		}
		_, err := gerrit.PatchRef(args[1])
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdDownload, args)
	},
}

func init() {
	pushCmd.Flags().StringVar(&flagPushTopic, "topic", "", "topic for the pushed changes")
	pushCmd.Flags().StringVar(&flagPushBranch, "branch", "", "review target branch (default from config)")
	pullCmd.Flags().StringVar(&flagPullBranch, "branch", "", "review target branch (default from config)")
	downloadCmd.Flags().BoolVarP(&flagDownloadDetach, "detach", "d", false, "detach HEAD instead of rebasing")
	rootCmd.AddCommand(pushCmd, pullCmd, downloadCmd)
}

func runPush(ctx context.Context, ws *workspace, e manifest.Entry) error {
	res, err := ws.machine.Push(ctx, e.Path, e.URL, review.PushOptions{Topic: flagPushTopic, Branch: flagPushBranch})
	switch {
	case err != nil:
		return err
	case res.Outcome == review.PushNoOp && res.TopicUpdated:
		ws.printf("No new changes, topic set to %s", res.Topic)
	case res.Outcome == review.PushNoOp:
		ws.warnf("No new changes")
	case res.Topic != "":
		ws.printf("Pushed %s to %s (topic %s)", shortHash(res.Commit), res.Project, res.Topic)
	default:
		ws.printf("Pushed %s to %s", shortHash(res.Commit), res.Project)
	}
	return nil
}

func runPull(ctx context.Context, ws *workspace, e manifest.Entry) error {
	res, err := ws.machine.Pull(ctx, e.Path, e.URL, review.PullOptions{Branch: flagPullBranch})
	if err != nil {
		return err
	}
	switch res.Outcome {
	case review.PullNoRemote:
		ws.warnf("No remote patch")
	case review.PullUpToDate:
		ws.printf("Already up-to-date.")
	case review.PullAhead:
		ws.printf("You are ahead of Gerrit.")
	case review.PullPulled:
		ws.printf("Pulled %s from %s", shortHash(res.Commit), e.URL)
	}
	return nil
}

func runDownload(ctx context.Context, ws *workspace, e manifest.Entry) error {
	project, patch := ws.args[0], ws.args[1]
	if gitx.ProjectFromURL(e.URL) != project {
		ws.printf("Skipped")
		return nil
	}
	ref, err := gerrit.PatchRef(patch)
	if err != nil {
		return err
	}
	ws.printf("Downloading patch %s from %s", patch, e.URL)
	remote, err := ws.remote(ctx, e)
	if err != nil {
		return err
	}
	if err := ws.adapter.Fetch(ctx, e.Path, remote, ref); err != nil {
		return err
	}
	if flagDownloadDetach {
		return ws.adapter.Checkout(ctx, e.Path, "FETCH_HEAD", true)
	}
	return ws.rebase(ctx, e.Path, "FETCH_HEAD", false)
}

const conflictQuestion = "You may have merge conflicts. Fix them and press enter, or enter 'abort' now to quit: "

// conflictPrompt asks the operator to fix a paused cherry-pick. An empty line
// continues and "abort" or end of input aborts. Anything else asks again.
func conflictPrompt(ws *workspace) reconcile.Resolver {
	return reconcile.ResolverFunc(func(ctx context.Context, c reconcile.Conflict) (reconcile.Resolution, error) {
		if err := ctx.Err(); err != nil {
			return reconcile.ResolutionAbort, err
		}
		ws.warnf("Cherry-pick of %s stopped: %v", shortHash(c.Commit.Hash), c.Err)
		for {
			line, err := ws.prompt.Line(conflictQuestion)
			if errors.Is(err, io.EOF) {
				ws.printf("Aborting.")
				return reconcile.ResolutionAbort, nil
			}
			if err != nil {
				return reconcile.ResolutionAbort, err
			}
			switch strings.TrimSpace(line) {
			case "":
				return reconcile.ResolutionContinue, nil
			case "abort":
				ws.printf("Aborting.")
				return reconcile.ResolutionAbort, nil
			}
		}
	})
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
