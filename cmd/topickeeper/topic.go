package topickeeper

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skaphos/topickeeper/internal/cliio"
	"github.com/skaphos/topickeeper/internal/engine"
	"github.com/skaphos/topickeeper/internal/manifest"
	"github.com/skaphos/topickeeper/internal/model"
	"github.com/skaphos/topickeeper/internal/strutil"
	"github.com/skaphos/topickeeper/internal/termstyle"
	"github.com/skaphos/topickeeper/internal/vcs"
)

// headReader is overridable in tests.
var headReader interface {
	Head(ctx context.Context, dir string) (model.Head, error)
} = vcs.NewInspector()

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Show the current topic of every repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, CmdTopic, args)
	},
}

func init() {
	rootCmd.AddCommand(topicCmd)
}

// runTopic reads every HEAD, then prints one topic when they agree or a
// table with the majority topic in green and the outliers in red.
func runTopic(ctx context.Context, ws *workspace, set *manifest.Set) ([]engine.RepoResult, error) {
	results := make([]engine.RepoResult, 0, set.Len())
	topics := make([]string, 0, set.Len())
	failed := false
	for _, e := range set.Entries {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %w", engine.ErrInterrupted, err)
		}
		res := engine.RepoResult{Name: e.Name, Path: e.Path}
		head, err := headReader.Head(ctx, e.Path)
		if err != nil {
			res.Err = err
			failed = true
			ws.onComplete(res)
		}
		topic := head.Branch
		if head.Detached || topic == "" {
			topic = noTopic
		}
		topics = append(topics, topic)
		results = append(results, res)
	}
	if failed {
		return results, nil
	}

	distinct := map[string]struct{}{}
	for _, t := range topics {
		distinct[t] = struct{}{}
	}
	if len(distinct) == 1 {
		ws.printf("%s", termstyle.Plain(colorOutputEnabled, topics[0], termstyle.Healthy))
		return results, nil
	}
	majority := strutil.MostCommon(topics)
	rows := make([][]string, 0, len(topics))
	for i, e := range set.Entries {
		rows = append(rows, []string{e.Name, termstyle.Verdict(colorOutputEnabled, topics[i] == majority, topics[i])})
	}
	return results, cliio.WriteTable(ws.out, colorOutputEnabled, false, []string{"REPO", "TOPIC"}, rows)
}
