package topickeeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skaphos/topickeeper/internal/cliio"
	"github.com/skaphos/topickeeper/internal/config"
	"github.com/skaphos/topickeeper/internal/engine"
	"github.com/skaphos/topickeeper/internal/gerrit"
	"github.com/skaphos/topickeeper/internal/gitx"
	"github.com/skaphos/topickeeper/internal/manifest"
	"github.com/skaphos/topickeeper/internal/pushlog"
	"github.com/skaphos/topickeeper/internal/reconcile"
	"github.com/skaphos/topickeeper/internal/review"
	"github.com/skaphos/topickeeper/internal/strutil"
	"github.com/skaphos/topickeeper/internal/termstyle"
	"github.com/skaphos/topickeeper/internal/vcs"
)

var (
	// newAdapter is overridable in tests.
	newAdapter = func() vcs.Adapter { return vcs.NewGitAdapter(nil) }
	// newServer is overridable in tests.
	newServer = func(g config.Gerrit, cfg *config.Config, log zerolog.Logger) review.Server {
		return gerrit.New(g.URL, g.Username, g.Password,
			gerrit.WithTimeout(cfg.Timeout()), gerrit.WithLogger(log))
	}
	// workDir is overridable in tests.
	workDir = os.Getwd
)

// workspace is everything a command handler needs, built once per run.
type workspace struct {
	cmd        *cobra.Command
	out        io.Writer
	root       string
	args       []string
	cfg        *config.Config
	adapter    vcs.Adapter
	log        zerolog.Logger
	prompt     *cliio.Prompter
	reconciler *reconcile.Reconciler

	// Set only for commands that talk to Gerrit.
	history pushlog.Store
	machine *review.Machine
}

func newWorkspace(cmd *cobra.Command, args []string) (*workspace, error) {
	root, err := workDir()
	if err != nil {
		return nil, err
	}
	cfgPath, err := config.ResolveConfigPath(flagConfig, root)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}
	debugf(cmd, "config: %s", cfgPath)

	adapter := newAdapter()
	ws := &workspace{
		cmd:     cmd,
		out:     cmd.OutOrStdout(),
		root:    root,
		args:    args,
		cfg:     cfg,
		adapter: adapter,
		log:     logger,
		prompt:  cliio.NewPrompter(cmd.OutOrStdout(), stdin),
	}
	ws.reconciler = reconcile.New(adapter, reconcile.WithLogger(logger))
	return ws, nil
}

// openReview wires the Gerrit client, push history and state machine.
func (ws *workspace) openReview() error {
	g, err := ws.cfg.GerritFor(ws.root)
	if err != nil {
		return err
	}
	history, err := pushlog.Open(ws.root, ws.cfg.Defaults.HistoryDriver)
	if err != nil {
		return err
	}
	ws.history = history
	ws.machine = review.New(ws.adapter, newServer(g, ws.cfg, ws.log), history, ws.prompt, review.Config{
		RemoteName:      ws.cfg.Defaults.RemoteName,
		TargetBranch:    ws.cfg.Defaults.TargetBranch,
		CrossRepoPrefix: ws.cfg.Defaults.CrossRepoPrefix,
		FetchProtocol:   ws.cfg.Defaults.FetchProtocol,
	}, review.WithLogger(ws.log))
	return nil
}

func (ws *workspace) close() {
	if ws.history != nil {
		if err := ws.history.Close(); err != nil {
			ws.log.Warn().Err(err).Msg("close push history")
		}
	}
}

func (ws *workspace) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(ws.out, format+"\n", args...)
}

// remote returns the remote to fetch from: the configured or first remote,
// else the manifest URL.
func (ws *workspace) remote(ctx context.Context, entry manifest.Entry) (string, error) {
	remotes, err := ws.adapter.Remotes(ctx, entry.Path)
	if err != nil {
		return "", err
	}
	if r, ok := gitx.SelectRemote(remotes, ws.cfg.Defaults.RemoteName); ok {
		return r.Name, nil
	}
	if ws.cfg.Defaults.RemoteName != "" {
		return "", fmt.Errorf("%w: %s", review.ErrNoRemote, ws.cfg.Defaults.RemoteName)
	}
	return entry.URL, nil
}

// rebase reconciles the working copy onto target, prompting on conflicts.
func (ws *workspace) rebase(ctx context.Context, dir, target string, ignoreChangeIDs bool) error {
	run, err := ws.reconciler.Reconcile(ctx, dir, target, reconcile.Options{IgnoreChangeIDs: ignoreChangeIDs}, conflictPrompt(ws))
	if err != nil {
		return err
	}
	if n := len(run.Skipped()); n > 0 {
		debugf(ws.cmd, "skipped %d commit(s) already on %s", n, target)
	}
	return nil
}

func loadSet(cmd *cobra.Command, root string, keepInvalid bool) (*manifest.Set, error) {
	file := flagManifest
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	set, err := manifest.Load(file, root, manifest.Options{KeepInvalid: keepInvalid})
	if err != nil {
		return nil, err
	}
	for _, dir := range set.Skipped {
		infof(cmd, "%s", termstyle.Plain(colorOutputEnabled, fmt.Sprintf("Directory %s does not exist, skipped.", dir), termstyle.Warn))
	}
	return set.Select(strutil.SplitCSV(flagOnly))
}

// runCommand resolves the repository set and runs c over it. Errors returned
// here are fatal; per-repository failures only raise the exit code.
func runCommand(cmd *cobra.Command, c Command, args []string) error {
	spec := commandTable[c]
	ws, err := newWorkspace(cmd, args)
	if err != nil {
		return err
	}
	set, err := loadSet(cmd, ws.root, spec.keepInvalid)
	if err != nil {
		return err
	}
	if set.Len() == 0 {
		return engine.ErrNoRepositories
	}
	if spec.needsGerrit {
		if err := ws.openReview(); err != nil {
			return err
		}
	}
	defer ws.close()

	eng := engine.New(
		engine.WithLogger(ws.log.With().Str("command", spec.name).Logger()),
		engine.WithCallbacks(ws.onStart, ws.onComplete),
	)
	ctx := cmd.Context()
	var res *engine.Result
	if spec.set != nil {
		res, err = eng.RunSet(ctx, set, func(ctx context.Context, set *manifest.Set) ([]engine.RepoResult, error) {
			return spec.set(ctx, ws, set)
		})
	} else {
		res, err = eng.RunEach(ctx, set, func(ctx context.Context, entry manifest.Entry) error {
			return spec.repo(ctx, ws, entry)
		})
	}
	if errors.Is(err, engine.ErrInterrupted) {
		ws.printf("")
		ws.printf("%s", termstyle.Plain(colorOutputEnabled, "Program interrupted.", termstyle.Error))
		raiseExitCode(exitFailed)
		return nil
	}
	if err != nil {
		return err
	}
	ws.summarize(res)
	return nil
}

func (ws *workspace) onStart(entry manifest.Entry) {
	ws.printf("")
	ws.printf("%s", termstyle.Plain(colorOutputEnabled, "### "+entry.Name+" ###", termstyle.Info))
}

func (ws *workspace) onComplete(res engine.RepoResult) {
	if res.OK() {
		ws.printf("%s", termstyle.Plain(colorOutputEnabled, "Done", termstyle.Healthy))
		return
	}
	infof(ws.cmd, "%s", termstyle.Plain(colorOutputEnabled, fmt.Sprintf("[%s] %v", res.Name, res.Err), termstyle.Error))
}

func (ws *workspace) summarize(res *engine.Result) {
	ws.printf("")
	if res.OK() {
		ws.printf("%s", termstyle.Plain(colorOutputEnabled, "Execution successfully completed.", termstyle.Healthy))
		return
	}
	raiseExitCode(exitFailed)
	var rows [][]string
	for _, r := range res.Repos {
		if r.OK() {
			continue
		}
		rows = append(rows, []string{r.Name, termstyle.Colorize(colorOutputEnabled, r.ErrorClass, termstyle.Error), r.Path})
	}
	ws.printf("%s", termstyle.Plain(colorOutputEnabled, "The command failed in the following repos:", termstyle.Error))
	if err := cliio.WriteTable(ws.out, colorOutputEnabled, false, []string{"REPO", "CLASS", "PATH"}, rows); err != nil {
		ws.log.Warn().Err(err).Msg("write failure summary")
	}
}

func (ws *workspace) warnf(format string, args ...any) {
	infof(ws.cmd, "%s", termstyle.Plain(colorOutputEnabled, fmt.Sprintf(format, args...), termstyle.Warn))
}
