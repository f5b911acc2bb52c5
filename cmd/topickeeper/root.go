// Package topickeeper contains the Cobra command tree for the TopicKeeper CLI.
package topickeeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/skaphos/topickeeper/internal/termstyle"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 2
	exitFatal  = 3
)

var (
	// Global flags
	flagVerbose   int
	flagQuiet     bool
	flagConfig    string
	flagNoColor   bool
	flagManifest  string
	flagOnly      string
	flagLogFormat string
	// colorOutputEnabled is set per command execution based on TTY detection.
	colorOutputEnabled bool
	// exitCode tracks the highest severity observed during a command run.
	exitCode int
	// isTerminalFD is overridable in tests.
	isTerminalFD = term.IsTerminal
	// exitFunc is overridable in tests.
	exitFunc = os.Exit
	// stdin feeds prompts; overridable in tests.
	stdin io.Reader = os.Stdin
	// logger is rebuilt from the verbosity flags before each command.
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "topickeeper",
	Short:         "Gerrit topic workflow across many repositories",
	Long:          "TopicKeeper keeps topic branches, Gerrit changes and local push history consistent across the repositories listed in a manifest.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// `NO_COLOR` is a standard opt-out and should behave like --no-color.
		if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
			flagNoColor = true
		}
		colorOutputEnabled = shouldUseColorOutput(cmd)
		l, err := newLogger(cmd.ErrOrStderr(), flagLogFormat, flagVerbose, flagQuiet)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (repeatable)")
	fs.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-essential output")
	fs.StringVar(&flagConfig, "config", "", "override config file path")
	fs.BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	fs.StringVarP(&flagManifest, "manifest", "m", "manifest.txt", "manifest file")
	fs.StringVar(&flagOnly, "only", "", "comma-separated repository name or path globs")
	fs.StringVar(&flagLogFormat, "log-format", "console", "log format: console or json")
}

// Execute runs the root command and exits the process.
func Execute() {
	exitFunc(ExecuteWithExitCode())
}

// ExecuteWithExitCode runs the root command and returns a shell-friendly exit code.
func ExecuteWithExitCode() int {
	return executeArgs(context.Background(), os.Args[1:])
}

func executeArgs(parent context.Context, args []string) int {
	exitCode = exitOK
	colorOutputEnabled = false
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	rootCmd.SetArgs(args)
	setContext(rootCmd, ctx)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), termstyle.Plain(colorOutputEnabled, "Error: "+err.Error(), termstyle.Error))
		return exitFatal
	}
	return exitCode
}

// setContext hands ctx to every command in the tree. Cobra only fills in a
// subcommand context when it has none, which would keep a previous run's
// cancelled context around.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContext(sub, ctx)
	}
}

func raiseExitCode(code int) {
	// Keep the highest severity: 0 success, 2 failures, 3 fatal.
	if code > exitCode {
		exitCode = code
	}
}

func infof(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func debugf(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet || flagVerbose <= 0 {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func shouldUseColorOutput(cmd *cobra.Command) bool {
	if flagNoColor {
		return false
	}
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isTerminalFD(int(file.Fd()))
}

// newLogger maps -v counts to levels: none warn, one info, more debug.
func newLogger(w io.Writer, format string, verbose int, quiet bool) (zerolog.Logger, error) {
	if quiet {
		return zerolog.Nop(), nil
	}
	level := zerolog.WarnLevel
	switch {
	case verbose >= 2:
		level = zerolog.DebugLevel
	case verbose == 1:
		level = zerolog.InfoLevel
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, NoColor: !colorOutputEnabled, TimeFormat: "15:04:05"}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
