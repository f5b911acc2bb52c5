package topickeeper

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skaphos/topickeeper/internal/discovery"
	"github.com/skaphos/topickeeper/internal/manifest"
	"github.com/skaphos/topickeeper/internal/strutil"
	"github.com/skaphos/topickeeper/internal/vcs"
)

// newRepoReader is overridable in tests.
var newRepoReader = func() discovery.RepoReader { return vcs.NewInspector() }

var (
	flagScanExclude        string
	flagScanFollowSymlinks bool
	flagScanWrite          bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Discover working copies and print manifest lines",
	Long:  "Walks root (default: the current directory) for git working copies and prints one manifest line per copy with a remote.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&flagScanExclude, "exclude", "", "comma-separated glob patterns to skip (added to the defaults)")
	scanCmd.Flags().BoolVar(&flagScanFollowSymlinks, "follow-symlinks", false, "descend into symlinked directories")
	scanCmd.Flags().BoolVarP(&flagScanWrite, "write", "w", false, "write the manifest file instead of printing")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	root, err := workDir()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		root, err = filepath.Abs(args[0])
		if err != nil {
			return err
		}
	}
	exclude := append(append([]string(nil), discovery.DefaultExclude...), strutil.SplitCSV(flagScanExclude)...)
	results, err := discovery.Scan(cmd.Context(), discovery.Options{
		Root:           root,
		Exclude:        exclude,
		FollowSymlinks: flagScanFollowSymlinks,
		RepoReader:     newRepoReader(),
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.RemoteURL == "" {
			infof(cmd, "%s has no remote, skipped", r.Path)
		}
	}

	out := cmd.OutOrStdout()
	var file *os.File
	if flagScanWrite {
		path := flagManifest
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		file, err = os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		out = file
	}
	entries, duplicates := discovery.ManifestEntries(root, results)
	for _, d := range duplicates {
		infof(cmd, "%s is another copy of %s, skipped", d.Path, d.RepoID)
	}
	for _, e := range entries {
		if _, err := fmt.Fprintln(out, manifest.FormatLine(root, e)); err != nil {
			return err
		}
	}
	debugf(cmd, "%d working copies found under %s", len(entries), root)
	if file != nil {
		return file.Close()
	}
	return nil
}
