package topickeeper

import (
	"github.com/spf13/cobra"

	"github.com/skaphos/topickeeper/internal/cliio"
	"github.com/skaphos/topickeeper/internal/config"
	"github.com/skaphos/topickeeper/internal/pushlog"
)

var flagHistoryNoHeaders bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the last pushed commit per change",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&flagHistoryNoHeaders, "no-headers", false, "omit the header row")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	root, err := workDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ResolveConfigPath(flagConfig, root)
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}
	store, err := pushlog.Open(root, cfg.Defaults.HistoryDriver)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Records(cmd.Context())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Project, r.ChangeID, r.Commit})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), false, flagHistoryNoHeaders, []string{"PROJECT", "CHANGE-ID", "LAST PUSHED"}, rows)
}
