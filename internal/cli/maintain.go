package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/client"
	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
)

var (
	maintainRepair bool
	maintainURL    string
	maintainLimit  int
)

var maintainLocal = withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
	if maintainRepair {
		if _, err := eng.RepairGraph(ctx); err != nil {
			return nil, err
		}
	}
	return eng.Maintain(ctx)
})

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run one maintenance pass now",
	Long:  "Evict stale low-importance records, reinforce accessed ones, rebuild the search index from the stored files and log the run. With --repair, first remove relations whose endpoints no longer exist. With --url, the pass runs inside that server instead of this process.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if maintainURL == "" {
			return maintainLocal(cmd, args)
		}
		res, err := client.New(maintainURL).Maintain(maintainRepair)
		if err != nil {
			return printError(cmd.OutOrStdout(), err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var maintainLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent maintenance runs",
	Args:  cobra.NoArgs,
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		logs, err := eng.MaintenanceLogs(ctx, maintainLimit)
		if err != nil {
			return nil, err
		}
		res := map[string]any{
			"count": len(logs),
			"runs":  logs,
		}
		if cfg.Maintenance.Cron != "" {
			res["schedule"] = cfg.Maintenance.Cron
		}
		return res, nil
	}),
}

func init() {
	maintainCmd.Flags().BoolVar(&maintainRepair, "repair", false, "Remove dangling relations before the pass")
	maintainCmd.Flags().StringVar(&maintainURL, "url", "", "Run the pass on a running server instead of locally")
	maintainLogCmd.Flags().IntVarP(&maintainLimit, "limit", "n", 10, "Number of runs to show")
	maintainCmd.AddCommand(maintainLogCmd)
}
