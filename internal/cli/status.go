package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/client"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the health of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := statusURL
		if url == "" && os.Getenv("MNEMO_URL") == "" {
			if cfg, err := loadConfig(); err == nil {
				url = "http://" + cfg.ListenAddr()
			}
		}
		h, err := client.New(url).Health()
		if err != nil {
			return printError(cmd.OutOrStdout(), err)
		}
		return printJSON(cmd.OutOrStdout(), h)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "Server URL (default from MNEMO_URL or config)")
}
