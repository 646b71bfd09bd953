package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Overridden with -ldflags "-X github.com/lazypower/mnemo/internal/cli.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func buildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionShort {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), VersionString())
			return err
		}
		return printJSON(cmd.OutOrStdout(), buildInfo())
	},
}

// VersionString is the version reported by the server's health endpoint.
func VersionString() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version and commit")
}
