package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/logging"
	"github.com/lazypower/mnemo/internal/memerr"
)

var (
	configPath string
	rootDir    string
)

var rootCmd = &cobra.Command{
	Use:           "mnemo",
	Short:         "Durable personal memory store",
	Long:          "mnemo keeps entities, relations, chat transcripts and facts in markdown files indexed by SQLite, with full-text search and periodic curation.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Storage root (overrides config and MNEMO_ROOT)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(relateCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(abilityCmd)
	rootCmd.AddCommand(permissionCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(maintainCmd)
}

// loadConfig reads the config file and applies the --root override.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if rootDir != "" {
		cfg.Root = rootDir
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *logrus.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

// openEngine is a helper that opens the storage root for CLI commands.
// Only bootstrap callers create the layout and schema.
func openEngine(bootstrap bool) (*engine.Engine, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, fmt.Errorf("load config: %w", err)
	}
	eng, err := engine.Open(cfg, newLogger(cfg), bootstrap)
	if errors.Is(err, memerr.ErrSchemaMissing) {
		return nil, cfg, fmt.Errorf("%w: run `mnemo init` first", err)
	}
	if err != nil {
		return nil, cfg, err
	}
	return eng, cfg, nil
}

// engineFunc is one CLI operation against an opened engine. Its result is
// printed as JSON.
type engineFunc func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error)

// withEngine adapts fn to a cobra RunE: it opens the engine, runs fn and
// prints either the result or an error result.
func withEngine(bootstrap bool, fn engineFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, cfg, err := openEngine(bootstrap)
		if err != nil {
			return printError(cmd.OutOrStdout(), err)
		}
		defer eng.Close()

		res, err := fn(cmd.Context(), eng, cfg, args)
		if err != nil {
			return printError(cmd.OutOrStdout(), err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError writes err as an error result and returns it so the process
// exits non-zero.
func printError(w io.Writer, err error) error {
	printJSON(w, map[string]string{
		"status":  engine.StatusError,
		"kind":    memerr.Kind(err),
		"message": err.Error(),
	})
	return err
}

// readContent returns inline content, or the contents of file when set
// ("-" reads stdin).
func readContent(inline, file string) (string, error) {
	if file == "" {
		return inline, nil
	}
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}
