package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/memerr"
)

var abilityCmd = &cobra.Command{
	Use:   "ability <label> <description>",
	Short: "Record an ability",
	Args:  cobra.ExactArgs(2),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		return eng.StoreAbility(ctx, args[0], args[1])
	}),
}

var permissionCmd = &cobra.Command{
	Use:   "permission <label> <details>",
	Short: "Record a granted permission",
	Args:  cobra.ExactArgs(2),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		return eng.StorePermission(ctx, args[0], args[1])
	}),
}

var contextRecent int

var contextCmd = &cobra.Command{
	Use:   "context [label value]",
	Short: "Record a context entry, or show the session context",
	Long:  "With a label and value, store a context entry. With no arguments, print abilities, permissions, context entries and the most recently updated entities.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("%w: context takes no arguments or a label and a value", memerr.ErrValidation)
		}
		return nil
	},
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		if len(args) == 2 {
			return eng.StoreContext(ctx, args[0], args[1])
		}
		return eng.LoadContext(ctx, contextRecent)
	}),
}

var factsCmd = &cobra.Command{
	Use:   "facts <category>",
	Short: "List the facts stored under a category",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		facts, err := eng.Facts(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"category": args[0],
			"count":    len(facts),
			"facts":    facts,
		}, nil
	}),
}

func init() {
	contextCmd.Flags().IntVar(&contextRecent, "recent", 10, "Number of recent entities to include")
}
