package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

// --- init command ---

var initSeed bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the storage layout and schema",
	Long:  "Create the directory layout and database schema under the storage root. Safe to run again. With --seed, store the configured default abilities and permissions.",
	Args:  cobra.NoArgs,
	RunE: withEngine(true, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		res := map[string]any{
			"status": engine.StatusCreated,
			"root":   cfg.Root,
			"db":     eng.DB.Path,
		}
		if initSeed {
			n, err := eng.Seed(ctx, cfg.Seed)
			if err != nil {
				return nil, err
			}
			res["seeded"] = n
		}
		return res, nil
	}),
}

// --- entity commands ---

var (
	entityName       string
	entityType       string
	entityContent    string
	entityFile       string
	entitySummary    string
	entityImportance float64
	entityReplace    bool

	// set in init; lets create tell an explicit score from the default
	entityImportanceFlag *pflag.Flag
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Create, update, read and delete entities",
}

var entityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an entity",
	Args:  cobra.NoArgs,
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		content, err := readContent(entityContent, entityFile)
		if err != nil {
			return nil, err
		}
		in := engine.EntityInput{
			Name:    entityName,
			Type:    entityType,
			Content: content,
			Summary: entitySummary,
		}
		if entityImportanceFlag.Changed {
			in.Importance = &entityImportance
		}
		return eng.CreateEntity(ctx, in)
	}),
}

var entityUpdateCmd = &cobra.Command{
	Use:   "update <entity-id>",
	Short: "Append to or replace an entity's content",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		content, err := readContent(entityContent, entityFile)
		if err != nil {
			return nil, err
		}
		return eng.UpdateEntity(ctx, args[0], content, !entityReplace)
	}),
}

var entityGetCmd = &cobra.Command{
	Use:   "get <entity-id>",
	Short: "Show an entity and its content",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		return eng.GetEntity(ctx, args[0])
	}),
}

var entityDeleteCmd = &cobra.Command{
	Use:   "delete <entity-id>",
	Short: "Delete an entity, its relations and its file",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		return eng.DeleteEntity(ctx, args[0])
	}),
}

var entityRelationsCmd = &cobra.Command{
	Use:   "relations <entity-id>",
	Short: "List an entity's outgoing and incoming relations",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		return eng.Relations(ctx, args[0])
	}),
}

// --- relate command ---

var relateStrength float64

var relateCmd = &cobra.Command{
	Use:   "relate <from-entity> <to-entity> <relation-type>",
	Short: "Create a directed relation between two entities",
	Args:  cobra.ExactArgs(3),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		return eng.CreateRelation(ctx, args[0], args[1], args[2], relateStrength)
	}),
}

// --- chat commands ---

var (
	chatID      string
	chatTitle   string
	chatURL     string
	chatContent string
	chatFile    string
	chatSummary string
	chatTools   []string
	chatTopics  []string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Store, read and delete chat transcripts",
}

var chatStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Store a chat transcript (replaces an existing chat with the same id)",
	Args:  cobra.NoArgs,
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		content, err := readContent(chatContent, chatFile)
		if err != nil {
			return nil, err
		}
		return eng.StoreChat(ctx, engine.ChatInput{
			ID:        chatID,
			URL:       chatURL,
			Title:     chatTitle,
			Content:   content,
			Summary:   chatSummary,
			ToolsUsed: chatTools,
			Topics:    chatTopics,
		})
	}),
}

var chatGetCmd = &cobra.Command{
	Use:   "get <chat-id>",
	Short: "Show a chat and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		return eng.GetChat(ctx, args[0])
	}),
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		return eng.DeleteChat(ctx, args[0])
	}),
}

// --- search command ---

var (
	searchLimit int
	searchTypes []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over chats and entities",
	Args:  cobra.MinimumNArgs(1),
	RunE: withEngine(false, func(ctx context.Context, eng *engine.Engine, cfg config.Config, args []string) (any, error) {
		query := strings.Join(args, " ")
		hits, err := eng.SearchMemory(ctx, query, engine.SearchOpts{
			ContentTypes: searchTypes,
			Limit:        searchLimit,
		})
		if err != nil {
			return nil, err
		}
		if hits == nil {
			hits = []store.SearchHit{}
		}
		return map[string]any{
			"query":   query,
			"count":   len(hits),
			"results": hits,
		}, nil
	}),
}

func init() {
	initCmd.Flags().BoolVar(&initSeed, "seed", false, "Store the configured default abilities and permissions")

	entityCreateCmd.Flags().StringVar(&entityName, "name", "", "Entity name")
	entityCreateCmd.Flags().StringVar(&entityType, "type", "", "Entity type (person, project, ...)")
	entityCreateCmd.Flags().StringVar(&entitySummary, "summary", "", "One-line summary")
	entityCreateCmd.Flags().Float64Var(&entityImportance, "importance", engine.DefaultImportance, "Importance score in [0,1]")
	entityImportanceFlag = entityCreateCmd.Flags().Lookup("importance")
	for _, c := range []*cobra.Command{entityCreateCmd, entityUpdateCmd} {
		c.Flags().StringVar(&entityContent, "content", "", "Content text")
		c.Flags().StringVarP(&entityFile, "file", "f", "", "Read content from file (- for stdin)")
	}
	entityUpdateCmd.Flags().BoolVar(&entityReplace, "replace", false, "Replace the content instead of appending")
	entityCmd.AddCommand(entityCreateCmd, entityUpdateCmd, entityGetCmd, entityDeleteCmd, entityRelationsCmd)

	relateCmd.Flags().Float64Var(&relateStrength, "strength", engine.DefaultStrength, "Relation strength in [0,1]")

	chatStoreCmd.Flags().StringVar(&chatID, "id", "", "Chat id")
	chatStoreCmd.Flags().StringVar(&chatTitle, "title", "", "Chat title")
	chatStoreCmd.Flags().StringVar(&chatURL, "url", "", "Chat URL")
	chatStoreCmd.Flags().StringVar(&chatContent, "content", "", "Transcript text")
	chatStoreCmd.Flags().StringVarP(&chatFile, "file", "f", "", "Read transcript from file (- for stdin)")
	chatStoreCmd.Flags().StringVar(&chatSummary, "summary", "", "Short summary")
	chatStoreCmd.Flags().StringSliceVar(&chatTools, "tools", nil, "Tools used (comma separated)")
	chatStoreCmd.Flags().StringSliceVar(&chatTopics, "topics", nil, "Topics (comma separated)")
	chatCmd.AddCommand(chatStoreCmd, chatGetCmd, chatDeleteCmd)

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum number of results")
	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "Restrict to content types (chat, entity)")
}
