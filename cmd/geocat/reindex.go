package main

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/config"
)

var (
	reindexDryRun bool
	reindexYes    bool
	reindexUUIDs  []string
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index rows of every resource",
	Long: `Serialize each resource's metadata instance and rewrite its full-text
index rows. Use --uuid to restrict the run to specific resources and
--dry-run to only report what would be reindexed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		st, err := buildStack(cfg, db, logger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		ids, err := resolveReindexIDs(ctx, st, reindexUUIDs)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No resources to reindex")
			return nil
		}

		if !reindexDryRun && !reindexYes {
			confirmed := false
			prompt := &survey.Confirm{
				Message: fmt.Sprintf("Reindex %d resource(s)?", len(ids)),
			}
			if err := survey.AskOne(prompt, &confirmed); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted")
				return nil
			}
		}

		succeeded, failed := 0, 0
		for _, id := range ids {
			if err := reindexOne(ctx, st, cfg, id); err != nil {
				failed++
				logger.Error("reindex failed", zap.Int64("resource", id), zap.Error(err))
				continue
			}
			succeeded++
			logger.Info("reindexed", zap.Int64("resource", id), zap.Bool("dry_run", reindexDryRun))
		}

		verb := "Reindexed"
		if reindexDryRun {
			verb = "Would reindex"
		}
		fmt.Printf("%s %d resource(s), %d failure(s)\n", verb, succeeded, failed)
		if failed > 0 {
			return fmt.Errorf("%d resource(s) failed to reindex", failed)
		}
		return nil
	},
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexDryRun, "dry-run", false, "serialize but do not write index rows")
	reindexCmd.Flags().BoolVarP(&reindexYes, "yes", "y", false, "skip the confirmation prompt")
	reindexCmd.Flags().StringArrayVar(&reindexUUIDs, "uuid", nil, "only reindex the resources with these uuids (repeatable)")
}

// resolveReindexIDs turns the uuid allow-list into primary keys, or lists
// every resource when no allow-list is given.
func resolveReindexIDs(ctx context.Context, st *stack, uuids []string) ([]int64, error) {
	if len(uuids) == 0 {
		return st.resources.ListIDs(ctx)
	}

	ids := make([]int64, 0, len(uuids))
	for _, raw := range uuids {
		uid, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", raw, err)
		}
		res, err := st.resources.GetByUUID(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", uid, err)
		}
		ids = append(ids, res.ID)
	}
	return ids, nil
}

func reindexOne(ctx context.Context, st *stack, cfg *config.Config, id int64) error {
	res, err := st.resources.Get(ctx, id)
	if err != nil {
		return err
	}

	instance, errs, err := st.manager.BuildInstance(ctx, res, cfg.DefaultLanguage)
	if err != nil {
		return err
	}
	if !errs.Empty() {
		// Partial serializations still index whatever was readable.
		for _, msg := range errs.At() {
			fmt.Printf("  resource %d: %s\n", id, msg)
		}
	}

	if reindexDryRun {
		return nil
	}
	return st.indexer.UpdateIndex(ctx, id, instance)
}
