package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kc-steward.io/steward/internal/config"
	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/infrastructure"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/repository"
)

var (
	directoryFile    string
	directoryMigrate bool
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Load clusters and tags from a YAML directory file into PostgreSQL",
	Long: "Upserts every tag and cluster of the file and attaches the listed tags. " +
		"Existing rows not in the file are left alone.",
	RunE: runDirectory,
}

func init() {
	directoryCmd.Flags().StringVar(&directoryFile, "file", "directory.yaml", "Directory file to load")
	directoryCmd.Flags().BoolVar(&directoryMigrate, "migrate", true, "Apply schema migrations first")
	rootCmd.AddCommand(directoryCmd)
}

func runDirectory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	dir, err := repository.LoadFileDirectory(directoryFile)
	if err != nil {
		return err
	}

	if directoryMigrate {
		if err := infrastructure.Migrate(cfg.Database); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	ctx := cmd.Context()
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	logger.Info("Starting directory seeding...", zap.String("file", directoryFile))
	if err := repository.NewTxRunner(db.Pool).RunInTx(ctx, func(tx pgx.Tx) error {
		return seedDirectory(ctx, dir, repository.NewClusterRepository(tx))
	}); err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}
	logger.Info("Directory seeding completed successfully")
	return nil
}

// directoryWriter is the write side of the PostgreSQL directory.
type directoryWriter interface {
	UpsertTag(ctx context.Context, t domain.Tag) error
	UpsertCluster(ctx context.Context, c domain.Cluster) error
	AssignTags(ctx context.Context, clusterIDs, tagIDs []string) error
}

// seedDirectory copies tags first so cluster tag references resolve.
func seedDirectory(ctx context.Context, src *repository.FileDirectory, dst directoryWriter) error {
	tags, err := src.ListTags(ctx)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if err := dst.UpsertTag(ctx, t); err != nil {
			return err
		}
		logger.Info("Seeded tag", zap.String("tag", t.ID))
	}

	clusters, err := src.ListClusters(ctx)
	if err != nil {
		return err
	}
	for _, c := range clusters {
		if err := dst.UpsertCluster(ctx, c); err != nil {
			return err
		}
		if len(c.TagIDs) > 0 {
			if err := dst.AssignTags(ctx, []string{c.ID}, c.TagIDs); err != nil {
				return err
			}
		}
		logger.Info("Seeded cluster",
			zap.String("cluster", c.ID),
			zap.Strings("tags", c.TagIDs),
		)
	}
	return nil
}
