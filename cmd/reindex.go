package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/luxelabs/concierge/config"
	"github.com/luxelabs/concierge/internal/indexer"
	"github.com/luxelabs/concierge/internal/store"
	"github.com/luxelabs/concierge/internal/vectorindex/pinecone"
	"github.com/luxelabs/concierge/provider/nvidia"
)

// reindexCMD re-embeds the whole catalog and upserts every product
// vector, the same walk the in-server resync performs. Used for initial
// seeding and for repairing index drift offline.
func reindexCMD() *cobra.Command {
	var cfgPath string
	var reindex = &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the product vector index from the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			dsn, err := cfg.Databases.Postgres.DSN()
			if err != nil {
				return err
			}
			catalog, err := store.NewWithDSN(ctx, dsn)
			if err != nil {
				return err
			}
			embedder := nvidia.NewClient(cfg.Providers.Nvidia.APIKey, cfg.Providers.Nvidia.BaseURL,
				cfg.Providers.Nvidia.Model, cfg.Providers.Nvidia.Timeout)
			index := pinecone.NewClient(pinecone.Config{
				Host:    cfg.Vector.Pinecone.Host,
				APIKey:  cfg.Vector.Pinecone.APIKey,
				Timeout: cfg.Vector.Pinecone.Timeout,
			})

			logger := log.New(log.Writer(), "[REINDEX] ", log.LstdFlags)
			ix, err := indexer.New(embedder, index, catalog, nil, nil, "", 0, logger)
			if err != nil {
				return err
			}
			return ix.Resync(ctx)
		},
	}
	reindex.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return reindex
}
