package main

import (
	"context"

	"trello-project/microservices/taskgraph-service/config"
	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/store/mongostore"

	"github.com/spf13/cobra"
)

func ensureIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the unique indexes in MongoDB and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			logging.InitLogger("", cfg.LogLevel)

			ctx := cmd.Context()
			client, err := mongostore.Connect(ctx, cfg.MongoURI)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			if err := mongostore.EnsureIndexes(ctx, client, cfg.MongoDBName); err != nil {
				return err
			}
			logging.Logger.Infof("Event ID: INDEXES_READY, Description: Unique indexes ensured on %s", cfg.MongoDBName)
			return nil
		},
	}
}
