package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/totegamma/caselaw-dupcheck/internal/config"
	"github.com/totegamma/caselaw-dupcheck/internal/infra/database"
)

var withAttributeStore bool

func init() {
	migrateCmd.Flags().BoolVar(&withAttributeStore, "attribute-store", false, "also create the documentation unit tables (development only)")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the relation and run tables",
	Long: `Create or update the tables owned by dupcheck.

The documentation unit tables belong to the editing application. Pass
--attribute-store to create them as well for local development and tests.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		return err
	}
	db = db.WithContext(ctx)

	if withAttributeStore {
		if err := database.MigrateAttributeStore(db); err != nil {
			return err
		}
		cmd.Println("attribute store migrated")
	}
	if err := database.MigratePostgres(db); err != nil {
		return err
	}
	cmd.Println("relation tables migrated")
	return nil
}
