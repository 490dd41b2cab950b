package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/noah-isme/stem-dashboard-api/pkg/database"
)

func migrateCmd(load ConfigLoader) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.NewPostgres(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			version, err := database.MigrationVersion(ctx, db)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(writer(cmd), "schema at version %d\n", version)
			return err
		},
	}
}
