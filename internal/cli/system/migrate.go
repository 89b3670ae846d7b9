package system

import (
	"fmt"

	"github.com/thomasluizon/orbit-api-sub001/internal/cli"
)

// MigrateCmd creates the database if needed and applies pending migrations.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	store, err := cli.NewStore(ctx.Config.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	current, latest, err := store.SchemaStatus()
	if err != nil {
		return err
	}
	fmt.Printf("Database at %s is at schema version %d (latest %d).\n", store.GetConfigPath(), current, latest)
	return nil
}
