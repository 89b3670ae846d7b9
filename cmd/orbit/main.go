package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/thomasluizon/orbit-api-sub001/internal/cli"
	"github.com/thomasluizon/orbit-api-sub001/internal/cli/facts"
	"github.com/thomasluizon/orbit-api-sub001/internal/cli/habits"
	"github.com/thomasluizon/orbit-api-sub001/internal/cli/system"
	"github.com/thomasluizon/orbit-api-sub001/internal/cli/users"
	"github.com/thomasluizon/orbit-api-sub001/internal/config"
	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"string" default:"${config}" env:"ORBIT_CONFIG"`

	Serve   system.ServeCmd   `cmd:"" help:"Run the HTTP API."`
	Migrate system.MigrateCmd `cmd:"" help:"Create or upgrade the database schema."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Chat    system.ChatCmd    `cmd:"" help:"Launch the interactive chat client." default:"withargs"`
	User    users.UserCmd     `cmd:"" help:"Manage user accounts."`
	Habit   habits.HabitCmd   `cmd:"" help:"Manage habits and habit tracking."`
	Facts   facts.FactsCmd    `cmd:"" help:"Inspect what Orbit remembers about a user."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a secret in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show a masked secret from the OS keyring."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove a secret from the OS keyring."`
		Status system.KeyringStatusCmd `cmd:"" help:"Show which secrets are stored." default:"1"`
	} `cmd:"" help:"Manage secrets in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker with a chat assistant"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":  constants.Version,
			"config":   constants.DefaultConfigPath,
			"timezone": constants.DefaultTimezone,
		},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, apperrors.Format(err))
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Debug:  cfg.Logging.Debug,
		Dir:    cfg.Logging.Dir,
		Stderr: ctx.Command() == "serve",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	appCtx := &cli.Context{
		ConfigPath: config.ExpandHome(CLI.Config),
		Config:     cfg,
	}

	apperrors.Fatal(ctx.Run(appCtx))
}
