// Package cmd wires CLI configuration and subcommands.
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/greeddj/msync/cmd/commands"

	"github.com/urfave/cli/v2"
)

var (
	// Version stores the version tag from build-time injection.
	Version = "dev"
	// Commit stores the git commit hash from build-time injection.
	Commit = "none"
	// Date stores the build date from build-time injection.
	Date = "unknown"
	// BuiltBy stores who built the binary.
	BuiltBy = "manual"
	// appName is the application name.
	appName = "msync"
)

// Run configures and executes the msync CLI application.
func Run() error {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		fmt.Println(cCtx.App.Version)
	}
	app := &cli.App{
		Name:                   appName,
		Suggest:                false,
		Usage:                  "bidirectional mail synchronization between a maildir and an IMAP account",
		UseShortOptionHandling: true,
		Version:                fmt.Sprintf("%s (commit: %s, built: %s by %s) // %s", Version, Commit, Date, BuiltBy, runtime.Version()),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "msync.yaml",
				Usage:   "path to configuration file (JSON or YAML)",
				EnvVars: []string{"MSYNC_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "prepare an account's sync directory and cache databases",
				ArgsUsage: "<account>",
				Action:    commands.Init,
			},
			{
				Name:      "show",
				Usage:     "show folders seen on the local and remote sides of an account",
				ArgsUsage: "<account>",
				Action:    commands.Show,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"V"},
						EnvVars: []string{"MSYNC_VERBOSE"},
					},
				},
			},
			{
				Name:      "sync",
				Usage:     "reconcile folders and envelopes between local and remote for an account",
				ArgsUsage: "<account>",
				Action:    commands.Sync,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "bounded parallelism within each reconciliation stage",
						EnvVars: []string{"MSYNC_WORKERS"},
					},
					&cli.BoolFlag{
						Name:    "dry-run",
						Aliases: []string{"n"},
						Usage:   "reconcile and report without applying any hunk",
						EnvVars: []string{"MSYNC_DRY_RUN"},
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"V"},
						EnvVars: []string{"MSYNC_VERBOSE"},
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						EnvVars: []string{"MSYNC_QUIET"},
					},
					&cli.BoolFlag{
						Name:    "confirm",
						Aliases: []string{"y", "yes"},
						Usage:   "auto-confirm (skip confirmation prompt)",
						EnvVars: []string{"MSYNC_CONFIRM"},
					},
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		return fmt.Errorf("app.Run: %w", err)
	}
	return nil
}
