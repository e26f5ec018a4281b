// Package main provides the standalone automation engine daemon.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/vaultpilot/automations/pkg/log"
)

const defaultPort = 9290

func main() {
	logger := log.WithModule("vault-automations")

	cmd := &cli.Command{
		Name:                  "vault-automations",
		Usage:                 "Run the trigger-action automation engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "state-file",
				Usage:   "Path to the persisted engine state file",
				Value:   "./automations/state.json",
				Sources: cli.EnvVars("STATE_FILE"),
			},
			&cli.StringFlag{
				Name:    "audit-log",
				Usage:   "Path to the append-only execution audit log",
				Value:   "./automations/audit.md",
				Sources: cli.EnvVars("AUDIT_LOG"),
			},
			&cli.StringFlag{
				Name:    "vault-root",
				Usage:   "Root directory notes are written beneath",
				Value:   ".",
				Sources: cli.EnvVars("VAULT_ROOT"),
			},
			&cli.StringSliceFlag{
				Name:    "definitions-dir",
				Aliases: []string{"d"},
				Usage:   "Directory of *.automation.md definition files (repeatable)",
				Sources: cli.EnvVars("DEFINITIONS_DIRS"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the management API on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing automation engine")

			return run(ctx, logger, command)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("Daemon failed", "error", err)
		os.Exit(1)
	}
}
