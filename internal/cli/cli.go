// Package cli implements stemctl, the operator tool for the dashboard
// database.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/noah-isme/stem-dashboard-api/pkg/config"
)

const name = "stemctl"

// ConfigLoader supplies the configuration for commands that need it.
type ConfigLoader func() (*config.Config, error)

// New returns the root command. out receives command output.
func New(load ConfigLoader, out io.Writer) *cli.Command {
	if load == nil {
		load = config.Load
	}
	return &cli.Command{
		Name:                  name,
		Usage:                 "Manage the STEM dashboard database",
		EnableShellCompletion: true,
		Writer:                out,
		Commands: []*cli.Command{
			migrateCmd(load),
			ingestCmd(load),
			tokenCmd(load),
		},
	}
}

// Execute runs stemctl with the process arguments.
func Execute(ctx context.Context) error {
	return New(config.Load, os.Stdout).Run(ctx, os.Args)
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
