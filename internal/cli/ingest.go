package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/noah-isme/stem-dashboard-api/internal/server"
	"github.com/noah-isme/stem-dashboard-api/internal/service"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
	"github.com/noah-isme/stem-dashboard-api/pkg/database"
	"github.com/noah-isme/stem-dashboard-api/pkg/logger"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

// exitRejected is the exit status when a file had row errors.
const exitRejected = 2

type ingestor interface {
	Ingest(ctx context.Context, upload service.Upload) (*service.IngestionResult, error)
}

func ingestCmd(load ConfigLoader) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Validate and store a student or enrollment export",
		ArgsUsage: "FILE",
		Description: `Runs the same pipeline as POST /uploads against the configured database
and prints the result as JSON. Exits with status 2 when the file has errors.

  stemctl ingest --kind csv students.csv
  stemctl ingest export.xlsx`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "csv or spreadsheet (inferred from the extension when omitted)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			upload, err := readUpload(cmd)
			if err != nil {
				return err
			}

			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			svc, closeFn, err := openIngestion(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			return runIngest(ctx, writer(cmd), svc, upload)
		},
	}
}

func readUpload(cmd *cli.Command) (service.Upload, error) {
	if cmd.NArg() != 1 {
		return service.Upload{}, cli.Exit("ingest needs exactly one FILE argument", 1)
	}
	path := cmd.Args().First()

	raw := cmd.String("kind")
	if raw == "" {
		raw = filepath.Ext(path)
	}
	kind, ok := tabular.ParseKind(raw)
	if !ok {
		return service.Upload{}, cli.Exit(fmt.Sprintf("cannot tell the kind of %s; pass --kind csv|spreadsheet", path), 1)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return service.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return service.Upload{Kind: kind, Payload: payload, Filename: filepath.Base(path)}, nil
}

func openIngestion(cfg *config.Config) (ingestor, func(), error) {
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	svc := server.NewIngestionService(db, nil, nil, cfg.Ingestion, logr)
	return svc, func() {
		_ = db.Close()
		_ = logr.Sync()
	}, nil
}

func runIngest(ctx context.Context, out io.Writer, svc ingestor, upload service.Upload) error {
	result, err := svc.Ingest(ctx, upload)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Committed() {
		return cli.Exit(fmt.Sprintf("%s rejected with %d errors", upload.Filename, len(result.Report)), exitRejected)
	}
	return nil
}
