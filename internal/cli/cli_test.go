package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/noah-isme/stem-dashboard-api/internal/ingest"
	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/internal/service"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

func testConfig() (*config.Config, error) {
	return &config.Config{JWT: config.JWTConfig{Secret: "cli-secret", Issuer: "stem-dashboard", Expiration: time.Hour}}, nil
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := New(testConfig, out)
	root.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	err := root.Run(context.Background(), append([]string{name}, args...))
	return out.String(), err
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	out, err := runRoot(t, "token", "--role", "data_admin", "--email", "registrar@example.edu")
	require.NoError(t, err)

	token := strings.SplitN(out, "\n", 2)[0]
	cfg, _ := testConfig()
	claims, err := service.NewTokenService(cfg.JWT).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDataAdmin, claims.Role)
	assert.Equal(t, "registrar@example.edu", claims.Email)
	assert.Contains(t, out, "# expires ")
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	_, err := runRoot(t, "token", "--role", "root", "--email", "x@example.edu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestTokenCommandRequiresEmail(t *testing.T) {
	_, err := runRoot(t, "token")
	require.Error(t, err)
}

func TestReadUpload(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "students.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Unique_ID\nS01\n"), 0o600))
	oddPath := filepath.Join(dir, "export.dat")
	require.NoError(t, os.WriteFile(oddPath, []byte("x"), 0o600))

	var got service.Upload
	run := func(args ...string) error {
		probe := &cli.Command{
			Name:  "probe",
			Flags: []cli.Flag{&cli.StringFlag{Name: "kind"}},
			Action: func(_ context.Context, cmd *cli.Command) error {
				var err error
				got, err = readUpload(cmd)
				return err
			},
			ExitErrHandler: func(context.Context, *cli.Command, error) {},
		}
		return probe.Run(context.Background(), append([]string{"probe"}, args...))
	}

	require.NoError(t, run(csvPath))
	assert.Equal(t, tabular.KindCSV, got.Kind)
	assert.Equal(t, "students.csv", got.Filename)
	assert.Equal(t, []byte("Unique_ID\nS01\n"), got.Payload)

	require.NoError(t, run("--kind", "csv", oddPath))
	assert.Equal(t, tabular.KindCSV, got.Kind)

	assert.Error(t, run(oddPath))
	assert.Error(t, run())
}

type fakeIngestor struct {
	result *service.IngestionResult
	err    error
}

func (f fakeIngestor) Ingest(context.Context, service.Upload) (*service.IngestionResult, error) {
	return f.result, f.err
}

func TestRunIngestPrintsResult(t *testing.T) {
	out := &bytes.Buffer{}
	err := runIngest(context.Background(), out, fakeIngestor{result: &service.IngestionResult{
		Status: models.IngestionCommitted,
		Counts: models.IngestionCounts{StudentsCreated: 2},
	}}, service.Upload{Filename: "students.csv"})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "committed", decoded["status"])
}

func TestRunIngestRejectedExitsWithStatus(t *testing.T) {
	out := &bytes.Buffer{}
	err := runIngest(context.Background(), out, fakeIngestor{result: &service.IngestionResult{
		Status: models.IngestionRejected,
		Report: []ingest.ReportEntry{{ErrorMessage: "missing Unique_ID", LineNum: 2}},
	}}, service.Upload{Filename: "students.csv"})

	var exit cli.ExitCoder
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, exitRejected, exit.ExitCode())
	assert.Contains(t, out.String(), "missing Unique_ID")
}

func TestRunIngestPropagatesErrors(t *testing.T) {
	err := runIngest(context.Background(), &bytes.Buffer{}, fakeIngestor{err: errors.New("boom")}, service.Upload{})
	assert.EqualError(t, err, "boom")
}
