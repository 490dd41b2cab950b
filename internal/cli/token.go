package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/noah-isme/stem-dashboard-api/internal/models"
	"github.com/noah-isme/stem-dashboard-api/internal/service"
)

func tokenCmd(load ConfigLoader) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a bearer token for local development",
		Description: `Signs a token with the configured JWT secret and issuer.

  stemctl token --role DATA_ADMIN --email registrar@example.edu`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "role",
				Value: string(models.RoleViewer),
				Usage: "ADMIN, DATA_ADMIN or VIEWER",
			},
			&cli.StringFlag{
				Name:     "email",
				Required: true,
				Usage:    "Email placed in the token claims",
			},
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "Subject of the token (random UUID when empty)",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime (defaults to JWT_EXPIRATION)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			jwtCfg := cfg.JWT
			if ttl := cmd.Duration("ttl"); ttl > 0 {
				jwtCfg.Expiration = ttl
			}

			role := models.UserRole(strings.ToUpper(cmd.String("role")))
			token, expiresAt, err := service.NewTokenService(jwtCfg).Mint(cmd.String("user-id"), cmd.String("email"), role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(writer(cmd), "%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
			return err
		},
	}
}
