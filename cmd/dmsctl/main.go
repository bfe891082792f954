package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dmsiq/internal/config"
	"dmsiq/internal/domain/models"
	"dmsiq/internal/repository/postgres"
	"dmsiq/internal/service"
)

// env is what every subcommand runs against
type env struct {
	cfg       *config.Config
	services  *service.Services
	principal models.Principal
	logger    *slog.Logger
}

var rootCmd = &cobra.Command{
	Use:   "dmsctl",
	Short: "document store administration",
	Example: `dmsctl folder tree
dmsctl folder mkdir /Legal/Contracts/
dmsctl cache register -o T-1001 -n spec.pdf -u https://example.com/spec.pdf
dmsctl cache file <reference-id>
dmsctl cache bulk T-1001
dmsctl cache status T-1001
dmsctl storage stats`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(folderCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(storageCmd())
}

// run wraps a subcommand body with config, logging and a database connection.
// Commands act as the configured system user.
func run(fn func(ctx context.Context, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg := config.Load()
		// stdout carries command output
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

		ctx := cmd.Context()
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()

		services, err := service.SetupServices(pool, cfg, nil, logger)
		if err != nil {
			return err
		}

		return fn(ctx, &env{
			cfg:       cfg,
			services:  services,
			principal: models.SystemPrincipal(cfg.SystemUserID),
			logger:    logger,
		}, args)
	}
}
