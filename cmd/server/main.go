package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/brandchat-server/internal/app"
	"github.com/vovakirdan/brandchat-server/internal/auth"
	"github.com/vovakirdan/brandchat-server/internal/config"
	"github.com/vovakirdan/brandchat-server/internal/janitor"
	"github.com/vovakirdan/brandchat-server/internal/log"
	"github.com/vovakirdan/brandchat-server/internal/uploads"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "brandchat-server",
		Short:         "Realtime chat gateway for brand rooms and support",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("database-path", "", "SQLite database path")

	serve := newServeCmd(&configPath)
	root.AddCommand(serve, newJanitorCmd(&configPath), newTokenCmd(&configPath))
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// load resolves configuration for cmd and builds the logger it asks for.
func load(cmd *cobra.Command, configPath string) (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New("info", "console")
	cfg, path, err := config.Load(bootstrap, configPath, cmd.Flags())
	if err != nil {
		bootstrap.Error().Err(err).Msg("failed to load config")
		return cfg, nil, err
	}

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config_path", path).Msg("config loaded")
	return cfg, logger, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(cmd, *configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to initialize application")
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Str("bus", cfg.BusBackend).Msg("starting brandchat server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("bus-backend", "", "event bus backend (memory, redis, nats)")
	return cmd
}

func newJanitorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "janitor",
		Short: "Remove dangling attachments and empty rooms once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(cmd, *configPath)
			if err != nil {
				return err
			}

			st, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			dir, err := uploads.NewDir(cfg.UploadDir)
			if err != nil {
				return fmt.Errorf("init uploads: %w", err)
			}

			report, err := janitor.New(st, dir, cfg.AttachmentLifetime, logger).Sweep(cmd.Context())
			if err != nil {
				logger.Error().Err(err).Msg("sweep failed")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d attachments, %d rooms, %d files\n",
				report.Attachments, report.Rooms, report.Files)
			return nil
		},
	}
}

func newTokenCmd(configPath *string) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load(cmd, *configPath)
			if err != nil {
				return err
			}

			st, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := st.GetUserByID(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}

			token, err := auth.GenerateToken(app.JWTConfig(cfg), user.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "id of an active user")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
