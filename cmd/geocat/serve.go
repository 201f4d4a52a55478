package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geocat-project/geocat/internal/config"
	"github.com/geocat-project/geocat/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the metadata API server",
	Long:  "Start the HTTP server exposing the metadata schema, instance and search endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Sync()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		st, err := buildStack(cfg, db, logger)
		if err != nil {
			return err
		}

		api := web.NewAPI(st.manager, st.resources, db, st.filter, cfg.DefaultLanguage, logger)
		router := web.NewRouter(api, logger)

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		server := web.NewServer(web.DefaultServerConfig(addr), router, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting geocat",
			zap.String("addr", addr),
			zap.String("default_language", cfg.DefaultLanguage),
			zap.Strings("handlers", cfg.Metadata.Handlers))
		return server.Run(ctx)
	},
}
