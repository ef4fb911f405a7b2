package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GabeYou/Hack-The-Valley-2025/config"
	"github.com/GabeYou/Hack-The-Valley-2025/database"
	"github.com/GabeYou/Hack-The-Valley-2025/middleware"
	"github.com/GabeYou/Hack-The-Valley-2025/routes"
	"github.com/GabeYou/Hack-The-Valley-2025/services"
	"github.com/GabeYou/Hack-The-Valley-2025/telemetry"
	"github.com/GabeYou/Hack-The-Valley-2025/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	root := &cobra.Command{
		Use:           "bountyboard",
		Short:         "Community bounty board API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(serveCmd(), migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	var backup string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			defer logger.Sync() //nolint:errcheck

			if backup != "" {
				logger.Info("backing up database", zap.String("path", backup))
				if err := database.BackupDatabase(cmd.Context(), cfg, backup); err != nil {
					return err
				}
			}
			db, err := database.Connect(cfg, logger)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migration completed")
			return nil
		},
	}
	cmd.Flags().StringVar(&backup, "backup", "", "write a mysqldump to this path before migrating")
	return cmd
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("service", cfg.ServiceName))
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	// Auto-migrate only in development to avoid accidental production schema changes
	if cfg.IsDevelopment() {
		logger.Info("running in development mode, performing auto-migration")
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	var revoked utils.RevocationStore = utils.NewDBRevocationStore(db)
	rc, err := utils.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, using database for token revocation", zap.Error(err))
	}
	if rc != nil {
		defer rc.Close()
		revoked = utils.NewRedisRevocationStore(rc)
	}

	orderIDs, err := utils.NewOrderIDGenerator(cfg.NodeID)
	if err != nil {
		return err
	}
	wallet := services.NewWallet(orderIDs)

	tp, err := telemetry.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	opts := services.TaskServiceOptions{
		Wallet:       wallet,
		Logger:       logger,
		Tracer:       tp.Tracer(),
		VerifyPolicy: cfg.VerifyPolicy,
	}
	archiver, err := utils.NewR2Archiver(ctx, cfg)
	if err != nil {
		logger.Warn("proof archive disabled", zap.Error(err))
	}
	if archiver != nil {
		opts.Archive = archiver
	}

	router := routes.InitRouter(routes.Deps{
		Config:     cfg,
		Logger:     logger,
		Tasks:      services.NewTaskService(db, opts),
		Users:      services.NewUserService(db, wallet, logger, cfg.SignupCredits),
		Codec:      utils.NewTokenCodec(cfg, revoked),
		LoginGuard: middleware.NewLoginGuard(rc),
	})

	// RequestID -> Logging -> Security headers -> Max Body -> Timeout -> Recovery
	handler := middleware.RequestID(
		middleware.RequestLogger(logger, cfg.TrustedProxies)(
			middleware.SecurityHeaders(cfg)(
				middleware.MaxBody(cfg.MaxBodyBytes, cfg.MaxUploadBytes)(
					middleware.Timeout(cfg.RequestTimeout)(
						middleware.Recovery(logger)(router),
					),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
