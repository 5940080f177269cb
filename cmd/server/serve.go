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

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/gdg-garage/shuttle-planner/internal/auth"
	"github.com/gdg-garage/shuttle-planner/internal/capacity"
	"github.com/gdg-garage/shuttle-planner/internal/database"
	"github.com/gdg-garage/shuttle-planner/internal/handlers"
	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/notifier"
	"github.com/gdg-garage/shuttle-planner/internal/repository"
	"github.com/gdg-garage/shuttle-planner/internal/songs"
	"github.com/gdg-garage/shuttle-planner/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, closeStore, err := database.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("store connected", "driver", cfg.StoreDriver)

	if added, err := database.SeedShuttles(ctx, s, models.DefaultCatalog()); err != nil {
		logger.Warn("failed to seed shuttles", "error", err)
	} else if added > 0 {
		logger.Info("seeded shuttles", "count", added)
	}

	repo := repository.New(s, logger)
	unsubscribe, err := repo.Subscribe(ctx, func() {
		logger.Debug("view reloaded")
	})
	if err != nil {
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	defer unsubscribe()
	if err := repo.LoadAll(ctx); err != nil {
		// The view stays empty with its error flag set until the next change reloads it.
		logger.Error("initial load failed", "error", err)
	}

	opts := []workflow.ManagerOption{workflow.WithLogger(logger)}
	if n := discordNotifier(); n != nil {
		opts = append(opts, workflow.WithNotifier(n))
	}
	manager := workflow.NewManager(repo, workflow.Config{
		Capacity:          cfg.ShuttleCapacity,
		MaxGuests:         cfg.MaxGuests,
		ConfirmationDelay: cfg.ConfirmationDelay,
		SessionTTL:        cfg.SessionTTL,
	}, opts...)

	if cfg.AdminSecret == "" {
		logger.Warn("ADMIN_SECRET is not set, admin routes will reject every request")
	}

	r := chi.NewRouter()
	handlers.RegisterRoutes(r, handlers.Handlers{
		Shuttles:  handlers.NewShuttleHandler(repo, capacity.NewPolicy(cfg.ShuttleCapacity)),
		Sessions:  handlers.NewSessionHandler(manager),
		Songs:     handlers.NewSongHandler(songs.NewService(s, logger)),
		AdminAuth: auth.NewAdminAuth(cfg.AdminSecret),
	}, cfg.EnableCORS)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func discordNotifier() notifier.Notifier {
	if cfg.DiscordBotToken == "" || cfg.DiscordNotificationsChannelID == "" {
		logger.Info("discord notifier disabled")
		return nil
	}
	session, err := notifier.NewDiscordSession(cfg.DiscordBotToken)
	if err != nil {
		logger.Warn("discord notifier not initialized", "error", err)
		return nil
	}
	return notifier.NewDiscordNotifier(session, cfg.DiscordNotificationsChannelID, logger)
}
