package main

import (
	"context"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"

	"github.com/vaultpilot/automations/pkg/engine"
	"github.com/vaultpilot/automations/pkg/eventbus"
	"github.com/vaultpilot/automations/pkg/events"
	"github.com/vaultpilot/automations/pkg/notes"
	"github.com/vaultpilot/automations/pkg/persistence/file"
	"github.com/vaultpilot/automations/pkg/protocol"
	"github.com/vaultpilot/automations/pkg/shell"
	"github.com/vaultpilot/automations/pkg/web"
)

// slogNotifier surfaces notifications in the daemon log; embedded hosts
// replace it with real UI toasts.
type slogNotifier struct {
	logger *slog.Logger
}

func (n *slogNotifier) Notify(title, message string) {
	n.logger.Warn(title, "message", message)
}

func run(ctx context.Context, logger *slog.Logger, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := eventbus.NewGoChannelEventBus(logger)
	store := file.NewStore(command.String("state-file"))

	eng := engine.New(engine.Options{
		Store: store,
		Bus:   bus,
		Collaborators: protocol.Collaborators{
			Notes:    notes.NewStore(command.String("vault-root")),
			Shell:    shell.NewRunner(logger),
			Notifier: &slogNotifier{logger: logger},
		},
		AuditLogPath: command.String("audit-log"),
		Logger:       logger,
	})

	if err := eng.Initialize(ctx, command.StringSlice("definitions-dir")); err != nil {
		return err
	}

	// The daemon is its own host: signal readiness so startup and
	// vault-opened triggers fire once.
	publishReadiness(ctx, bus, logger, command.String("vault-root"))

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	handlers := web.NewAPIHandlers(eng, validator.New(validator.WithRequiredStructEnabled()))
	handlers.Register(app)

	go func() {
		if err := app.Listen(":" + strconv.Itoa(command.Int("port"))); err != nil {
			logger.Error("API server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Failed to shut down API server", "error", err)
	}

	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down engine", "error", err)
	}

	if err := bus.Close(); err != nil {
		logger.Error("Failed to close event bus", "error", err)
	}

	return store.Close(shutdownCtx)
}

func publishReadiness(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger, vaultPath string) {
	startup := events.Startup{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.StartupEvent, Timestamp: time.Now().UTC()},
	}
	if err := bus.Publish(ctx, "host", startup); err != nil {
		logger.Warn("Failed to publish startup event", "error", err)
	}

	opened := events.VaultOpened{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.VaultOpenedEvent, Timestamp: time.Now().UTC()},
		VaultPath: vaultPath,
	}
	if err := bus.Publish(ctx, "host", opened); err != nil {
		logger.Warn("Failed to publish vault-opened event", "error", err)
	}
}
