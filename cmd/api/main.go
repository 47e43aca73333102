package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/SynergyRentals/SynergyVAHouse-sub002/internal/api/http"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/api/http/handlers"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/config"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/events"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/messaging"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/notify"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/observability"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/persistence"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/repository"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/scheduler"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/service"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	taskRepo := repository.NewTaskRepository(pool)
	playbookRepo := repository.NewPlaybookRepository(pool)
	assigneeRepo := repository.NewAssigneeRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	webhookEventRepo := repository.NewWebhookEventRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	hub := notify.NewHub(logger)
	hub.Attach(dispatcher)

	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:     taskRepo,
		PlaybookRepo: playbookRepo,
		AssigneeRepo: assigneeRepo,
		AuditRepo:    auditRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TaskRepo:     taskRepo,
		AssigneeRepo: assigneeRepo,
		TaskService:  taskService,
		Logger:       logger,
	})
	taskService.SetRecommender(assignmentService)

	var notifier messaging.Notifier
	if cfg.Escalation.ChatWebhookURL != "" {
		notifier = messaging.NewChatClient(cfg.Escalation.ChatWebhookURL, logger)
	} else {
		notifier = messaging.NewNoopNotifier(logger)
	}
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		PlaybookRepo: playbookRepo,
		AuditRepo:    auditRepo,
		Notifier:     notifier,
		Routing:      cfg.Escalation,
		Metrics:      metrics,
		Logger:       logger,
	})

	ingestionService := service.NewIngestionService(service.IngestionDependencies{
		Guard:       webhook.NewGuard(webhookEventRepo),
		Mapper:      webhook.NewMapper(logger),
		TaskService: taskService,
		Webhooks:    cfg.Webhooks,
		Metrics:     metrics,
		Logger:      logger,
	})

	sweeper := scheduler.NewSweeper(scheduler.SweeperDependencies{
		TaskRepo:          taskRepo,
		TaskService:       taskService,
		EscalationService: escalationService,
		Redis:             redis.ClientHandle(),
		Metrics:           metrics,
		Logger:            logger,
		Interval:          cfg.SLA.SweepInterval(),
		WarningWindow:     cfg.SLA.WarningWindow(),
	})
	sweeper.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tasks:       handlers.NewTasksHandler(taskService),
		Assignments: handlers.NewAssignmentsHandler(assignmentService, taskService),
		Webhooks:    handlers.NewWebhooksHandler(ingestionService, cfg.Webhooks.SignatureHeader),
		Metrics:     handlers.NewMetricsHandler(metrics),
		WS:          handlers.NewWSHandler(hub),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	sweeper.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
