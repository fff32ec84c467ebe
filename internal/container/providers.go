package container

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/application/dispatcher"
	"github.com/garyjia/cost-approval/internal/application/port"
	"github.com/garyjia/cost-approval/internal/application/service"
	"github.com/garyjia/cost-approval/internal/application/workflow"
	infraLark "github.com/garyjia/cost-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/cost-approval/internal/infrastructure/report"
	"github.com/garyjia/cost-approval/internal/infrastructure/worker"
	"github.com/garyjia/cost-approval/migrations"
	"github.com/garyjia/cost-approval/pkg/database"
)

// DatabaseBundle holds the storage backend: repositories, the transaction
// manager, and the hooks to probe and release the connection.
type DatabaseBundle struct {
	Driver       string
	Repositories *RepositoryBundle
	TxManager    port.TransactionManager
	Ping         func(ctx context.Context) error
	Close        func() error
}

// ProvideDatabase opens the configured database, runs pending migrations and
// builds the repositories on top of it.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case DriverSQLite, "":
		return provideSQLite(cfg, logger)
	case DriverPostgres:
		return providePostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func migrationSource(cfg *DatabaseConfig, embedded fs.FS) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return embedded
}

func provideSQLite(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrationsFS(migrationSource(cfg, migrations.SQLite())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	txManager := sqlite.NewDB(db.DB, logger)
	return &DatabaseBundle{
		Driver: DriverSQLite,
		Repositories: &RepositoryBundle{
			CostTable: repository.NewCostTableRepository(txManager, logger),
			Approval:  repository.NewApprovalRepository(txManager, logger),
			User:      repository.NewUserRepository(txManager, logger),
			History:   repository.NewHistoryRepository(txManager, logger),
		},
		TxManager: txManager,
		Ping:      db.PingContext,
		Close:     db.Close,
	}, nil
}

func providePostgres(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := postgres.Open(ctx, postgres.Config{
		DSN:             cfg.DSN,
		MaxConns:        int32(cfg.MaxOpenConns),
		MinConns:        int32(cfg.MaxIdleConns),
		MaxConnLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, migrationSource(cfg, migrations.Postgres())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Driver: DriverPostgres,
		Repositories: &RepositoryBundle{
			CostTable: postgres.NewCostTableRepository(db, logger),
			Approval:  postgres.NewApprovalRepository(db, logger),
			User:      postgres.NewUserRepository(db, logger),
			History:   postgres.NewHistoryRepository(db, logger),
		},
		TxManager: db,
		Ping:      db.Pool.Ping,
		Close: func() error {
			db.Close()
			return nil
		},
	}, nil
}

// ProvideMessageSender returns the Lark messenger when Lark is enabled and a
// log-only sender otherwise.
func ProvideMessageSender(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications will only be logged")
		return infraLark.NewLogSender(logger), nil
	}

	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		Timeout:   cfg.APITimeout,
	}, logger)
	return infraLark.NewMessenger(client, logger), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&LoggerAdapter{logger: logger})), nil
}

// WorkflowDeps holds dependencies for the orchestrator.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Clock      port.Clock
	Logger     *zap.Logger
}

// ProvideOrchestrator creates the workflow orchestrator.
func ProvideOrchestrator(deps *WorkflowDeps) (workflow.Orchestrator, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(&LoggerAdapter{logger: deps.Logger}),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}
	if deps.Clock != nil {
		opts = append(opts, workflow.WithClock(deps.Clock))
	}

	return workflow.NewEngine(
		deps.Repos.CostTable,
		deps.Repos.Approval,
		deps.Repos.User,
		deps.Repos.History,
		deps.TxManager,
		opts...,
	), nil
}

// ServiceDeps holds dependencies for application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Sender     port.MessageSender
	Dispatcher dispatcher.Dispatcher
	Clock      port.Clock
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification handlers to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	svcLogger := &LoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	notifications := service.NewNotificationService(
		repos.CostTable, repos.Approval, repos.User, deps.Sender, deps.Clock, svcLogger,
	)
	if deps.Dispatcher != nil {
		notifications.Register(deps.Dispatcher)
	}

	return &ServiceBundle{
		CostTable:    service.NewCostTableService(repos.CostTable, repos.User, deps.Clock, svcLogger),
		User:         service.NewUserService(repos.User, svcLogger),
		Notification: notifications,
		Exporter:     report.NewWorkflowExporter(deps.Logger),
	}, nil
}

// WorkerDeps holds dependencies for background workers.
type WorkerDeps struct {
	Orchestrator workflow.Orchestrator
	Dispatcher   dispatcher.Dispatcher
	WorkerCfg    *WorkerConfig
	Logger       *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	if deps.WorkerCfg.ReminderEnabled {
		if deps.Orchestrator == nil || deps.Dispatcher == nil {
			return nil, fmt.Errorf("reminder worker requires the orchestrator and dispatcher")
		}
		manager.Register(worker.NewReminderWorker(
			deps.Orchestrator,
			deps.Dispatcher,
			worker.ReminderConfig{
				PollInterval: deps.WorkerCfg.ReminderPollInterval,
				BatchSize:    deps.WorkerCfg.ReminderBatchSize,
			},
			deps.Logger,
		))
	}

	return manager, nil
}
