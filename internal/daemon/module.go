package daemon

import (
	"context"
	"fmt"

	"github.com/ssantosv/zapbridge/internal/bus"
	"github.com/ssantosv/zapbridge/internal/chatnet"
	"github.com/ssantosv/zapbridge/internal/config"
	"github.com/ssantosv/zapbridge/internal/gateway"
	"github.com/ssantosv/zapbridge/internal/lock"
	"github.com/ssantosv/zapbridge/internal/logging"
	"github.com/ssantosv/zapbridge/internal/session"
	"github.com/ssantosv/zapbridge/internal/status"
	"github.com/ssantosv/zapbridge/internal/store"
	"github.com/ssantosv/zapbridge/internal/supervisor"
	"github.com/ssantosv/zapbridge/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved daemon configuration passed to the fx module.
type Params struct {
	SessionName   string
	ListenAddr    string // optional override; empty = config default
	ClientBackend string // whatsmeow | memory; empty = config default
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideClientFactory,
			provideSupervisor,
			provideGateway,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = config.Default()
	}
	if p.ListenAddr != "" {
		cfg.ListenAddr = p.ListenAddr
	}
	if p.ClientBackend != "" {
		cfg.ClientBackend = p.ClientBackend
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("relay cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClientFactory(p Params, cfg *config.Config, db *store.DB, logger *zap.Logger) (supervisor.Factory, error) {
	switch cfg.ClientBackend {
	case config.BackendWhatsmeow:
		return func(ctx context.Context) (chatnet.Client, error) {
			return wa.NewClient(ctx, p.SessionName, db, logger)
		}, nil
	case config.BackendMemory:
		return func(context.Context) (chatnet.Client, error) {
			return chatnet.NewMemoryClient(), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown client backend %q", cfg.ClientBackend)
	}
}

func provideSupervisor(factory supervisor.Factory, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *supervisor.Supervisor {
	return supervisor.New(factory, machine, b, logger)
}

func provideGateway(sup *supervisor.Supervisor, b *bus.Bus, logger *zap.Logger) *gateway.Gateway {
	return gateway.New(sup, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, gw *gateway.Gateway, sup *supervisor.Supervisor, db *store.DB, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The gateway must be pumping before the first session event.
			go gw.Run(runCtx)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			// The session starts at boot; subscribers joining later get
			// the replayed status snapshot.
			go func() {
				if err := sup.Connect(context.Background()); err != nil {
					logger.Error("auto-connect failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			sup.Disconnect(ctx)
			srv.Stop(ctx)
			cancel()
			if err := db.Close(); err != nil {
				logger.Warn("error closing relay cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
