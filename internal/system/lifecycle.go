// Package system wires the components together and owns their lifetime.
package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KevinKickass/EquipTrack/internal/api/rest"
	"github.com/KevinKickass/EquipTrack/internal/api/websocket"
	"github.com/KevinKickass/EquipTrack/internal/auth"
	"github.com/KevinKickass/EquipTrack/internal/config"
	"github.com/KevinKickass/EquipTrack/internal/equipment"
	"github.com/KevinKickass/EquipTrack/internal/history"
	"github.com/KevinKickass/EquipTrack/internal/interfaces"
	"github.com/KevinKickass/EquipTrack/internal/machine"
	"github.com/KevinKickass/EquipTrack/internal/reports"
	"github.com/KevinKickass/EquipTrack/internal/sensors"
	"github.com/KevinKickass/EquipTrack/internal/storage"
	"github.com/KevinKickass/EquipTrack/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type LifecycleManager struct {
	config *config.Config
	logger *zap.Logger

	store *storage.MemoryStore
	db    *storage.PostgresClient // nil when persistence is disabled

	authService       *auth.AuthService
	equipment         *equipment.Registry
	machineController *machine.Controller
	sensors           *sensors.Registry
	history           *history.Store
	catalog           *reports.Catalog
	reportEngine      *reports.Engine
	wsHub             *websocket.Hub

	restServer   *rest.Server
	grpcServer   *grpc.Server
	healthServer *health.Server

	stateMu      sync.RWMutex
	currentState SystemState

	dirty        atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

var _ interfaces.LifecycleManager = (*LifecycleManager)(nil)

// NewLifecycleManager builds every component. With persistence enabled the
// newest snapshot is restored; an empty store is seeded when configured.
func NewLifecycleManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	lm := &LifecycleManager{
		config:       cfg,
		logger:       logger,
		store:        storage.NewMemoryStore(),
		currentState: StateInitializing,
	}

	restored := false
	if cfg.Database.Enabled {
		db, err := storage.NewPostgresClient(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		lm.db = db

		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, err
		}

		snap, err := db.LoadSnapshot(ctx)
		switch {
		case err == nil:
			lm.store.Restore(snap)
			restored = true
			logger.Info("State restored from snapshot",
				zap.Int("equipment", len(snap.Equipment)),
				zap.Int("records", len(snap.Records)))
		case errors.Is(err, storage.ErrNoSnapshot):
			logger.Info("No snapshot stored yet")
		default:
			db.Close()
			return nil, err
		}
	}

	lm.authService = auth.NewAuthService(lm.store, cfg.Auth, logger.Named("auth"))
	lm.wsHub = websocket.NewHub(logger.Named("ws"), lm.authService)
	lm.history = history.NewStore(lm.store)
	lm.equipment = equipment.NewRegistry(lm.store, logger.Named("equipment"))
	lm.machineController = machine.NewController(lm.store, lm.history, lm.wsHub, logger.Named("machine"))
	lm.sensors = sensors.NewRegistry(lm.store, newProber(cfg.Sensors), lm.wsHub, cfg.Sensors.Timeout, logger.Named("sensors"))

	catalog, err := reports.NewCatalog(lm.store, logger.Named("reports"))
	if err != nil {
		lm.closeDB()
		return nil, err
	}
	lm.catalog = catalog

	var archiver reports.Archiver
	if cfg.Reports.Archive.Enabled {
		a, err := reports.NewS3Archiver(ctx, cfg.Reports.Archive)
		if err != nil {
			lm.closeDB()
			return nil, err
		}
		archiver = a
	}
	lm.reportEngine = reports.NewEngine(lm.store, lm.history, archiver, logger.Named("reports"))

	if !restored && cfg.Seed.Enabled {
		seed, err := LoadSeed(cfg.Seed.Path)
		if err != nil {
			lm.closeDB()
			return nil, err
		}
		if err := seed.Apply(ctx, lm.store, lm.authService, time.Now()); err != nil {
			lm.closeDB()
			return nil, err
		}
		logger.Info("Seed data loaded",
			zap.Int("users", len(seed.Users)),
			zap.Int("equipment", len(seed.Equipment)))
		lm.dirty.Store(true)
	}

	lm.store.OnChange(func() { lm.dirty.Store(true) })
	lm.restServer = rest.NewServer(cfg, lm, logger.Named("rest"))

	if !cfg.Auth.IsProductionReady() {
		logger.Warn("JWT secret is not production ready; set the configured environment variable",
			zap.String("env", cfg.Auth.JWTSecretEnv))
	}
	return lm, nil
}

func newProber(cfg config.SensorsConfig) sensors.Prober {
	sim := sensors.NewSimulated(cfg.SuccessRate, cfg.ReadingMin, cfg.ReadingMax, time.Now().UnixNano())
	if cfg.Driver != "modbus" {
		return sim
	}
	mb := &sensors.ModbusProber{Timeout: cfg.Timeout, Scale: cfg.Scale}
	return &sensors.Router{
		ByKind: map[types.CommKind]sensors.Prober{
			types.CommNetwork: mb,
			types.CommModbus:  mb,
		},
		Default: sim,
	}
}

// Run serves HTTP, gRPC and the websocket hub until ctx is cancelled or one
// of them fails, then shuts everything down.
func (lm *LifecycleManager) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", lm.config.Server.GRPCPort))
	if err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to listen: %w", err)
	}

	lm.grpcServer = grpc.NewServer()
	lm.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(lm.grpcServer, lm.healthServer)
	reflection.Register(lm.grpcServer)
	lm.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lm.setState(StateRunning)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lm.wsHub.Run(gctx)
		return nil
	})
	g.Go(lm.restServer.Start)
	g.Go(func() error {
		lm.logger.Info("gRPC server listening",
			zap.Int("port", lm.config.Server.GRPCPort),
			zap.String("services", "grpc.health.v1.Health"))
		if err := lm.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})
	if lm.db != nil {
		g.Go(func() error {
			lm.persistLoop(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), lm.config.Server.ShutdownTimeout)
		defer cancel()
		return lm.Shutdown(shutdownCtx)
	})

	lm.logger.Info("System started successfully",
		zap.Int("grpc_port", lm.config.Server.GRPCPort),
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Bool("persistence", lm.db != nil))

	return g.Wait()
}

// Shutdown stops the servers and writes a final snapshot. It is idempotent.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		var errs []error
		if lm.healthServer != nil {
			lm.healthServer.Shutdown()
		}
		if lm.restServer != nil {
			if err := lm.restServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("rest api shutdown failed: %w", err))
			}
		}
		if lm.grpcServer != nil {
			lm.stopGRPC(ctx)
		}
		if lm.db != nil {
			if err := lm.saveSnapshot(ctx); err != nil {
				errs = append(errs, err)
			}
			lm.db.Close()
		}

		lm.shutdownErr = errors.Join(errs...)
		if lm.shutdownErr != nil {
			lm.setState(StateError)
			return
		}
		lm.setState(StateStopped)
		lm.logger.Info("Graceful shutdown completed")
	})
	return lm.shutdownErr
}

func (lm *LifecycleManager) stopGRPC(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		lm.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing gRPC stop")
		lm.grpcServer.Stop()
	}
}

func (lm *LifecycleManager) persistLoop(ctx context.Context) {
	interval := lm.config.Database.SnapshotInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lm.saveSnapshot(ctx); err != nil {
				lm.logger.Error("Failed to persist snapshot", zap.Error(err))
			}
		}
	}
}

// saveSnapshot writes the store when it changed since the last save.
func (lm *LifecycleManager) saveSnapshot(ctx context.Context) error {
	if !lm.dirty.Swap(false) {
		return nil
	}
	if err := lm.db.SaveSnapshot(ctx, lm.store.Snapshot()); err != nil {
		lm.dirty.Store(true)
		return err
	}
	lm.logger.Debug("Snapshot persisted")
	return nil
}

func (lm *LifecycleManager) closeDB() {
	if lm.db != nil {
		lm.db.Close()
	}
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Unexpected system state change", zap.Error(err))
	}
	lm.currentState = state
}

func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	ctx := context.Background()
	counts := lm.equipment.Summary(ctx)
	total := 0
	for _, n := range counts {
		total += n
	}

	persistence := "memory"
	if lm.db != nil {
		persistence = "postgres"
	}

	return interfaces.SystemStatus{
		State:            lm.State().String(),
		EquipmentCount:   total,
		ByStatus:         counts,
		PendingQuality:   len(lm.history.Pending(ctx)),
		ConnectedClients: lm.wsHub.GetClientCount(),
		Persistence:      persistence,
	}
}

func (lm *LifecycleManager) Config() *config.Config                  { return lm.config }
func (lm *LifecycleManager) Auth() *auth.AuthService                  { return lm.authService }
func (lm *LifecycleManager) Equipment() *equipment.Registry           { return lm.equipment }
func (lm *LifecycleManager) MachineController() *machine.Controller   { return lm.machineController }
func (lm *LifecycleManager) Sensors() *sensors.Registry               { return lm.sensors }
func (lm *LifecycleManager) History() *history.Store                  { return lm.history }
func (lm *LifecycleManager) ReportCatalog() *reports.Catalog          { return lm.catalog }
func (lm *LifecycleManager) ReportEngine() *reports.Engine            { return lm.reportEngine }
func (lm *LifecycleManager) Hub() *websocket.Hub                      { return lm.wsHub }
func (lm *LifecycleManager) Store() *storage.MemoryStore              { return lm.store }
