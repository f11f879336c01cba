package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clavis-health/clavis/internal/broadcast"
	"github.com/clavis-health/clavis/internal/config"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	v1 "github.com/clavis-health/clavis/internal/handler/v1"
	"github.com/clavis-health/clavis/internal/repository"
	"github.com/clavis-health/clavis/internal/service"
	"github.com/clavis-health/clavis/internal/sweeper"
	"github.com/clavis-health/clavis/pkg/auth"
	"github.com/clavis-health/clavis/pkg/database"
	"github.com/clavis-health/clavis/pkg/logger"
	"github.com/clavis-health/clavis/pkg/metrics"
	"github.com/clavis-health/clavis/pkg/tracer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	collector := metrics.NewCollector("clavis")

	actionRepo := repository.NewActionRepository(db)
	typeRepo := repository.NewCustomTypeRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	auditSvc := service.NewAuditService(auditRepo, log)
	auditSvc.OnDropped(func() { collector.AuditBufferDropped.Inc() })
	auditSvc.OnWritten(func() { collector.AuditEntriesTotal.Inc() })
	defer auditSvc.Shutdown()

	go reportDBStats(db, collector)

	hub := broadcast.NewHub(log)
	hub.OnDrop(func(kind broadcast.KeyKind) {
		collector.BroadcastDroppedTotal.WithLabelValues(string(kind)).Inc()
	})
	hub.OnPublish(func(evType broadcast.EventType) {
		collector.BroadcastPublishedEvents.WithLabelValues(string(evType)).Inc()
	})
	hub.OnSubscriptionChange(func(kind broadcast.KeyKind, delta int) {
		collector.BroadcastSubscribers.WithLabelValues(string(kind)).Add(float64(delta))
	})

	compiler := customtype.NewCompiler()
	jwtManager := auth.NewJWTManager(cfg.JWT)

	workflowSvc := service.NewWorkflowService(actionRepo, typeRepo, patientRepo, compiler, hub, auditSvc, log)
	workflowSvc.OnCreated(func(kind string) {
		collector.ActionsCreatedTotal.WithLabelValues(kind).Inc()
	})
	workflowSvc.OnTransitioned(func(kind string) {
		collector.ActionTransitionsTotal.WithLabelValues(kind).Inc()
	})

	typeSvc := service.NewCustomTypeService(typeRepo, auditSvc, log)
	patientSvc := service.NewPatientService(patientRepo, auditSvc, log)
	authSvc := service.NewAuthService(userRepo, jwtManager, auditSvc, log)
	analyticsSvc := service.NewAnalyticsService(actionRepo, typeRepo)

	sw := sweeper.New(actionRepo, typeRepo, hub, log)
	sw.OnEscalation(func() { collector.EscalationsEmittedTotal.Inc() })
	sw.OnSweepDone(func(d time.Duration) { collector.SweepDuration.Observe(d.Seconds()) })
	if cfg.Sweeper.Enabled {
		sw.Start(cfg.Sweeper.Period)
		defer sw.Stop()
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	v1.RegisterRoutes(engine, v1.Handlers{
		Auth:       v1.NewAuthHandler(authSvc, log),
		Actions:    v1.NewActionHandler(workflowSvc, log),
		Patients:   v1.NewPatientHandler(patientSvc, log),
		Types:      v1.NewCustomTypeHandler(typeSvc, log),
		Analytics:  v1.NewAnalyticsHandler(analyticsSvc),
		Streams:    v1.NewStreamHandler(hub, log),
		JWTManager: jwtManager,
		Metrics:    collector,
	})

	// No WriteTimeout: the SSE stream endpoints hold their response open
	// for the life of the subscription.
	server := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     engine,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.App.Environment),
			zap.String("version", cfg.App.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}

func reportDBStats(db *gorm.DB, collector *metrics.Collector) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		collector.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
	}
}
