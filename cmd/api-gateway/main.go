package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/placement-approval-api/api/swagger"
	"github.com/noah-isme/placement-approval-api/internal/handler"
	internalmiddleware "github.com/noah-isme/placement-approval-api/internal/middleware"
	"github.com/noah-isme/placement-approval-api/internal/models"
	"github.com/noah-isme/placement-approval-api/internal/repository"
	"github.com/noah-isme/placement-approval-api/internal/service"
	"github.com/noah-isme/placement-approval-api/pkg/cache"
	"github.com/noah-isme/placement-approval-api/pkg/config"
	"github.com/noah-isme/placement-approval-api/pkg/database"
	"github.com/noah-isme/placement-approval-api/pkg/export"
	"github.com/noah-isme/placement-approval-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/placement-approval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/placement-approval-api/pkg/middleware/requestid"
)

// @title Placement Approval API
// @version 1.0.0
// @description Reviewer status, committee voting and quorum decisions for placement enrollments
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, workload cache disabled", zap.Error(err))
		redisClient = nil
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	records := repository.NewReviewerRecordRepository(db)
	roles := repository.NewRoleMembershipRepository(db)
	quorumRepo := repository.NewQuorumRepository(db, roles)
	cacheRepo := repository.NewCacheRepository(redisClient, "placement")
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Workflow.WorkloadCacheTTL, logr, redisClient != nil)
	tokens := service.NewTokenVerifier(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	validate := validator.New()

	var publisher service.ReassignmentPublisher
	if cfg.Notifications.Enabled {
		dispatcher := service.NewNotificationDispatcher(records, service.NewLogNotifier(logr), metricsSvc, logr, service.DispatcherConfig{
			Workers:       cfg.Notifications.Workers,
			MaxRetries:    cfg.Notifications.MaxRetries,
			RetryDelay:    cfg.Notifications.RetryDelay,
			SweepBatch:    cfg.Notifications.SweepBatch,
			SweepInterval: cfg.Notifications.SweepInterval,
			SweepTimeout:  cfg.Notifications.SweepTimeout,
		})
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		publisher = dispatcher
	}

	statusSvc := service.NewReviewStatusService(records, metricsSvc, validate, logr)
	voteSvc := service.NewCommitteeVoteService(records, cfg.Workflow.DefaultRequiredVotes, metricsSvc, validate, logr)
	assignmentSvc := service.NewReviewerAssignmentService(records, cacheSvc, publisher, metricsSvc, validate, logr, service.AssignmentConfig{
		ReviewerCapacity:     cfg.Workflow.ReviewerCapacity,
		DefaultRequiredVotes: cfg.Workflow.DefaultRequiredVotes,
		WorkloadCacheTTL:     cfg.Workflow.WorkloadCacheTTL,
	})
	quorumSvc := service.NewQuorumService(quorumRepo, export.NewCSVExporter(), export.NewPDFExporter(), cfg.Exports.Title, metricsSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(quorumSvc, logr)

	recordHandler := handler.NewReviewRecordHandler(statusSvc, voteSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	quorumHandler := handler.NewQuorumHandler(quorumSvc, cfg.Exports.Enabled)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	managers := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))
	{
		api.GET("/records/:id", recordHandler.Get)
		api.POST("/records/:id/transitions", recordHandler.Transition)
		api.POST("/records/:id/migrate-legacy", internalmiddleware.RequireRoles(models.RoleAdmin), recordHandler.MigrateLegacy)
		api.GET("/statuses/:status/next", recordHandler.NextStatuses)

		api.POST("/records/:id/votes", recordHandler.CastVote)
		api.GET("/records/:id/votes/result", recordHandler.VoteResult)
		api.GET("/records/:id/votes/:voterId", recordHandler.HasVoted)
		api.POST("/records/:id/voting", managers, recordHandler.ConfigureVoting)

		api.POST("/records/:id/reviewer", managers, assignmentHandler.ChangeReviewer)
		api.GET("/records/:id/assignments/latest", assignmentHandler.LatestChange)
		api.GET("/records/:id/assignments/unnotified", assignmentHandler.UnnotifiedChanges)
		api.POST("/records/:id/assignments/notified", managers, assignmentHandler.MarkNotified)
		api.GET("/reviewers/:id/workload", assignmentHandler.Workload)
		api.POST("/assignments/bulk", managers, assignmentHandler.BulkAssign)

		api.GET("/enrollments/:id", enrollmentHandler.Get)
		api.GET("/quorum/enrollments/:id", quorumHandler.Compute)
		api.GET("/quorum/passing", quorumHandler.ListPassing)
		api.GET("/quorum/passing/export", managers, quorumHandler.ExportPassing)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
