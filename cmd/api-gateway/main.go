package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/civic-issue-api/api/swagger"
	"github.com/noah-isme/civic-issue-api/internal/handler"
	internalmiddleware "github.com/noah-isme/civic-issue-api/internal/middleware"
	"github.com/noah-isme/civic-issue-api/internal/models"
	"github.com/noah-isme/civic-issue-api/internal/repository"
	"github.com/noah-isme/civic-issue-api/internal/service"
	"github.com/noah-isme/civic-issue-api/pkg/cache"
	"github.com/noah-isme/civic-issue-api/pkg/config"
	"github.com/noah-isme/civic-issue-api/pkg/database"
	"github.com/noah-isme/civic-issue-api/pkg/jobs"
	"github.com/noah-isme/civic-issue-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/civic-issue-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/civic-issue-api/pkg/middleware/requestid"
	"github.com/noah-isme/civic-issue-api/pkg/storage"
)

// @title Civic Issue API
// @version 1.0.0
// @description Citizen issue reporting with department routing, workload balancing, SLA tracking and escalation.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open stores", "driver", cfg.Store.Driver, "error", err)
	}
	defer st.close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	overrides, err := service.LoadPolicyOverrides(cfg.SLA.PolicyFile)
	if err != nil {
		logr.Sugar().Fatalw("failed to load policy overrides", "path", cfg.SLA.PolicyFile, "error", err)
	}
	high, critical := cfg.Priority.HighThreshold, cfg.Priority.CriticalThreshold
	if overrides != nil {
		if overrides.Priority.High > 0 {
			high = overrides.Priority.High
		}
		if overrides.Priority.Critical > 0 {
			critical = overrides.Priority.Critical
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	priority := service.NewPriorityClassifier(high, critical)
	slaPolicy := service.NewSLAPolicy(cfg.SLA.DefaultBudget, overrides)

	var publisher *service.NotificationPublisher
	if cfg.Notifications.LiveDeliveryEnabled && cacheRepo.Enabled() {
		publisher = service.NewNotificationPublisher(cacheRepo, cfg.Notifications.ChannelPrefix, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: 256,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: time.Second,
			Logger:     logr,
		})
		publisher.Start(ctx)
		defer publisher.Stop()
	}

	dispatcherParams := service.NotificationDispatcherParams{
		Store:   st.notifications,
		Users:   st.users,
		Metrics: metricsSvc,
		Logger:  logr,
	}
	if publisher != nil {
		dispatcherParams.Live = publisher
	}
	dispatcher := service.NewNotificationDispatcher(dispatcherParams)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)
	analyticsSvc := service.NewAnalyticsService(service.AnalyticsServiceParams{
		Issues:      st.issues,
		Users:       st.users,
		Departments: st.departments,
		Cache:       cacheSvc,
		Logger:      logr,
	})

	engine := service.NewAssignmentEngine(st.issues, st.users, priority, slaPolicy, logr)
	issueSvc := service.NewIssueService(service.IssueServiceParams{
		Issues:     st.issues,
		Comments:   st.comments,
		Engine:     engine,
		Priority:   priority,
		Dispatcher: dispatcher,
		Analytics:  analyticsSvc,
		Metrics:    metricsSvc,
		Validator:  validate,
		Logger:     logr,
	})
	directorySvc := service.NewDirectoryService(st.users, st.departments, nil, logr)
	authSvc := service.NewAuthService(st.users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	notificationSvc := service.NewNotificationService(st.notifications, logr)

	monitor := service.NewSLAMonitor(service.SLAMonitorParams{
		Issues:     st.issues,
		Index:      st.notifications,
		Dispatcher: dispatcher,
		Metrics:    metricsSvc,
		Config: service.SLAMonitorConfig{
			Interval:      cfg.SLA.SweepInterval,
			WarningWindow: cfg.SLA.WarningWindow,
		},
		Logger: logr,
	})

	evidenceStore, err := storage.NewEvidenceStorage(cfg.Evidence.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare evidence storage", "dir", cfg.Evidence.StorageDir, "error", err)
	}
	var classifier *service.ClassificationService
	if cfg.Classifier.Enabled {
		classifier = service.NewClassificationService(service.ClassificationConfig{
			URL:     cfg.Classifier.URL,
			Timeout: cfg.Classifier.Timeout,
		}, metricsSvc, logr)
	}
	evidenceCfg := service.EvidenceConfig{
		MaxFileSize: cfg.Evidence.MaxFileSizeBytes,
		PublicPath:  cfg.APIPrefix + "/evidence",
	}
	signer := storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL)
	var evidenceSvc *service.EvidenceService
	if classifier != nil {
		evidenceSvc = service.NewEvidenceService(evidenceStore, signer, classifier, evidenceCfg, logr)
	} else {
		evidenceSvc = service.NewEvidenceService(evidenceStore, signer, nil, evidenceCfg, logr)
	}

	if err := directorySvc.EnsureDepartments(ctx, service.DefaultDepartments); err != nil {
		logr.Sugar().Fatalw("failed to seed departments", "error", err)
	}
	if cfg.Store.SeedDemo {
		if err := seedDemo(ctx, directorySvc, logr); err != nil {
			logr.Sugar().Fatalw("failed to seed demo accounts", "error", err)
		}
	}

	if cfg.SLA.MonitorEnabled {
		monitor.Start(ctx)
	}

	readiness := map[string]handler.ReadinessCheck{"store": st.ping}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	h := handlers{
		auth:          handler.NewAuthHandler(authSvc, directorySvc),
		issues:        handler.NewIssueHandler(issueSvc),
		evidence:      handler.NewEvidenceHandler(evidenceSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		directory:     handler.NewDirectoryHandler(directorySvc),
		analytics:     handler.NewAnalyticsHandler(analyticsSvc),
		sla:           handler.NewSLAHandler(monitor),
		metrics:       handler.NewMetricsHandler(metricsSvc, monitor, readiness),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	registerRoutes(r.Group(cfg.APIPrefix), h, authSvc, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

type handlers struct {
	auth          *handler.AuthHandler
	issues        *handler.IssueHandler
	evidence      *handler.EvidenceHandler
	notifications *handler.NotificationHandler
	directory     *handler.DirectoryHandler
	analytics     *handler.AnalyticsHandler
	sla           *handler.SLAHandler
	metrics       *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, h handlers, tokens internalmiddleware.TokenValidator, logr *zap.Logger) {
	auth := internalmiddleware.JWT(tokens)
	optional := internalmiddleware.OptionalJWT(tokens)
	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)
	staffOrAdmin := internalmiddleware.RequireRoles(models.RoleStaff, models.RoleAdmin)

	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/register", h.auth.Register)
	api.GET("/me", auth, h.auth.Me)

	api.GET("/evidence/:token", h.evidence.Download)

	issues := api.Group("/issues")
	issues.GET("", optional, h.issues.List)
	issues.POST("", auth, h.issues.Create)
	issues.POST("/evidence", auth, h.evidence.Upload)
	issues.GET("/:id", h.issues.Get)
	issues.PATCH("/:id/status", auth, staffOrAdmin, internalmiddleware.Audit(logr, "issue.status"), h.issues.UpdateStatus)
	issues.POST("/:id/assign", auth, adminOnly, internalmiddleware.Audit(logr, "issue.assign"), h.issues.Assign)
	issues.POST("/:id/upvote", auth, h.issues.Upvote)
	issues.POST("/:id/feedback", auth, h.issues.Feedback)
	issues.GET("/:id/comments", h.issues.ListComments)
	issues.POST("/:id/comments", auth, h.issues.AddComment)

	notifications := api.Group("/notifications", auth)
	notifications.GET("", h.notifications.List)
	notifications.GET("/unread-count", h.notifications.UnreadCount)
	notifications.POST("/read-all", h.notifications.MarkAllRead)
	notifications.POST("/:id/read", h.notifications.MarkRead)

	api.GET("/departments", h.directory.ListDepartments)
	api.POST("/departments", auth, adminOnly, internalmiddleware.Audit(logr, "department.create"), h.directory.CreateDepartment)
	api.GET("/staff", auth, staffOrAdmin, h.directory.ListStaff)
	api.POST("/staff", auth, adminOnly, internalmiddleware.Audit(logr, "staff.create"), h.directory.CreateStaff)

	analytics := api.Group("/analytics", auth, adminOnly)
	analytics.GET("/summary", h.analytics.Summary)
	analytics.GET("/export", h.analytics.Export)

	api.POST("/sla/sweep", auth, adminOnly, internalmiddleware.Audit(logr, "sla.sweep"), h.sla.Sweep)
}

// stores bundles the persistence backend selected by STORE_DRIVER.
type stores struct {
	issues interface {
		Create(ctx context.Context, issue *models.Issue) error
		FindByID(ctx context.Context, id string) (*models.Issue, error)
		List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, int, error)
		ListAll(ctx context.Context) ([]models.Issue, error)
		ListActiveByAssignees(ctx context.Context, assigneeIDs []string) ([]models.Issue, error)
		ListMonitored(ctx context.Context) ([]models.Issue, error)
		Mutate(ctx context.Context, id string, fn func(*models.Issue) error) (*models.Issue, error)
	}
	users interface {
		Create(ctx context.Context, user *models.User) error
		FindByEmail(ctx context.Context, email string) (*models.User, error)
		FindByID(ctx context.Context, id string) (*models.User, error)
		List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	}
	departments interface {
		Create(ctx context.Context, name string, createdAt time.Time) (*models.Department, error)
		FindByName(ctx context.Context, name string) (*models.Department, error)
		List(ctx context.Context) ([]models.Department, error)
	}
	notifications interface {
		Append(ctx context.Context, items []models.Notification) error
		ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, id, userID string) (bool, error)
		MarkAllRead(ctx context.Context, userID string) (int, error)
		HasIssueNotification(ctx context.Context, issueID string, notificationType models.NotificationType) (bool, error)
	}
	comments interface {
		Create(ctx context.Context, comment *models.Comment) error
		ListByIssue(ctx context.Context, issueID string) ([]models.Comment, error)
	}
	db *sqlx.DB
}

func openStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory, "":
		logr.Info("using in-memory store")
		return &stores{
			issues:        repository.NewIssueMemoryStore(),
			users:         repository.NewUserMemoryStore(),
			departments:   repository.NewDepartmentMemoryStore(),
			notifications: repository.NewNotificationMemoryStore(),
			comments:      repository.NewCommentMemoryStore(),
		}, nil
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return &stores{
			issues:        repository.NewIssueRepository(db),
			users:         repository.NewUserRepository(db),
			departments:   repository.NewDepartmentRepository(db),
			notifications: repository.NewNotificationRepository(db),
			comments:      repository.NewCommentRepository(db),
			db:            db,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (s *stores) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}
