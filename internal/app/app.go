package app

import (
	"commsense_backend/internal/config"
	"commsense_backend/internal/controller"
	"commsense_backend/internal/gesture"
	"commsense_backend/internal/report"
	"commsense_backend/internal/repository"
	"commsense_backend/internal/service"
	"commsense_backend/pkg/configwatcher"
	"commsense_backend/pkg/database"
	"commsense_backend/pkg/logger"
	"commsense_backend/pkg/monitoring"
	"commsense_backend/pkg/security"
	"commsense_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *database.Handle
	Redis    *redis.Client
	Profiles *gesture.ProfileStore
	Services *Services

	tracer  *sdktrace.TracerProvider
	closers []io.Closer
	cancel  context.CancelFunc
}

type repositories struct {
	user         *repository.UserRepository
	quiz         *repository.QuizRepository
	assessment   *repository.AssessmentRepository
	learningPlan *repository.LearningPlanRepository
}

// Services is exported so the CLI can run pipelines without the HTTP layer.
type Services struct {
	Auth     *service.AuthService
	Storage  *service.StorageService
	AI       *service.AIService
	Quiz     *service.QuizService
	Answer   *service.AnswerService
	Summary  *service.SummaryService
	Report   *service.ReportService
	Learning *service.LearningService
}

type controllers struct {
	auth     *controller.AuthController
	quiz     *controller.QuizController
	answer   *controller.AnswerController
	feedback *controller.FeedbackController
	learning *controller.LearningController
	health   *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		quiz:         repository.NewQuizRepository(db),
		assessment:   repository.NewAssessmentRepository(db),
		learningPlan: repository.NewLearningPlanRepository(db),
	}
}

func (a *App) initServices(ctx context.Context, repos *repositories, cfg *config.Config) (*Services, error) {
	s := &Services{}

	s.Storage = service.NewStorageService(ctx, cfg)

	var denylist service.Denylist
	if a.Redis != nil {
		denylist = service.NewRedisDenylist(a.Redis)
	}
	s.Auth = service.NewAuthService(repos.user, cfg, denylist)

	s.AI = service.NewAIService(cfg.AI)

	recognizer, err := service.NewRecognizer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init recognizer: %w", err)
	}
	if c, ok := recognizer.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	var frames service.FrameSource
	if cfg.Gesture.Enabled && cfg.Gesture.Extractor == config.ExtractorGCP {
		vx, err := service.NewVisionExtractor(ctx, cfg.GCP)
		if err != nil {
			// Answers still get speech feedback without gesture analysis.
			logger.Log.Warn("Gesture extractor unavailable, gesture analysis disabled", zap.Error(err))
		} else {
			frames = vx
			a.closers = append(a.closers, vx)
		}
	}

	renderer, err := report.NewRenderer(report.WithTempRoot(cfg.Report.TempDir))
	if err != nil {
		return nil, fmt.Errorf("init report renderer: %w", err)
	}

	s.Quiz = service.NewQuizService(s.AI, repos.quiz, repos.assessment, cfg.Quiz.QuestionCount)
	s.Answer = service.NewAnswerService(
		repos.quiz,
		repos.assessment,
		s.Storage,
		service.NewMediaService(),
		recognizer,
		frames,
		s.AI,
		a.Profiles,
		cfg,
	)
	s.Summary = service.NewSummaryService(s.Quiz, repos.assessment, s.AI)
	s.Report = service.NewReportService(repos.user, repos.assessment, s.Quiz, s.Summary, renderer)
	s.Learning = service.NewLearningService(s.AI, repos.learningPlan, repos.assessment)

	return s, nil
}

func (a *App) initControllers(s *Services) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.Auth),
		quiz:     controller.NewQuizController(s.Quiz),
		answer:   controller.NewAnswerController(s.Answer, a.Config),
		feedback: controller.NewFeedbackController(s.Summary, s.Report),
		learning: controller.NewLearningController(s.Learning),
		health:   controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(cfg.Server.Name))
	}

	router.Use(monitoring.MetricsMiddleware())
}

// loadProfile reads the analysis profile, falling back to the defaults when
// the file is missing or invalid.
func loadProfile(path string) *gesture.ProfileStore {
	p, err := gesture.LoadProfile(path)
	if err != nil {
		logger.Log.Warn("Using default analysis profile", zap.String("path", path), zap.Error(err))
		p = gesture.DefaultProfile()
	}
	return gesture.NewProfileStore(p)
}

// watchProfile swaps the profile in place whenever the file changes. An
// invalid edit keeps the previous profile.
func (a *App) watchProfile(ctx context.Context) {
	path := a.Config.Gesture.ProfilePath
	err := configwatcher.Watch(ctx, path, func(p string) error {
		profile, err := gesture.LoadProfile(p)
		if err != nil {
			return err
		}
		a.Profiles.Store(profile)
		return nil
	})
	if err != nil {
		logger.Log.Warn("Analysis profile hot reload disabled", zap.String("path", path), zap.Error(err))
	}
}

// New wires everything except the HTTP router. Commands that only need the
// services use it directly.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	monitoring.Init()

	app := &App{Config: cfg}

	if dir := cfg.Report.TempDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	app.DB = database.NewHandle(cfg.Database)
	if err := app.DB.Open(ctx); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	app.closers = append(app.closers, app.DB)

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("initialize redis: %w", err)
		}
		app.Redis = rdb
		app.closers = append(app.closers, rdb)
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, cfg.Server.Name, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	app.Profiles = loadProfile(cfg.Gesture.ProfilePath)

	db, err := app.DB.DB()
	if err != nil {
		app.Close()
		return nil, err
	}
	repos := app.initRepositories(db)

	services, err := app.initServices(ctx, repos, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Services = services

	return app, nil
}

// NewServer builds the App with its router, migrations and profile watcher.
func NewServer(ctx context.Context, cfg *config.Config) (*App, error) {
	app, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := app.DB.Migrate(); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.watchProfile(watchCtx)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, app.initControllers(app.Services), cfg)

	if cfg.Storage.Type == config.StorageLocal && strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		router.Static(cfg.Storage.PublicBaseURL, cfg.Storage.LocalPath)
	}

	return app, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Log.Warn("Close failed", zap.Error(err))
		}
	}
	a.closers = nil
	logger.Sync()
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}
