package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "tailor-backend/internal/auth"
	"tailor-backend/internal/billing"
	"tailor-backend/internal/credits"
	"tailor-backend/internal/extract"
	"tailor-backend/internal/generate"
	genopenai "tailor-backend/internal/generate/openai"
	"tailor-backend/internal/jobs"
	"tailor-backend/internal/onboarding"
	"tailor-backend/internal/queue"
	"tailor-backend/internal/shared/config"
	"tailor-backend/internal/shared/server"
	"tailor-backend/internal/shared/storage/db"
	"tailor-backend/internal/shared/storage/object"
	localstore "tailor-backend/internal/shared/storage/object/local"
	s3store "tailor-backend/internal/shared/storage/object/s3"
	"tailor-backend/internal/users"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	OnboardingRepo    onboarding.Repo
	JobsRepo          jobs.Repo
	UsersRepo         users.Repo
	CreditsService    *credits.Service
	OnboardingService *onboarding.Service
	JobsService       *jobs.Service
	UsersService      *users.Service

	OnboardingHandler *onboarding.Handler
	CreditsHandler    *credits.Handler
	JobsHandler       *jobs.Handler
	BillingHandler    *billing.Handler
	UsersHandler      *users.Handler
	GoogleAuth        *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		OnboardingHandler: app.OnboardingHandler,
		CreditsHandler:    app.CreditsHandler,
		JobsHandler:       app.JobsHandler,
		BillingHandler:    app.BillingHandler,
		UsersHandler:      app.UsersHandler,
		GoogleAuth:        app.GoogleAuth,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var onboardingRepo onboarding.Repo
	var jobsRepo jobs.Repo
	var userRepo users.Repo
	var creditsSvc *credits.Service

	if app.DB != nil {
		onboardingRepo = &onboarding.PGRepo{DB: app.DB}
		jobsRepo = &jobs.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		creditsSvc = credits.NewPostgresService(credits.NewPGStore(app.DB))
	} else {
		onboardingRepo = onboarding.NewMemoryRepo()
		jobsRepo = jobs.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		creditsSvc = credits.NewService()
	}

	extractor := extract.Extractor{Store: app.Store}
	onboardingSvc := onboarding.NewService(onboardingRepo, app.Store, extractor, app.Config.ObjectStoreType, app.Config.SessionTTL)

	generator := generate.Generator(generate.PlaceholderGenerator{})
	if app.Config.GenProvider == "openai" && strings.TrimSpace(app.Config.GenModel) != "" {
		client, err := genopenai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.GenModel)
		if err != nil {
			return err
		}
		generator = client
	}

	jobsSvc := jobs.NewService(
		jobsRepo,
		creditsSvc,
		generator,
		app.Store,
		resumeLoader{store: app.Store},
		app.Queue,
		app.Config.JobMaxRunning,
	)

	userSvc := users.NewService(userRepo)
	googleAuthSvc := googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
		creditsSvc,
		onboardingSvc,
		app.Config.SignupGrantCredits,
	)

	app.OnboardingRepo = onboardingRepo
	app.JobsRepo = jobsRepo
	app.UsersRepo = userRepo
	app.CreditsService = creditsSvc
	app.OnboardingService = onboardingSvc
	app.JobsService = jobsSvc
	app.UsersService = userSvc
	app.OnboardingHandler = onboarding.NewHandler(onboardingSvc, app.Config.Env == "production")
	app.CreditsHandler = credits.NewHandler(creditsSvc)
	app.JobsHandler = jobs.NewHandler(jobsSvc)
	app.BillingHandler = billing.NewHandler(creditsSvc, app.Config.BillingSecret)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleAuthSvc

	return nil
}

// resumeLoader resolves a job's resume reference to plain text using the
// cached extraction when available.
type resumeLoader struct {
	store object.ObjectStore
}

func (l resumeLoader) LoadResumeText(ctx context.Context, resumeRef string) (string, error) {
	return extract.LoadOrExtract(ctx, l.store, resumeRef)
}
