package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"chart-qa-backend/internal/analysis"
	"chart-qa-backend/internal/chartqa"
	"chart-qa-backend/internal/conversion"
	"chart-qa-backend/internal/documents"
	"chart-qa-backend/internal/extract"
	"chart-qa-backend/internal/llm"
	openai "chart-qa-backend/internal/llm/openai"
	"chart-qa-backend/internal/lock"
	"chart-qa-backend/internal/queue"
	"chart-qa-backend/internal/services/health"
	"chart-qa-backend/internal/shared/config"
	"chart-qa-backend/internal/shared/server"
	"chart-qa-backend/internal/shared/storage/db"
	"chart-qa-backend/internal/shared/storage/object"
	localstore "chart-qa-backend/internal/shared/storage/object/local"
	s3store "chart-qa-backend/internal/shared/storage/object/s3"
	"chart-qa-backend/internal/uploads"
)

// inference is the full model surface the pipeline needs from one provider.
type inference interface {
	llm.Completer
	llm.Describer
	llm.Transcriber
}

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	Queue            queue.Client
	Locker           lock.Locker
	Health           *health.Service
	DocumentsRepo    documents.Repo
	DocumentsService *documents.Service
	Orchestrator     *extract.Orchestrator
	Analysis         *analysis.Engine
	ChartQA          *chartqa.Service
	DocumentsHandler *documents.Handler
	ExtractHandler   *extract.Handler
	ChartQAHandler   *chartqa.Handler
	UploadsHandler   *uploads.Handler
}

// Build prepares shared dependencies and the HTTP router.
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

	locker, err := buildLocker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	presign, err := buildUploadsPresign(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		Locker: locker,
		Health: health.NewService(),
	}
	if sqlDB != nil {
		app.Health.Register("database", func(ctx context.Context) error {
			return db.Ping(ctx, sqlDB, 0)
		})
	}
	if r, ok := locker.(*lock.Redis); ok {
		app.Health.Register("redis", r.Ping)
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}
	if presign != nil {
		app.UploadsHandler = uploads.NewHandler(presign, cfg.UploadsBucket, cfg.UploadsPrefix)
	} else {
		app.UploadsHandler = uploads.NewHandler(nil, "", "")
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		Health:           app.Health,
		ExtractHandler:   app.ExtractHandler,
		DocumentsHandler: app.DocumentsHandler,
		ChartQAHandler:   app.ChartQAHandler,
		UploadsHandler:   app.UploadsHandler,
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
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions().ForConcurrency(cfg.QA.Concurrency))
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions().ForConcurrency(cfg.QA.Concurrency))
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
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func buildLocker(ctx context.Context, cfg config.Config) (lock.Locker, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return lock.NewMemory(), nil
	}
	r, err := lock.NewRedisFromURL(ctx, cfg.RedisURL, cfg.QA.LockTTL)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis unavailable; using in-process document locks: %v", err)
			return lock.NewMemory(), nil
		}
		return nil, err
	}
	return r, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildUploadsPresign(ctx context.Context, cfg config.Config) (*s3.PresignClient, error) {
	if strings.TrimSpace(cfg.UploadsBucket) == "" {
		return nil, nil
	}
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = queue.DefaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewPresignClient(s3.NewFromConfig(awsCfg)), nil
}

func buildInference(cfg config.Config) (inference, error) {
	if cfg.LLMProvider != "openai" {
		log.Printf("bootstrap: LLM_PROVIDER=%q has no client; inference calls will report not configured", cfg.LLMProvider)
		return llm.PlaceholderClient{}, nil
	}
	client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMVisionModel)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			log.Printf("bootstrap: %v; inference calls will report not configured", err)
			return llm.PlaceholderClient{}, nil
		}
		return nil, err
	}
	return client, nil
}

func buildServices(app *App) error {
	cfg := app.Config

	var docRepo documents.Repo
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
	}

	models, err := buildInference(cfg)
	if err != nil {
		return err
	}
	invoker := llm.NewInvoker(llm.Policy{
		Timeout:     cfg.QA.LLMTimeout,
		MaxAttempts: cfg.QA.LLMMaxAttempts,
		BackoffBase: cfg.QA.LLMBackoff,
	})

	extractCfg := extract.DefaultConfig()
	if cfg.QA.MinTextChars > 0 {
		extractCfg.MinTextChars = cfg.QA.MinTextChars
	}
	if cfg.QA.FrameCount > 0 {
		extractCfg.FrameCount = cfg.QA.FrameCount
	}
	extractCfg.FetchAllowHosts = cfg.QA.FetchAllowHosts
	orch := &extract.Orchestrator{
		Config:  extractCfg,
		Vision:  models,
		Speech:  models,
		Invoker: invoker,
		Store:   app.Store,
	}
	conv, err := conversion.NewClient(cfg.OCRAPIURL, cfg.OCRAPIKey, cfg.OCRTimeout)
	switch {
	case err == nil:
		orch.Converter = conv
	case errors.Is(err, conversion.ErrNotConfigured):
		log.Printf("bootstrap: OCR_API_URL empty; remote conversion methods disabled")
	default:
		return err
	}

	engine := analysis.NewEngine(models, invoker)

	qaCfg := chartqa.DefaultConfig()
	if cfg.QA.Concurrency > 0 {
		qaCfg.Concurrency = cfg.QA.Concurrency
	}
	if cfg.QA.ChartTimeout > 0 {
		qaCfg.ChartTimeout = cfg.QA.ChartTimeout
	}
	qaSvc := &chartqa.Service{
		Docs:      docRepo,
		Extractor: orch,
		Analyzer:  engine,
		Locker:    app.Locker,
		Config:    qaCfg,
	}

	docSvc := &documents.Service{Store: app.Store, Repo: docRepo}

	app.DocumentsRepo = docRepo
	app.DocumentsService = docSvc
	app.Orchestrator = orch
	app.Analysis = engine
	app.ChartQA = qaSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.ExtractHandler = extract.NewHandler(orch)
	app.ChartQAHandler = chartqa.NewHandler(qaSvc, app.Queue)

	if app.DocumentsHandler == nil || app.ChartQAHandler == nil {
		return errors.New("failed to initialize handlers")
	}

	return nil
}
