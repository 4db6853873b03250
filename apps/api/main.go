package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	amendmentshandler "github.com/homebasehq/homebase/domains/amendments/be/handler"
	amendmentsrepo "github.com/homebasehq/homebase/domains/amendments/be/repo"
	amendmentsservice "github.com/homebasehq/homebase/domains/amendments/be/service"
	billinghandler "github.com/homebasehq/homebase/domains/billing/be/handler"
	billingrepo "github.com/homebasehq/homebase/domains/billing/be/repo"
	billingservice "github.com/homebasehq/homebase/domains/billing/be/service"
	contenthandler "github.com/homebasehq/homebase/domains/content/be/handler"
	contentrepo "github.com/homebasehq/homebase/domains/content/be/repo"
	contentservice "github.com/homebasehq/homebase/domains/content/be/service"
	documentshandler "github.com/homebasehq/homebase/domains/documents/be/handler"
	documentsrepo "github.com/homebasehq/homebase/domains/documents/be/repo"
	documentsservice "github.com/homebasehq/homebase/domains/documents/be/service"
	inviteshandler "github.com/homebasehq/homebase/domains/invites/be/handler"
	invitesrepo "github.com/homebasehq/homebase/domains/invites/be/repo"
	invitesservice "github.com/homebasehq/homebase/domains/invites/be/service"
	leaseshandler "github.com/homebasehq/homebase/domains/leases/be/handler"
	leasesrepo "github.com/homebasehq/homebase/domains/leases/be/repo"
	leasesservice "github.com/homebasehq/homebase/domains/leases/be/service"
	metershandler "github.com/homebasehq/homebase/domains/meters/be/handler"
	metersrepo "github.com/homebasehq/homebase/domains/meters/be/repo"
	metersservice "github.com/homebasehq/homebase/domains/meters/be/service"
	propertieshandler "github.com/homebasehq/homebase/domains/properties/be/handler"
	propertiesrepo "github.com/homebasehq/homebase/domains/properties/be/repo"
	propertiesservice "github.com/homebasehq/homebase/domains/properties/be/service"
	workordershandler "github.com/homebasehq/homebase/domains/workorders/be/handler"
	workordersrepo "github.com/homebasehq/homebase/domains/workorders/be/repo"
	workordersservice "github.com/homebasehq/homebase/domains/workorders/be/service"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/metrics"
	platformmiddleware "github.com/homebasehq/homebase/platform/go/middleware"
	"github.com/homebasehq/homebase/platform/go/persistence"
	"github.com/homebasehq/homebase/platform/go/storage"
)

type config struct {
	Port             string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL      string        `env:"DATABASE_URL,required"`
	BootstrapSchema  bool          `env:"BOOTSTRAP_SCHEMA" envDefault:"false"`
	AuthProvider     string        `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | dev
	StorageBackend   string        `env:"STORAGE_BACKEND" envDefault:"gcs"`    // gcs | local
	StorageBucket    string        `env:"STORAGE_BUCKET"`                      // required when STORAGE_BACKEND=gcs
	StoragePrefix    string        `env:"STORAGE_PREFIX" envDefault:"documents"`
	StorageLocalDir  string        `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"` // used when STORAGE_BACKEND=local
	ContractValidate bool          `env:"CONTRACT_VALIDATE" envDefault:"true"`
	ContractPath     string        `env:"CONTRACT_PATH" envDefault:"contracts/leasing.yaml"`
}

func main() {
	ctx := context.Background()

	// Local .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if cfg.BootstrapSchema {
		if err := persistence.Bootstrap(ctx, pool); err != nil {
			logger.Fatal("bootstrap schema", zap.Error(err))
		}
		logger.Info("database schema bootstrapped")
	}

	propertyStore, err := persistence.NewPropertyStore(pool)
	if err != nil {
		logger.Fatal("init property store", zap.Error(err))
	}
	leaseStore, err := persistence.NewLeaseStore(pool)
	if err != nil {
		logger.Fatal("init lease store", zap.Error(err))
	}
	amendmentStore, err := persistence.NewAmendmentStore(pool)
	if err != nil {
		logger.Fatal("init amendment store", zap.Error(err))
	}
	inviteStore, err := persistence.NewInviteStore(pool)
	if err != nil {
		logger.Fatal("init invite store", zap.Error(err))
	}
	billingStore, err := persistence.NewBillingStore(pool)
	if err != nil {
		logger.Fatal("init billing store", zap.Error(err))
	}
	meterStore, err := persistence.NewMeterStore(pool)
	if err != nil {
		logger.Fatal("init meter store", zap.Error(err))
	}
	workOrderStore, err := persistence.NewWorkOrderStore(pool)
	if err != nil {
		logger.Fatal("init work order store", zap.Error(err))
	}
	contentStore, err := persistence.NewContentStore(pool)
	if err != nil {
		logger.Fatal("init content store", zap.Error(err))
	}
	documentStore, err := persistence.NewDocumentStore(pool)
	if err != nil {
		logger.Fatal("init document store", zap.Error(err))
	}

	var blobs storage.BlobStore
	switch cfg.StorageBackend {
	case "gcs":
		if cfg.StorageBucket == "" {
			logger.Fatal("storage bucket required when STORAGE_BACKEND=gcs")
		}
		gcsClient, err := gcsstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("init gcs client", zap.Error(err))
		}
		defer gcsClient.Close()
		blobs, err = storage.NewGCSStore(gcsClient, cfg.StorageBucket, cfg.StoragePrefix)
		if err != nil {
			logger.Fatal("init gcs blob store", zap.Error(err))
		}
	case "local":
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			logger.Fatal("storage local dir required when STORAGE_BACKEND=local")
		}
		blobs, err = storage.NewLocalStore(cfg.StorageLocalDir)
		if err != nil {
			logger.Fatal("init local blob store", zap.Error(err))
		}
	default:
		logger.Fatal("invalid STORAGE_BACKEND (use gcs or local)", zap.String("backend", cfg.StorageBackend))
	}

	changesValidator := persistence.NewChangesValidator()

	leaseService := leasesservice.New(leasesrepo.NewPostgresRepository(leaseStore, propertyStore, inviteStore))
	leaseHandler := leaseshandler.New(leaseService, logger)

	amendmentService := amendmentsservice.New(
		amendmentsrepo.NewPostgresRepository(amendmentStore, leaseStore, propertyStore), changesValidator)
	amendmentHandler := amendmentshandler.New(amendmentService, logger)

	inviteService := invitesservice.New(invitesrepo.NewPostgresRepository(inviteStore, leaseStore, propertyStore))
	inviteHandler := inviteshandler.New(inviteService, logger)

	propertyService := propertiesservice.New(propertiesrepo.NewPostgresRepository(propertyStore))
	propertyHandler := propertieshandler.New(propertyService, logger)

	billingService := billingservice.New(billingrepo.NewPostgresRepository(billingStore, leaseStore, propertyStore))
	billingHandler := billinghandler.New(billingService, logger)

	meterService := metersservice.New(metersrepo.NewPostgresRepository(meterStore, propertyStore))
	meterHandler := metershandler.New(meterService, logger)

	workOrderService := workordersservice.New(workordersrepo.NewPostgresRepository(workOrderStore, propertyStore))
	workOrderHandler := workordershandler.New(workOrderService, logger)

	contentService := contentservice.New(contentrepo.NewPostgresRepository(contentStore))
	contentHandler := contenthandler.New(contentService, logger)

	documentService := documentsservice.New(
		documentsrepo.NewPostgresRepository(documentStore, leaseStore, propertyStore), blobs)
	documentHandler := documentshandler.New(documentService, logger)

	authMiddleware := buildAuthMiddleware(ctx, cfg, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))
	rootRouter.Use(metrics.Middleware)

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Method(http.MethodGet, "/metrics", metrics.Handler())

	registerDocsRoutes(rootRouter, logger)

	apiRouter := chi.NewRouter()
	apiRouter.Use(authMiddleware)
	apiRouter.Use(platformmiddleware.RequestTrace)

	if cfg.ContractValidate {
		apiRouter.Use(mustNewSpecValidator(logger, cfg.ContractPath))
	}

	leaseHandler.Routes(apiRouter)
	amendmentHandler.Routes(apiRouter)
	inviteHandler.Routes(apiRouter)
	propertyHandler.Routes(apiRouter)
	billingHandler.Routes(apiRouter)
	meterHandler.Routes(apiRouter)
	workOrderHandler.Routes(apiRouter)
	contentHandler.Routes(apiRouter)
	documentHandler.Routes(apiRouter)

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
