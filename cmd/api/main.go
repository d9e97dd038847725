//	@title			Storefront API
//	@version		1.0
//	@description	Catalog, accounts and checkout for the storefront. Product images are resized and kept in object storage.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/loja/storefront/internal/auth"
	"github.com/loja/storefront/internal/config"
	"github.com/loja/storefront/internal/db"
	"github.com/loja/storefront/internal/logger"
	"github.com/loja/storefront/internal/media"
	appMiddleware "github.com/loja/storefront/internal/middleware"
	"github.com/loja/storefront/internal/order"
	"github.com/loja/storefront/internal/product"
	"github.com/loja/storefront/internal/storage"
	"github.com/loja/storefront/internal/user"

	_ "github.com/loja/storefront/docs/swagger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	store, err := newStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("object storage init failed", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}

	// Wire dependencies: storage → media pipeline, repository → service → handler
	images := media.NewPipeline(
		media.NewTransformer(cfg.ImageMaxWidth, log, media.WithMaxPixels(cfg.ImageMaxPixels)),
		media.NewUploader(store, log),
		cfg.ImageFolder,
	)

	productSvc := product.NewService(product.NewRepository(pool), images, cfg.StorageCleanup, log)
	productHandler := product.NewHandler(productSvc)

	userSvc := user.NewService(user.NewRepository(pool), log)
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(userSvc, cfg.JWTSecret, log)
	authHandler := auth.NewHandler(authSvc)

	orderSvc := order.NewService(order.NewRepository(pool), log)
	orderHandler := order.NewHandler(orderSvc)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/search", productHandler.Search)
			r.Get("/{slug}", productHandler.Detail)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.Register)
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
				r.Get("/me", userHandler.GetMe)
				r.Put("/me", userHandler.UpdateMe)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Post("/", orderHandler.Place)
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Detail)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Use(appMiddleware.RequireStaff)
			r.Post("/products", productHandler.Create)
			r.Put("/products/{id}", productHandler.Update)
			r.Delete("/products/{id}", productHandler.Delete)
			r.Post("/products/{id}/variations", productHandler.CreateVariation)
			r.Put("/variations/{id}", productHandler.UpdateVariation)
			r.Delete("/variations/{id}", productHandler.DeleteVariation)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.StorageTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// newStorage builds the object store selected by STORAGE_DRIVER.
func newStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverSupabase:
		return storage.NewSupabaseStorage(
			cfg.StorageEndpoint,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StorageTimeout,
		)
	case config.DriverMinio:
		return storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:   cfg.StorageEndpoint,
			AccessKey:  cfg.StorageAccessKey,
			SecretKey:  cfg.StorageSecretKey,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.StoragePublicBase,
			UseSSL:     cfg.StorageUseSSL,
		}, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
