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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/op/go-logging"

	"cloudgallery/internal/config"
	"cloudgallery/internal/gallery"
	"cloudgallery/internal/handler"
	"cloudgallery/internal/logger"
	"cloudgallery/internal/search"
	"cloudgallery/internal/service"
	"cloudgallery/internal/store"
)

func main() {
	log := logger.InitLogger("cloudgallery", logging.INFO)

	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	storeConfig, err := store.NewConfig(".store.env")
	if err != nil {
		log.Fatalf("Failed to load store config: %v", err)
	}

	assetStore, err := store.NewStore(storeConfig, log)
	if err != nil {
		log.Fatalf("Failed to create asset store client: %v", err)
	}
	log.Infof("Using %s asset store backend", storeConfig.Backend)

	registryService := service.NewRegistryService(assetStore, appConfig.Gallery.Folder, log)
	mutationService := service.NewMutationService(assetStore, registryService, log)
	searchService := search.NewService(appConfig.Search.ServiceURL, log)
	viewEngine := gallery.NewEngine(searchService.Search, log)

	galleryHandler := handler.NewGalleryHandler(registryService, mutationService, viewEngine, log)
	searchHandler := search.NewHandler(searchService, registryService, log)

	// Wake the sidecar early so the first semantic query is fast.
	go searchService.Prewarm()

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/files", galleryHandler.ListFiles)
		r.Post("/files", galleryHandler.UploadFile)
		r.Post("/mutate", galleryHandler.Mutate)

		r.Get("/search", searchHandler.Search)
		r.Post("/search", searchHandler.Search)
		r.Post("/analyze", searchHandler.Analyze)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server forced to shutdown: %v", err)
	}

	log.Info("Server exited properly")
}
