package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/gatewaylab/payu-gateway/infra/config"
	"github.com/gatewaylab/payu-gateway/infra/logger"
	"github.com/gatewaylab/payu-gateway/infra/middle"
	"github.com/gatewaylab/payu-gateway/infra/opensearch"
	"github.com/gatewaylab/payu-gateway/infra/response"
	"github.com/gatewaylab/payu-gateway/payment"
	"github.com/gatewaylab/payu-gateway/payu"
	"github.com/gatewaylab/payu-gateway/router"
)

var (
	cfg              *config.App
	openSearchLogger *opensearch.Logger
)

func init() {
	// Load Env; a missing .env file is fine in containerized deployments
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Config Error: %v", err)
	}

	if cfg.EnableOpenSearch {
		osClient, err := opensearch.NewClient(opensearch.Config{
			URL:      cfg.OpenSearchURL,
			Username: cfg.OpenSearchUser,
			Password: cfg.OpenSearchPass,
		})
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			openSearchLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}

	minLevel := logger.LevelInfo
	if cfg.Environment == "sandbox" {
		minLevel = logger.LevelDebug
	}
	logger.InitGlobalLogger(openSearchLogger, logger.SystemLoggerConfig{
		EnableConsole:    true,
		EnableOpenSearch: openSearchLogger != nil,
		MinLevel:         minLevel,
		Service:          "payu-gateway",
		Environment:      cfg.Environment,
	})
}

func main() {
	store, err := payment.NewStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Database Error: %v", err)
	}
	defer store.Close()

	client := payu.NewClient(payu.ClientConfig{
		APIURL:      cfg.APIURL,
		PosID:       cfg.MerchantPosID,
		OAuthID:     cfg.OAuthClientID,
		OAuthSecret: cfg.OAuthClientSecret,
	})
	processor := payu.NewProcessor(client, payu.ProcessorConfig{
		SecondKey:         cfg.SecondKey,
		NotifyURL:         cfg.NotifyURL,
		ContinueURL:       cfg.ContinueURL,
		AllowMD5Callbacks: cfg.AllowMD5Callbacks,
	})

	// Chi Define Routes
	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.IPWhitelistMiddleware())
	r.Use(middle.RequestValidationMiddleware())
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.RequestLoggingMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length", "Access-Control-Allow-Origin"},
		AllowCredentials: true,
		MaxAge:           300, // Preflight cache time (second)
	}))

	router.Routes(r, store, processor)

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusNotFound, response.Response{Success: false, Message: "Not Found"})
	})

	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err.Error())
		}
	}()

	log.Println("API is running on", cfg.Port)

	// Block until a signal is received
	<-ctx.Done()

	log.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
