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
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/cdbmc/midistore/pkg/midistore"
	"github.com/cdbmc/midistore/pkg/midistore/api"
	"github.com/cdbmc/midistore/pkg/midistore/config"
	"github.com/cdbmc/midistore/pkg/midistore/identity"
)

func main() {
	// Load configuration from environment
	serverConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	// Build service and identity manager from configuration
	svc, accounts, err := serverConfig.BuildService()
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}

	tokens := jwtauth.New("HS256", []byte(serverConfig.JWTSecret), nil)

	server := NewHTTPServer(svc, accounts, tokens, serverConfig)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: server.Routes(),
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Midistore server starting on port %s (env: %s)", serverConfig.Port, serverConfig.Environment)
		log.Printf("Storage: %s, data dir: %q", serverConfig.StorageURL, serverConfig.DataDir)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// HTTPServer wraps the midistore service for HTTP access
type HTTPServer struct {
	service  midistore.Service
	accounts *identity.Manager
	tokens   *jwtauth.JWTAuth
	config   *config.ServerConfig
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(service midistore.Service, accounts *identity.Manager, tokens *jwtauth.JWTAuth, serverConfig *config.ServerConfig) *HTTPServer {
	return &HTTPServer{
		service:  service,
		accounts: accounts,
		tokens:   tokens,
		config:   serverConfig,
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for development
	if s.config.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	// Health check
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", api.NewAuthHandler(s.accounts, s.tokens).Routes())
		r.Mount("/records", api.NewCatalogHandler(s.service, s.tokens).Routes())
		r.Mount("/notifications", api.NewNotificationHandler(s.service, s.tokens).Routes())
	})

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":      "ok",
		"environment": s.config.Environment,
	})
}
