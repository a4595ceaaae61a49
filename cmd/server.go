package cmd

import (
	"log"
	"os"
	"strconv"

	"arkive/config"
	"arkive/handlers"
	"arkive/middleware"
	"arkive/services"

	"github.com/gin-gonic/gin"
)

// NewRouter wires services, handlers and middleware into a gin engine.
// Tests use it directly with their own configuration.
func NewRouter(cfg *config.Config) *gin.Engine {
	manifests := services.NewManifestService(services.NewFFProbeProber(), services.ManifestOptions{
		ProbeAudio:  cfg.ProbeAudio,
		ExtractTags: cfg.ExtractTags,
	})
	limiter := services.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)

	manifestHandler := handlers.NewManifestHandler(cfg, manifests)
	folderHandler := handlers.NewFolderHandler(cfg)
	healthHandler := handlers.NewHealthHandler(cfg)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	setupRoutes(r, cfg, limiter, manifestHandler, folderHandler, healthHandler)

	return r
}

// setupRoutes configures all the HTTP routes. The rate limit runs before
// the key check on manifest-serving routes; health is left open.
func setupRoutes(r *gin.Engine, cfg *config.Config, limiter *services.RateLimiter, manifestHandler *handlers.ManifestHandler, folderHandler *handlers.FolderHandler, healthHandler *handlers.HealthHandler) {
	rateLimit := middleware.RateLimit(limiter)
	apiKey := middleware.APIKey(cfg.APIKey)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/manifest", rateLimit, apiKey, manifestHandler.GetManifest)
	r.GET("/generate-manifest", rateLimit, apiKey, manifestHandler.GenerateManifest)
	r.GET("/folders", apiKey, folderHandler.ListFolders)
}

// StartWebServer starts the web server
func StartWebServer(cfg *config.Config, port int) {
	// Set production mode if not specified
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.APIKey == "" {
		log.Fatalf("You must provide an API key (ARKIVE_API_KEY)")
	}
	if len(cfg.AllowedFolders) == 0 {
		log.Fatalf("You must provide at least one allowed folder (ARKIVE_ALLOWED_FOLDERS)")
	}

	r := NewRouter(cfg)

	portStr := strconv.Itoa(port)
	if serverPort := os.Getenv("SERVER_PORT"); serverPort != "" {
		portStr = serverPort
	}

	log.Printf("Arkive server starting on port %s", portStr)
	log.Printf("Archive root: %s", cfg.ArchiveRoot)
	log.Printf("Allowed folders: %v", cfg.AllowedFolders)
	if err := r.Run(":" + portStr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
