package main

import (
	"log"
	"net/http"

	"gold-monitor/internal/api"
	"gold-monitor/internal/cache"
	"gold-monitor/internal/config"
	"gold-monitor/internal/services/convert"
	"gold-monitor/internal/services/goldapi"
	"gold-monitor/internal/services/news"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.GoldAPIKey == "" {
		log.Println("⚠️  GOLD_API_KEY not set, price requests will fail")
	}
	if cfg.GNewsAPIKey == "" {
		log.Println("⚠️  GNEWS_API_KEY not set, news requests will fail")
	}

	// One cache per process, shared by prices, FX rates and news
	store := cache.New()

	converter := convert.NewConverter(cfg.FXAPIBaseURL, cfg.HTTPTimeout, store)
	goldClient := goldapi.NewClient(cfg.GoldAPIBaseURL, cfg.GoldAPIKey, cfg.HTTPTimeout, converter)
	newsClient := news.NewClient(cfg.GNewsBaseURL, cfg.GNewsAPIKey, cfg.HTTPTimeout)

	r := gin.Default()
	r.Use(api.RequestID(), api.CORS())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cacheEntries": store.Len()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, store, goldClient, newsClient, cfg)

	log.Printf("Server starting on port %s (base currency %s, singleflight=%t)", cfg.Port, cfg.BaseCurrency, cfg.CacheSingleflight)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
