package main

import (
	"context"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"road-report-service/config"
	"road-report-service/database"
	"road-report-service/email"
	"road-report-service/handlers"
	"road-report-service/line"
	"road-report-service/middleware"
	"road-report-service/rabbitmq"
	"road-report-service/services"
	"road-report-service/storage"
)

func main() {
	// Load .env if present
	godotenv.Load()

	cfg := config.Load()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureTables(context.Background()); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	photos, err := storage.NewPhotoStore(cfg.PhotoDir, cfg.PhotoBaseURL)
	if err != nil {
		log.Fatalf("Failed to set up photo store: %v", err)
	}

	var publisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.Warnf("Analysis publisher unavailable, continuing without it: %v", err)
		} else {
			defer publisher.Close()
			log.Infof("Analysis publisher connected (exchange=%s)", cfg.AMQPExchange)
		}
	}

	reportService := services.NewReportService(cfg, db, photos,
		line.NewClient(cfg), email.NewSender(cfg), publisher)

	router := setupRouter(cfg, reportService, photos)

	log.Infof("Road report service starting on %s:%s", cfg.Host, cfg.Port)
	if err := router.Run(cfg.Host + ":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupRouter(cfg *config.Config, reportService *services.ReportService, photos *storage.PhotoStore) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Stored photos are public by URL
	router.Static("/photos", photos.Dir())

	h := handlers.NewHandlers(cfg, reportService)
	h.SetupRoutes(router, middleware.AuthMiddleware(cfg))

	return router
}
