package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/espsense1/esp.sensor_server/src/production/ESP.ApiService/controllers"
	"gitlab.com/espsense1/esp.sensor_server/src/production/ESP.ApiService/implementation/ota"
	container "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Container"
	espingestor "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Ingestor"
	implementation "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Repository/Implementation"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting sensor server")

	config := ctr.GetConfig()

	// Open the SQLite store and migrate the readings table
	db, err := ctr.GetDatabase()
	if err != nil {
		logger.FatalWithError(err, "Failed to open database")
	}

	// Staging directory for firmware uploads
	if err := ctr.EnsureUploadDir(); err != nil {
		logger.FatalWithError(err, "Failed to create upload directory")
	}

	// Create repositories and services
	readingRepo := implementation.NewSqliteReadingRepository(db)
	relayService := ota.NewRelayService(&config.OTA, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	readingController := controllers.NewReadingController(readingRepo, logger)
	otaController := controllers.NewOtaController(relayService, &config.OTA, logger)
	healthController := controllers.NewHealthController(readingRepo, logger)

	readingController.RegisterRoutes(router)
	otaController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	// Optional MQTT ingestion path
	if config.MQTT.Enabled {
		ingestor := espingestor.New(config, readingRepo, logger)
		if err := ingestor.Start(); err != nil {
			logger.FatalWithError(err, "Failed to start MQTT ingestor")
		}
		ctr.AddCleanupFunc(func() error {
			ingestor.Stop()
			return nil
		})
	}

	// Get port from configuration
	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("Sensor server running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
