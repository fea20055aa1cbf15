package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/balu-16/certificate-place-final/api/v1"
	"github.com/balu-16/certificate-place-final/internal/config"
	"github.com/balu-16/certificate-place-final/internal/database"
	"github.com/balu-16/certificate-place-final/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	bootLogger := logging.Must("info", true)

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := logging.Must(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("db", cfg.Database.DBName))
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	gormDB, err := database.Gorm(db)
	if err != nil {
		logger.Fatal("Failed to open access log store", zap.Error(err))
	}

	ctx := context.Background()

	// Initialize Certificates Module
	certificatesAPI, err := v1.SetupCertificatesAPI(ctx, db, gormDB, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to set up certificates API", zap.Error(err))
	}

	router := newRouter(cfg.Server.Mode, certificatesAPI)

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newRouter(mode string, certificatesAPI *v1.CertificatesAPI) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.Default()
	router.Use(cors())

	// Register Routes
	api := router.Group("/api/v1")
	{
		v1.RegisterCertificatesRoutes(api, certificatesAPI)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Certificate-Source, X-Certificate-Format, X-Certificate-Valid")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
