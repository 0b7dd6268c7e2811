package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/saaslab/org-management-system/shared/auth"
	"github.com/saaslab/org-management-system/shared/config"
	"github.com/saaslab/org-management-system/shared/middleware"
	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/registry"
	"github.com/saaslab/org-management-system/shared/tenantdb"
	"github.com/saaslab/org-management-system/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// Initialize master database
	db, err := config.ConnectMaster(cfg)
	if err != nil {
		log.Fatal("Failed to connect to master database:", err)
	}
	if err := db.AutoMigrate(&models.Organization{}, &models.AdminUser{}); err != nil {
		log.Fatal("Failed to migrate master database:", err)
	}

	// Initialize Redis for login throttling
	redisClient, err := utils.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()
	throttle := utils.NewLoginThrottle(redisClient, 10, 15*time.Minute)

	reg := registry.New(db)
	tokens, err := auth.NewTokenService(cfg.JWT)
	if err != nil {
		log.Fatal("Failed to initialize token service:", err)
	}
	gateway := auth.NewGateway(reg, tokens, cfg.JWT.TokenTTL())
	resolver := tenantdb.NewResolver(cfg.OrgDB)

	authMiddleware := middleware.NewAuthMiddleware(gateway)

	// Initialize Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Auth service is healthy", nil)
	})

	// Admin routes
	admin := router.Group("/admin")
	{
		admin.POST("/login", handleLogin(gateway, throttle))
		admin.GET("/me", authMiddleware.RequireAdmin(), handleMe())
		admin.POST("/users", authMiddleware.RequireAdmin(), handleCreateOrgUser(resolver))
		admin.GET("/users", authMiddleware.RequireAdmin(), handleGetOrgUser(resolver))
	}

	// Start server
	port := os.Getenv("AUTH_SERVICE_PORT")
	if port == "" {
		port = "8002"
	}

	logrus.Infof("Auth service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start auth service:", err)
	}
}
