package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/saaslab/org-management-system/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	orgServiceURL := os.Getenv("ORG_SERVICE_URL")
	if orgServiceURL == "" {
		orgServiceURL = "http://localhost:8001"
	}
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		authServiceURL = "http://localhost:8002"
	}

	serviceClients := &ServiceClients{
		OrganizationService: NewServiceClient("organization_service", orgServiceURL),
		AuthService:         NewServiceClient("auth_service", authServiceURL),
	}

	// Initialize Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Root info endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Organization Management System API",
			"version": "1.0.0",
		})
	})

	// Aggregate health endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "API Gateway is healthy", serviceClients.GetServiceStatus())
	})

	// Organization routes
	org := router.Group("/org")
	{
		org.POST("/create", serviceClients.OrganizationService.ProxyRequest)
		org.GET("/get", serviceClients.OrganizationService.ProxyRequest)
		org.GET("/list", serviceClients.OrganizationService.ProxyRequest)
	}

	// Admin authentication routes
	admin := router.Group("/admin")
	{
		admin.POST("/login", serviceClients.AuthService.ProxyRequest)
		admin.GET("/me", serviceClients.AuthService.ProxyRequest)
		admin.POST("/users", serviceClients.AuthService.ProxyRequest)
		admin.GET("/users", serviceClients.AuthService.ProxyRequest)
	}

	// Start server
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8000"
	}

	logrus.Infof("API Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start API gateway:", err)
	}
}
