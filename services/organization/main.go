package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/saaslab/org-management-system/shared/config"
	"github.com/saaslab/org-management-system/shared/events"
	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/provision"
	"github.com/saaslab/org-management-system/shared/registry"
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

	// Create registry tables on startup
	if err := db.AutoMigrate(&models.Organization{}, &models.AdminUser{}, &models.ProvisionRepair{}); err != nil {
		log.Fatal("Failed to migrate master database:", err)
	}

	reg := registry.New(db)
	repairs := registry.NewRepairQueue(db)

	prov, err := provision.NewProvisioner(cfg.OrgDB)
	if err != nil {
		log.Fatal("Failed to connect to organization storage engine:", err)
	}

	producer := events.NewProducer(cfg.Kafka)
	defer producer.Close()

	// Initialize Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Organization service is healthy", nil)
	})

	// Organization routes
	org := router.Group("/org")
	{
		org.POST("/create", handleCreateOrganization(reg, prov, repairs, producer))
		org.GET("/get", handleGetOrganization(reg))
		org.GET("/list", handleListOrganizations(reg))
	}

	// Start server
	port := os.Getenv("ORG_SERVICE_PORT")
	if port == "" {
		port = "8001"
	}

	logrus.Infof("Organization service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start organization service:", err)
	}
}
