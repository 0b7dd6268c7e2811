package main

import (
	"context"
	"log"
	"os"
	"time"

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
	if err := db.AutoMigrate(&models.ProvisionRepair{}); err != nil {
		log.Fatal("Failed to migrate master database:", err)
	}

	prov, err := provision.NewProvisioner(cfg.OrgDB)
	if err != nil {
		log.Fatal("Failed to connect to organization storage engine:", err)
	}

	reconciler := NewReconciler(registry.NewRepairQueue(db), registry.New(db), prov)

	// Kafka events trigger prompt processing of freshly queued repairs
	consumer := NewKafkaConsumer(cfg.Kafka)
	defer consumer.Close()
	go consumer.ConsumeRepairEvents(func(event events.RepairEvent) {
		logrus.WithFields(logrus.Fields{
			"repair_id":    event.RepairID,
			"organization": event.OrganizationName,
		}).Info("Received repair event")
		reconciler.ProcessDue(context.Background())
	})

	// Poll sweep catches repairs whose event was lost and retries with
	// elapsed backoff
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			reconciler.ProcessDue(context.Background())
		}
	}()

	// Health endpoint
	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Reconciler service is healthy", nil)
	})

	port := os.Getenv("RECONCILER_SERVICE_PORT")
	if port == "" {
		port = "8003"
	}

	logrus.Infof("Reconciler service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start reconciler service:", err)
	}
}
