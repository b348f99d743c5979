package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/aurthurm/WidgetMaster/connector"
	"github.com/aurthurm/WidgetMaster/query"
	"github.com/aurthurm/WidgetMaster/registry"
	"github.com/aurthurm/WidgetMaster/status"
)

// getEnv reads an environment variable with a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func main() {
	// .env is optional; environment variables win either way.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	port := getEnv("PORT", "8080")
	dbDriver := getEnv("DATABASE_DRIVER", "sqlite")
	dbDSN := getEnv("DATABASE_DSN", "beakdash.db")

	log.Printf("Configuration:")
	log.Printf("  Port: %s", port)
	log.Printf("  Database driver: %s", dbDriver)

	store, err := registry.Open(dbDriver, dbDSN)
	if err != nil {
		log.Fatalf("Failed to open registry: %v", err)
	}
	defer store.Close()

	executor := connector.NewExecutor(&http.Client{Timeout: 30 * time.Second}, nil)
	hub := status.NewHub()
	defer hub.Shutdown()

	router := gin.Default()
	registry.NewAPI(store).RegisterRoutes(router)
	query.NewAPI(store, executor, hub).RegisterRoutes(router)
	router.GET("/ws/status", func(c *gin.Context) {
		hub.ServeHTTP(c.Writer, c.Request)
	})

	listenAddr := fmt.Sprintf(":%s", port)
	log.Printf("Starting BeakDash data service on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
