package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"autotrade/internal/routes"
	"autotrade/pkg/config"
)

func main() {
	// Load .env if present (real deployments set the environment directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	// Initialize database
	config.InitDB()

	// Run schema migrations the ORM cannot express (partial index, trigger)
	if os.Getenv("RUN_MIGRATIONS") == "true" {
		config.ExecuteMigrations()
	}

	// Set up router
	r := routes.SetupRouter()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
