// Package main Sales Co-Pilot API Server
//
//	@title			Sales Co-Pilot API
//	@version		1.0
//	@description	Chat backend for the product-scoped sales assistant: intent routing, document grounding, and engineering-escalation safety
//
//	@host		localhost:8080
//	@BasePath	/
package main

import (
	"log"

	"github.com/joho/godotenv"

	"sales-copilot/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	log.Println("Starting Sales Co-Pilot server...")
	srv := server.NewServer()
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
