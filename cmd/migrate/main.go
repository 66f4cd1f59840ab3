package main

import (
	"flag"
	"log"
	"os"

	"ledroitcheck-service/internal/db/migrate"

	"github.com/joho/godotenv"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	dsn := flag.String("database-url", "", "postgres connection string (defaults to DATABASE_URL)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("[MIGRATE] No .env file found, relying on system env vars")
	}
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}

	if err := migrate.Run(*dsn, *direction); err != nil {
		log.Fatalf("[MIGRATE] %s failed: %v", *direction, err)
	}
	log.Printf("[MIGRATE] %s complete", *direction)
}
