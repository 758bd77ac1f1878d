package main

import (
	"log"

	"github.com/noxchat/noxd/internal/config"
	"github.com/noxchat/noxd/internal/db"
)

func main() {
	cfg := config.New()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	if err := db.SeedTestData(database); err != nil {
		log.Fatalf("failed to seed data: %v", err)
	}

	log.Println("Seeding complete.")
}
