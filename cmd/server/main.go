package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/ivmelnik/escrowd/internal/server"
	"github.com/ivmelnik/escrowd/internal/server/config"
)

func main() {

	ctx := context.Background()

	// Optional .env so DSNs and secrets can live outside the repo.
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
