package main

import (
	"context"
	"log"

	"github.com/dpavlenko/stayhub/internal/client/cli"
	"github.com/dpavlenko/stayhub/internal/client/config"
)

func main() {

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(context.Background())

}
