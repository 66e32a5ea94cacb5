package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/app"
	"github.com/relabs-tech/teleop_rover/internal/config"
)

func main() {
	log.Println("starting rover console (MQTT subscriber)")

	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	} else if _, err := os.Stat(config.DefaultPath); err == nil {
		path = config.DefaultPath
	}

	// Load configuration
	if err := config.InitGlobal(path); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, config.Get(), os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
