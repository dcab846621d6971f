package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/starboard/internal/bot"
	"github.com/robalyx/starboard/internal/setup"
	"github.com/robalyx/starboard/internal/setup/telemetry"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	// shutdownTimeout bounds how long running handlers may take after a signal.
	shutdownTimeout = 30 * time.Second
)

func main() {
	ctx := context.Background()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	starboard, err := bot.New(app)
	if err != nil {
		log.Printf("Failed to create bot: %v", err)
		return
	}

	if err := starboard.Start(ctx); err != nil {
		log.Printf("Failed to start bot: %v", err)
		return
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	starboard.Close(shutdownCtx)
}
