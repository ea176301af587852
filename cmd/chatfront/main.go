package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"chatfront/internal/app"
	"chatfront/pkg/config"
	"chatfront/pkg/logger"
	"chatfront/pkg/shutdown"
	"chatfront/pkg/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// .env first so env overrides in LoadEffective see it.
	_ = godotenv.Load(".env")

	showVersion := flag.Bool("version", false, "print version and exit")
	flags := config.ParseConfigFlags()

	if *showVersion {
		fmt.Printf("chatfront %s (%s) built %s\n", version, commit, buildDate)
		return
	}

	eff, err := config.LoadEffective(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("initialization failed", err, eff.DBPath)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("server_exit", "error", err)
		_ = store.Close()
		os.Exit(1)
	}

	if err := store.Close(); err != nil {
		logger.Warn("context_store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}
