package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumichat/billing/internal/app"
	"github.com/lumichat/billing/internal/config"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (default configs/config.yaml, CONFIG_PATH overrides)")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := config.AppConfig{ConfigPath: *configPath}

	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
			log.WithError(errMigrate).Fatal("migrate failed")
		}
		log.Info("migrations applied")
		return
	}

	if errRun := app.RunServer(ctx, appCfg); errRun != nil {
		log.WithError(errRun).Fatal("server exited")
	}
}
