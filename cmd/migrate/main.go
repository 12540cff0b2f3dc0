package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/perse-cms/perse/internal/config"
	"github.com/perse-cms/perse/internal/database"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] up|down\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	direction := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.Database.Driver != config.DriverPostgres {
		logger.Fatal("versioned migrations require postgres; other drivers migrate on server start",
			zap.String("driver", cfg.Database.Driver))
	}
	dsn := cfg.Database.MigrateURL()

	switch direction {
	case "up":
		err = database.MigrateUp(dsn)
	case "down":
		err = database.MigrateDown(dsn)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("migration failed", zap.String("direction", direction), zap.Error(err))
	}
	logger.Info("migration complete", zap.String("direction", direction))
}
