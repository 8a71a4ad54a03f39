package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"plaxrec/internal/config"
	"plaxrec/internal/db"
	"plaxrec/internal/logger"
	"plaxrec/migrations"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
)

func main() {
	_ = godotenv.Load()

	command := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "plaxrec-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *command,
	})
	if cfg.DB.Driver != config.DriverPostgres {
		logg.Warn(ctx, "migrations only apply to the postgres driver")
		return
	}

	database, err := db.Connect(cfg.DB.URL, db.PoolOptions{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
	})
	requireResource(ctx, logg, "database", err)
	defer database.Close()

	goose.SetBaseFS(migrations.FS)
	err = goose.SetDialect("postgres")
	requireResource(ctx, logg, "goose dialect", err)

	logg.Info(ctx, "migrate ready")
	if err := goose.RunContext(ctx, *command, database.DB, "."); err != nil {
		logg.Error(ctx, "goose "+*command+" failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
