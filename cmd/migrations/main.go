package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/repository/postgres"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/config"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/logging"
)

const usage = `usage: migrations [flags] <command> [args]

commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version`

func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "", "Postgres connection string (defaults to DATABASE_URL / POSTGRES_*)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", logging.Err(err))
		os.Exit(1)
	}
	log := logging.New(cfg.Env, os.Stdout)

	if dsn == "" {
		dsn = cfg.Postgres.DSN()
	}
	if dsn == "" {
		log.Error("no database configured; set DATABASE_URL or POSTGRES_DB")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		log.Error("failed to connect", logging.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	command := flag.Arg(0)
	if err := postgres.Migrate(ctx, db, command, flag.Args()[1:]...); err != nil {
		log.Error("migration failed", slog.String("command", command), logging.Err(err))
		os.Exit(1)
	}

	log.Info("migration finished", slog.String("command", command))
}
