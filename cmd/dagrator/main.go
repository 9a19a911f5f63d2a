package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/lmittmann/tint"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/bcomnes/dagrator"
	"github.com/bcomnes/dagrator/internal/cli"
)

var versionString = dagrator.Version

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := colorable.NewColorable(os.Stderr)
	lvl := &slog.LevelVar{}
	lvl.Set(slog.LevelInfo)
	logger := slog.New(
		tint.NewHandler(stderr, &tint.Options{
			Level:      lvl,
			NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
			TimeFormat: "15:04:05.000",
		}),
	)
	slog.SetDefault(logger)

	appCtx := &cli.Context{
		Ctx:      ctx,
		FS:       osfs.New(),
		Logger:   logger,
		LogLevel: lvl,
		Stdout:   colorable.NewColorable(os.Stdout),
		Stderr:   stderr,
	}
	if err := cli.Run(appCtx, "dagrator "+versionString, os.Args[1:]); err != nil {
		cli.LogError(logger, err)
		stop()
		os.Exit(1)
	}
}
