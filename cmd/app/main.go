package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"btce_go/internal/app"

	"github.com/urfave/cli/v2"

	_ "net/http/pprof" // For pprof profiling
)

var version = "dev"

func main() {
	var (
		opts      app.Options
		pprofAddr string
	)

	cliApp := cli.NewApp()
	cliApp.Name = "btce_go"
	cliApp.Version = version
	cliApp.Usage = "BTC-e trading client: market data, account state and order commands"
	cliApp.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "configs/config.yaml",
			Usage:       "path to the YAML configuration",
			Destination: &opts.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "env-file",
			Value:       ".env",
			Usage:       "dotenv file holding BTCE_API_KEY / BTCE_API_SECRET",
			Destination: &opts.EnvFile,
		},
		&cli.StringFlag{
			Name:        "db",
			Usage:       "SQLite database path, overrides storage.path",
			Destination: &opts.DBPath,
		},
		&cli.StringFlag{
			Name:        "pprof",
			Usage:       "pprof listen address, e.g. localhost:6060 (disabled when empty)",
			Destination: &pprofAddr,
		},
	}
	cliApp.Commands = commands(&opts)
	cliApp.Action = func(c *cli.Context) error {
		// 1. Pprof Server (for performance profiling)
		if pprofAddr != "" {
			go func() {
				slog.Info("🕵️ Pprof server started", slog.String("addr", pprofAddr))
				if err := http.ListenAndServe(pprofAddr, nil); err != nil {
					slog.Error("Pprof server failed", slog.Any("error", err))
				}
			}()
		}

		// 2. System Bootstrapping
		bootstrap := app.NewBootstrap()
		if err := bootstrap.Initialize(opts); err != nil {
			return fmt.Errorf("bootstrapping failed: %w", err)
		}

		// 3. Graceful Shutdown Context
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		return bootstrap.Run(ctx)
	}

	if err := cliApp.RunContext(context.Background(), os.Args); err != nil {
		slog.Error("❌ Exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}
