package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"sma-backtest/internal/logging"
)

var (
	configPath string
	logLevel   string
)

func main() {
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "smabt"
	app.Usage = "run SMA crossover backtests from the command line"
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to YAML config; strategy flags override its values",
			EnvVars:     []string{"CONFIG_FILE"},
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "warn",
			Usage:       "trace, debug, info, warn or error",
			EnvVars:     []string{"LOG_LEVEL"},
			Destination: &logLevel,
		},
	}
	app.Before = func(*cli.Context) error {
		logging.Setup(logging.Options{Level: logLevel, Format: "console"})
		return nil
	}
	app.Commands = []*cli.Command{
		backtestCommand,
		compareCommand,
		fetchCommand,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
