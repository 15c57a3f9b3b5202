package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/cashpro/pkg/cli"
	"github.com/platinummonkey/cashpro/pkg/config"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

func main() {
	configPath := flag.String("config", os.Getenv("CASHPRO_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &cli.Env{
		Config: cfg,
		Logger: observability.NewLogger(cfg.Observability.LogLevel, os.Stderr).WithField("component", "cashpro-admin"),
		Out:    os.Stdout,
	}

	if err := cli.NewRootCommand().Execute(ctx, env, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
