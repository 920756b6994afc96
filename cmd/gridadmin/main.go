package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gridadmin/internal/app"
	"gridadmin/internal/config"
	"gridadmin/internal/transports/cli"
	"gridadmin/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	lg := logger.New("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.New(buildVersion(), func(ctx context.Context, configPath string, logOut io.Writer) (cli.Runtime, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		lg = logger.NewWriter(logOut, cfg.Agent.LogLevel)
		a, err := app.NewApp(ctx, cfg, lg)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	if err := root.ExecuteContext(ctx); err != nil {
		lg.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
