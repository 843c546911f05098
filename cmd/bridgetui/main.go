package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ssantosv/zapbridge/internal/config"
	"github.com/ssantosv/zapbridge/internal/facade"
	"github.com/ssantosv/zapbridge/internal/session"
	"github.com/ssantosv/zapbridge/internal/tui"
	"go.uber.org/zap"
)

func main() {
	urlFlag := flag.String("url", "", "bridge websocket URL (overrides config gateway_url)")
	backendFlag := flag.String("backend", "", "facade backend: live or mock (overrides config)")
	flag.Parse()

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = config.Default()
	}
	if *urlFlag != "" {
		cfg.GatewayURL = *urlFlag
	}
	if *backendFlag != "" {
		cfg.FacadeBackend = *backendFlag
	}

	var client facade.Client
	switch cfg.FacadeBackend {
	case config.FacadeLive:
		client = facade.NewLive(cfg.GatewayURL, zap.NewNop())
	case config.FacadeMock:
		client = facade.NewMock()
	default:
		fmt.Fprintf(os.Stderr, "error: unknown facade backend %q\n", cfg.FacadeBackend)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	app := tui.NewApp(client)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
