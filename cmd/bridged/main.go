package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ssantosv/zapbridge/internal/daemon"
	"github.com/ssantosv/zapbridge/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	addrFlag := flag.String("addr", "", "listen address (overrides config listen_addr)")
	backendFlag := flag.String("backend", "", "chat backend: whatsmeow or memory (overrides config)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			SessionName:   sessionName,
			ListenAddr:    *addrFlag,
			ClientBackend: *backendFlag,
		}),
	)

	app.Run()
}
