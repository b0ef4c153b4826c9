package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/daemon"
	"github.com/matheus3301/telesync/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName, Config: cfg}),
	)

	app.Run()
}
