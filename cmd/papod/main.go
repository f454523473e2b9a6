package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/gfranca/papo/internal/app"
	"github.com/gfranca/papo/internal/config"
	"github.com/gfranca/papo/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	serverFlag := flag.String("server", "", "websocket endpoint (overrides config)")
	userFlag := flag.String("user", "", "log in as this user id (replaces the saved session)")
	tokenFlag := flag.String("token", "", "auth token for -user")
	nameFlag := flag.String("name", "", "display name for -user")
	flag.Parse()

	// A .env next to the binary feeds PAPO_* overrides.
	_ = godotenv.Load()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = &config.Config{}
	}
	config.ApplyEnv(cfg)

	serverURL := cfg.ServerURL
	if *serverFlag != "" {
		serverURL = *serverFlag
	}
	if serverURL == "" {
		fmt.Fprintln(os.Stderr, "error: no server configured: set server_url in config.toml, PAPO_SERVER_URL, or -server")
		os.Exit(1)
	}

	if *userFlag != "" && *tokenFlag == "" {
		fmt.Fprintln(os.Stderr, "error: -user requires -token")
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{
			SessionName: sessionName,
			ServerURL:   serverURL,
			UserID:      *userFlag,
			Token:       *tokenFlag,
			FullName:    *nameFlag,
		}),
	).Run()
}
