package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gotrader/schwab/auth"
	"github.com/gotrader/schwab/client"
	"github.com/gotrader/schwab/db"
	"github.com/gotrader/schwab/token"
)

// defaultRedirectURL is the loopback address registered with most developer
// apps; it must match the redirect URL on the Schwab app registration exactly.
const defaultRedirectURL = "https://127.0.0.1:8182"

// appName names the credential file under ~/.credentials.
const appName = "schwab"

// timeDisplayLayout formats expiry instants for people.
const timeDisplayLayout = "2006-01-02 15:04:05 MST"

// appConfig carries everything the commands need to reach the API. Values
// come from the SCHWAB_* environment variables; flags override them.
type appConfig struct {
	AppKey      string
	AppSecret   string
	RedirectURL string
	TokenPath   string
	TokenDB     string
	CertDir     string
}

// loadConfig reads the SCHWAB_* environment variables and fills in defaults.
func loadConfig() appConfig {
	cfg := appConfig{
		AppKey:      os.Getenv("SCHWAB_APP_KEY"),
		AppSecret:   os.Getenv("SCHWAB_APP_SECRET"),
		RedirectURL: envOrDefault("SCHWAB_REDIRECT_URL", defaultRedirectURL),
		TokenPath:   os.Getenv("SCHWAB_TOKEN_PATH"),
		TokenDB:     os.Getenv("SCHWAB_TOKEN_DB"),
		CertDir:     os.Getenv("SCHWAB_CERT_DIR"),
	}
	if cfg.CertDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.CertDir = filepath.Join(home, ".credentials")
		}
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// resolveStore picks the credential backend: the sqlite store when a database
// path is configured, the JSON file store otherwise. The returned cleanup
// function must be called when the command is done with the store.
func resolveStore(cfg appConfig) (token.Store, func(), error) {
	if cfg.TokenDB != "" {
		gdb, err := db.Open(cfg.TokenDB)
		if err != nil {
			return nil, nil, fmt.Errorf("opening credential database: %w", err)
		}
		return db.NewStore(gdb), func() { _ = db.Close(gdb) }, nil
	}

	path := cfg.TokenPath
	if path == "" {
		var err error
		path, err = token.DefaultPath(appName)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving credential path: %w", err)
		}
	}
	return token.NewFileStore(path), func() {}, nil
}

// buildMessenger assembles the redirect-capture channel for interactive
// authorization. The default chain tries the loopback listener first and
// falls back to pasting the redirect URL into the terminal.
func buildMessenger(cfg appConfig, terminalOnly, browser, headless bool) auth.Messenger {
	if browser {
		m := auth.NewBrowserMessenger()
		m.Headless = headless
		return m
	}
	if terminalOnly {
		return auth.NewTerminalMessenger()
	}
	return auth.NewCompoundMessenger(
		auth.NewLoopbackMessenger(cfg.CertDir),
		auth.NewTerminalMessenger(),
	)
}

// buildChecker wires store, OAuth client, and messenger into a token checker.
// Construction may block on an interactive authorization when no usable
// record exists.
func buildChecker(ctx context.Context, cfg appConfig, m auth.Messenger) (*auth.Checker, func(), error) {
	store, cleanup, err := resolveStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	flow, err := auth.NewClient(cfg.AppKey, cfg.AppSecret, cfg.RedirectURL, nil, m)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	checker, err := auth.NewCheckerWith(ctx, store, flow)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return checker, cleanup, nil
}

// buildAPIClient builds a checker-backed API client for the data commands.
func buildAPIClient(ctx context.Context, cfg appConfig, m auth.Messenger) (*client.Client, func(), error) {
	checker, cleanup, err := buildChecker(ctx, cfg, m)
	if err != nil {
		return nil, nil, err
	}
	c, err := client.New(checker)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return c, cleanup, nil
}

// promptForInput prompts the user for input and returns the trimmed string.
func promptForInput(prompt string) string {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print(prompt)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println("Error: Failed to read input.")
		os.Exit(1)
	}
	return strings.TrimSpace(input)
}

// promptForPassword prompts the user for a secret without echoing it.
func promptForPassword(prompt string) string {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		fmt.Println("Error: Failed to read secret.")
		os.Exit(1)
	}
	fmt.Println()
	return strings.TrimSpace(string(secret))
}

// fillCredentials prompts for the app key and secret when they are missing
// from flags and environment.
func fillCredentials(cmd *cobra.Command, cfg *appConfig) {
	if cfg.AppKey == "" {
		cmd.Println("The Schwab developer app key and secret are required.")
		cfg.AppKey = promptForInput("App key: ")
	}
	if cfg.AppSecret == "" {
		cfg.AppSecret = promptForPassword("App secret: ")
	}
}

// truncateSecret shortens a credential for display and logs.
func truncateSecret(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:10] + "..."
}
