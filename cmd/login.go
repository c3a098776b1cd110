package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gotrader/schwab/auth"
)

// loginCmd creates the command that runs the interactive authorization flow
// and persists the resulting credential record.
func loginCmd() *cobra.Command {
	var terminalOnly, browser, headless bool
	var certDir, tokenPath, tokenDB string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize with Schwab and save the credential record",
		Long: "Runs the three-legged OAuth flow against the Schwab API and saves the refresh\n" +
			"and access tokens. By default a loopback TLS listener captures the redirect and\n" +
			"the terminal is used as a fallback.",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if certDir != "" {
				cfg.CertDir = certDir
			}
			if tokenPath != "" {
				cfg.TokenPath = tokenPath
			}
			if tokenDB != "" {
				cfg.TokenDB = tokenDB
			}
			fillCredentials(cmd, &cfg)

			store, cleanup, err := resolveStore(cfg)
			if err != nil {
				cmd.PrintErrln("Error: Failed to open the credential store.")
				log.Error().Err(err).Msg("Failed to open credential store")
				return
			}
			defer cleanup()

			m := buildMessenger(cfg, terminalOnly, browser, headless)
			flow, err := auth.NewClient(cfg.AppKey, cfg.AppSecret, cfg.RedirectURL, nil, m)
			if err != nil {
				cmd.PrintErrln("Error:", err)
				return
			}

			tok, err := flow.Login(cmd.Context(), store)
			if err != nil {
				cmd.PrintErrln("Error: Authorization failed. Please check the logs for details.")
				log.Error().Err(err).Msg("Authorization failed")
				return
			}

			cmd.Println("Login was successful.")
			cmd.Printf("Access token %s is valid until %s.\n",
				truncateSecret(tok.AccessToken), tok.AccessExpiresAt.Local().Format(timeDisplayLayout))
			cmd.Printf("Refresh token %s is valid until %s.\n",
				truncateSecret(tok.RefreshToken), tok.RefreshExpiresAt.Local().Format(timeDisplayLayout))
		},
	}

	cmd.Flags().BoolVarP(&terminalOnly, "terminal", "t", false, "Capture the redirect by pasting it into the terminal instead of a loopback listener")
	cmd.Flags().BoolVarP(&browser, "browser", "b", false, "Drive a Chrome/Chromium window through the authorization page")
	cmd.Flags().BoolVarP(&headless, "headless", "n", false, "Run the browser window in headless mode (with --browser)")
	cmd.Flags().StringVarP(&certDir, "cert-dir", "c", "", "Directory holding cert.pem and key.pem for the loopback listener")
	cmd.Flags().StringVarP(&tokenPath, "token-path", "p", "", "Path of the credential JSON file")
	cmd.Flags().StringVarP(&tokenDB, "sqlite", "s", "", "Keep the credential record in this sqlite database instead of a JSON file")

	return cmd
}
