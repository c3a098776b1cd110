package cmd

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gotrader/schwab/auth"
	"github.com/gotrader/schwab/token"
)

// refreshCmd creates the command that renews the access token right away,
// regardless of how much lifetime it has left.
func refreshCmd() *cobra.Command {
	var tokenPath, tokenDB string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token using the stored refresh token",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
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

			tok, err := store.Load()
			if err != nil {
				if errors.Is(err, token.ErrNotFound) {
					cmd.Println("No credential record found. Use `schwab login` to authorize first.")
					return
				}
				cmd.PrintErrln("Error: Failed to load the credential record.")
				log.Error().Err(err).Msg("Failed to load credential record")
				return
			}

			now := time.Now().UTC()
			if !tok.RefreshValid(now) {
				cmd.Println("The refresh token has expired. Use `schwab login` to authorize again.")
				return
			}

			flow, err := auth.NewClient(cfg.AppKey, cfg.AppSecret, cfg.RedirectURL, nil, auth.NewTerminalMessenger())
			if err != nil {
				cmd.PrintErrln("Error:", err)
				return
			}

			accessToken, tokenType, _, err := flow.RefreshAccess(cmd.Context(), tok.RefreshToken)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidGrant) {
					cmd.PrintErrln("Error: The provider rejected the refresh token. Use `schwab login` to authorize again.")
				} else {
					cmd.PrintErrln("Error: Failed to refresh the access token. Please check the logs for details.")
				}
				log.Error().Err(err).Msg("Refresh failed")
				return
			}

			if err := tok.RenewAccess(accessToken, tokenType, time.Now().UTC()); err != nil {
				cmd.PrintErrln("Error:", err)
				return
			}
			if err := store.Save(tok); err != nil {
				cmd.PrintErrln("Error: Failed to save the renewed record.")
				log.Error().Err(err).Msg("Failed to save renewed record")
				return
			}

			cmd.Println("Refresh was successful.")
			cmd.Printf("Access token %s is valid until %s.\n",
				truncateSecret(tok.AccessToken), tok.AccessExpiresAt.Local().Format(timeDisplayLayout))
		},
	}

	cmd.Flags().StringVarP(&tokenPath, "token-path", "p", "", "Path of the credential JSON file")
	cmd.Flags().StringVarP(&tokenDB, "sqlite", "s", "", "Keep the credential record in this sqlite database")

	return cmd
}
