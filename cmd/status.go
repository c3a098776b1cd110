package cmd

import (
	"errors"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gotrader/schwab/token"
)

// statusCmd creates the command that reports the stored credential record
// without touching the network.
func statusCmd() *cobra.Command {
	var tokenPath, tokenDB string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential record and its freshness",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if tokenPath != "" {
				cfg.TokenPath = tokenPath
			}
			if tokenDB != "" {
				cfg.TokenDB = tokenDB
			}

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
					cmd.Println("No credential record found. Use `schwab login` to authorize.")
					return
				}
				cmd.PrintErrln("Error: Failed to load the credential record.")
				log.Error().Err(err).Msg("Failed to load credential record")
				return
			}

			now := time.Now().UTC()
			printRecordTable(cmd, tok, now)

			switch tok.StateAt(now) {
			case token.Fresh:
				cmd.Println("The access token is ready to use.")
			case token.AccessStale:
				cmd.Println("The access token is stale; the next API call will refresh it.")
			case token.RefreshStale:
				cmd.Println("The refresh token has expired. Use `schwab login` to authorize again.")
			}
		},
	}

	cmd.Flags().StringVarP(&tokenPath, "token-path", "p", "", "Path of the credential JSON file")
	cmd.Flags().StringVarP(&tokenDB, "sqlite", "s", "", "Read the credential record from this sqlite database")

	return cmd
}

func printRecordTable(cmd *cobra.Command, tok *token.Token, now time.Time) {
	out := cmd.OutOrStdout()
	if out == nil {
		out = os.Stdout
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Field", "Value", "Expires", "Valid"})

	// Table appearance settings
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	table.Append([]string{
		"Access token",
		truncateSecret(tok.AccessToken),
		tok.AccessExpiresAt.Local().Format(timeDisplayLayout),
		yesNo(tok.AccessValid(now)),
	})
	table.Append([]string{
		"Refresh token",
		truncateSecret(tok.RefreshToken),
		tok.RefreshExpiresAt.Local().Format(timeDisplayLayout),
		yesNo(tok.RefreshValid(now)),
	})
	table.Append([]string{"Token type", tok.TokenType, "", ""})
	table.Append([]string{"State", tok.StateAt(now).String(), "", ""})

	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
