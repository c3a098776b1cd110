package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gotrader/schwab/pkg/validation"
)

// quoteCmd creates the command that prints a quote table for one or more
// symbols.
func quoteCmd() *cobra.Command {
	var terminalOnly bool

	cmd := &cobra.Command{
		Use:   "quote SYMBOL...",
		Short: "Fetch current quotes for one or more symbols",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			symbols, err := validation.NormalizeSymbols(args)
			if err != nil {
				cmd.PrintErrln("Error:", err)
				return
			}

			cfg := loadConfig()
			fillCredentials(cmd, &cfg)

			api, cleanup, err := buildAPIClient(cmd.Context(), cfg, buildMessenger(cfg, terminalOnly, false, false))
			if err != nil {
				cmd.PrintErrln("Error: Failed to prepare credentials. Please check the logs for details.")
				log.Error().Err(err).Msg("Failed to prepare credentials")
				return
			}
			defer cleanup()

			quotes, err := api.Quotes(cmd.Context(), symbols)
			if err != nil {
				cmd.PrintErrln("Error: Failed to fetch quotes. Please check the logs for details.")
				log.Error().Err(err).Msg("Failed to fetch quotes")
				return
			}
			if len(quotes) == 0 {
				cmd.Println("No quotes returned for the given symbols.")
				return
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Symbol", "Last", "Change %", "Bid", "Ask", "Volume", "Description"})

			// Table appearance settings
			table.SetColMinWidth(6, 30)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			table.SetRowLine(false)

			// Keep the table in the order the symbols were asked for.
			for _, symbol := range symbols {
				q, ok := quotes[symbol]
				if !ok {
					table.Append([]string{symbol, "-", "-", "-", "-", "-", "no quote returned"})
					continue
				}
				table.Append([]string{
					q.Symbol,
					fmt.Sprintf("%.2f", q.Quote.LastPrice),
					fmt.Sprintf("%+.2f", q.Quote.NetPercentChange),
					fmt.Sprintf("%.2f", q.Quote.BidPrice),
					fmt.Sprintf("%.2f", q.Quote.AskPrice),
					fmt.Sprintf("%d", q.Quote.TotalVolume),
					q.Reference.Description,
				})
			}

			table.Render()
		},
	}

	cmd.Flags().BoolVarP(&terminalOnly, "terminal", "t", false, "Use the terminal to capture the redirect if authorization is needed")

	return cmd
}
