package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// accountsCmd creates the command that lists the brokerage accounts linked to
// the authorized user, with their balances.
func accountsCmd() *cobra.Command {
	var showPositions bool
	var terminalOnly bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List linked brokerage accounts and their balances",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			fillCredentials(cmd, &cfg)

			api, cleanup, err := buildAPIClient(cmd.Context(), cfg, buildMessenger(cfg, terminalOnly, false, false))
			if err != nil {
				cmd.PrintErrln("Error: Failed to prepare credentials. Please check the logs for details.")
				log.Error().Err(err).Msg("Failed to prepare credentials")
				return
			}
			defer cleanup()

			fields := ""
			if showPositions {
				fields = "positions"
			}

			accounts, err := api.Accounts(cmd.Context(), fields)
			if err != nil {
				cmd.PrintErrln("Error: Failed to fetch accounts. Please check the logs for details.")
				log.Error().Err(err).Msg("Failed to fetch accounts")
				return
			}
			if len(accounts) == 0 {
				cmd.Println("No accounts are linked to this user.")
				return
			}

			out := cmd.OutOrStdout()
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Account #", "Type", "Cash", "Equity", "Liquidation Value"})
			table.SetAutoWrapText(false)
			table.SetColumnAlignment([]int{
				tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_LEFT,
			})
			table.SetRowLine(false)

			for _, account := range accounts {
				sec := account.SecuritiesAccount
				table.Append([]string{
					sec.AccountNumber,
					sec.Type,
					fmt.Sprintf("%.2f", sec.CurrentBalances.CashBalance),
					fmt.Sprintf("%.2f", sec.CurrentBalances.Equity),
					fmt.Sprintf("%.2f", sec.CurrentBalances.LiquidationValue),
				})
			}
			table.Render()

			if !showPositions {
				return
			}
			for _, account := range accounts {
				sec := account.SecuritiesAccount
				if len(sec.Positions) == 0 {
					continue
				}
				cmd.Printf("\nPositions for account %s:\n", sec.AccountNumber)
				positions := tablewriter.NewWriter(out)
				positions.SetHeader([]string{"Symbol", "Quantity", "Avg Price", "Market Value"})
				positions.SetAutoWrapText(false)
				positions.SetRowLine(false)
				for _, position := range sec.Positions {
					quantity := position.LongQuantity - position.ShortQuantity
					positions.Append([]string{
						position.Instrument.Symbol,
						fmt.Sprintf("%.2f", quantity),
						fmt.Sprintf("%.2f", position.AveragePrice),
						fmt.Sprintf("%.2f", position.MarketValue),
					})
				}
				positions.Render()
			}
		},
	}

	cmd.Flags().BoolVarP(&showPositions, "positions", "p", false, "Include open positions for each account")
	cmd.Flags().BoolVar(&terminalOnly, "terminal", false, "Use the terminal to capture the redirect if authorization is needed")

	return cmd
}
