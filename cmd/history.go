package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gotrader/schwab/client"
	"github.com/gotrader/schwab/pkg/validation"
)

// historyCmd creates the command that bulk-fetches daily candles and writes
// one CSV file per symbol.
func historyCmd() *cobra.Command {
	var outDir string
	var days, numThreads int
	var terminalOnly bool

	cmd := &cobra.Command{
		Use:   "history SYMBOL...",
		Short: "Download price history for one or more symbols as CSV files",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := validation.ValidateThreadCount(numThreads); err != nil {
				cmd.PrintErrln("Error:", err)
				return
			}
			if err := validation.ValidateLookbackDays(days); err != nil {
				cmd.PrintErrln("Error:", err)
				return
			}
			symbols, err := validation.NormalizeSymbols(args)
			if err != nil {
				cmd.PrintErrln("Error:", err)
				return
			}
			if err := os.MkdirAll(outDir, 0o750); err != nil {
				cmd.PrintErrln("Error: Failed to create the output directory.")
				log.Error().Err(err).Str("dir", outDir).Msg("Failed to create output directory")
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

			end := time.Now().UTC()
			params := client.PriceHistoryParams{
				PeriodType:    "day",
				FrequencyType: "daily",
				Frequency:     1,
				StartDate:     end.AddDate(0, 0, -days),
				EndDate:       end,
			}

			bar := progressbar.NewOptions(len(symbols),
				progressbar.OptionSetDescription("Fetching history..."),
				progressbar.OptionSetWidth(20),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionClearOnFinish(),
			)

			// The callback fires once per finished symbol; the bar locks
			// internally so worker goroutines can tick it directly.
			histories, err := api.PriceHistories(cmd.Context(), symbols, params, numThreads, func(_ float64) {
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			if err != nil {
				cmd.PrintErrln("Error: History download was interrupted.")
				log.Error().Err(err).Msg("History download interrupted")
				return
			}

			written := 0
			for symbol, history := range histories {
				if history.Empty || len(history.Candles) == 0 {
					log.Info().Str("symbol", symbol).Msg("No candles returned")
					continue
				}
				// Futures and forex symbols carry a '/', which cannot
				// appear in a file name.
				path := filepath.Join(outDir, strings.ReplaceAll(symbol, "/", "-")+".csv")
				if err := writeCandlesCSV(path, history); err != nil {
					cmd.PrintErrln("Error: Failed to write", path)
					log.Error().Err(err).Str("path", path).Msg("Failed to write CSV file")
					continue
				}
				written++
			}

			cmd.Printf("Download completed. Wrote %d of %d symbols to %s.\n", written, len(symbols), outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "history", "Directory to write the CSV files into")
	cmd.Flags().IntVarP(&days, "days", "d", 365, "Number of calendar days to look back")
	cmd.Flags().IntVarP(&numThreads, "threads", "t", 5, "Number of threads to use for fetching candles")
	cmd.Flags().BoolVar(&terminalOnly, "terminal", false, "Use the terminal to capture the redirect if authorization is needed")

	return cmd
}

// writeCandlesCSV writes one symbol's candle series to a CSV file.
func writeCandlesCSV(path string, history *client.PriceHistory) error {
	file, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to create CSV file %s", path)
		return err
	}
	defer file.Close()

	if _, err := file.WriteString("date,open,high,low,close,volume\n"); err != nil {
		log.Error().Err(err).Msg("Failed to write CSV header to file")
		return err
	}

	for _, candle := range history.Candles {
		row := fmt.Sprintf("%s,%.4f,%.4f,%.4f,%.4f,%d\n",
			candle.Time().Format("2006-01-02"),
			candle.Open, candle.High, candle.Low, candle.Close, candle.Volume)
		if _, err := file.WriteString(row); err != nil {
			log.Error().Err(err).Msgf("Failed to write candle row to %s", path)
			return err
		}
	}

	log.Info().Msgf("Price history exported to CSV file: %s", path)
	return nil
}
