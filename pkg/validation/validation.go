package validation

import (
	"fmt"
	"strings"
)

const (
	MinThreads = 1
	MaxThreads = 20

	// maxSymbolLength is generous enough for option and futures symbols.
	maxSymbolLength = 32
)

func ValidateThreadCount(threads int) error {
	if threads < MinThreads || threads > MaxThreads {
		return fmt.Errorf("thread count must be between %d and %d, got %d", MinThreads, MaxThreads, threads)
	}
	return nil
}

func ValidateLookbackDays(days int) error {
	if days < 1 {
		return fmt.Errorf("look-back days must be at least 1, got %d", days)
	}
	return nil
}

// ValidateSymbol checks that a ticker symbol is plausible before it is sent
// to the API. Index symbols start with '$', futures with '/', and share
// classes and preferreds carry '.', '/', or '-' separators.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > maxSymbolLength {
		return fmt.Errorf("symbol %q is longer than %d characters", symbol, maxSymbolLength)
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '$' || r == '.' || r == '/' || r == '-':
		default:
			return fmt.Errorf("symbol %q contains an invalid character %q", symbol, r)
		}
	}
	return nil
}

// NormalizeSymbols upper-cases and trims the given symbols, drops duplicates
// while preserving order, and validates each entry.
func NormalizeSymbols(symbols []string) ([]string, error) {
	normalized := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		s := strings.ToUpper(strings.TrimSpace(symbol))
		if err := ValidateSymbol(s); err != nil {
			return nil, err
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		normalized = append(normalized, s)
	}
	return normalized, nil
}
