package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteCmd_RequiresSymbolArg(t *testing.T) {
	output, err := captureCombinedOutput(quoteCmd())
	require.Error(t, err)
	assert.Contains(t, output, "requires at least 1 arg")
}

func TestQuoteCmd_RejectsInvalidSymbol(t *testing.T) {
	output, err := captureCombinedOutput(quoteCmd(), "AAPL", "NO PE")
	require.NoError(t, err)
	assert.Contains(t, output, "invalid character")
}

// The terminal messenger reads the redirect URL from stdin, which is the null
// device under `go test`, so an interactive authorization fails right away
// and the command has to report it.
func TestQuoteCmd_AuthorizationFailureIsReported(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("SCHWAB_APP_KEY", "test-app-key")
	t.Setenv("SCHWAB_APP_SECRET", "test-app-secret")
	t.Setenv("SCHWAB_TOKEN_PATH", filepath.Join(t.TempDir(), "schwab.json"))

	output, err := captureCombinedOutput(quoteCmd(), "AAPL", "--terminal")
	require.NoError(t, err)
	assert.Contains(t, output, "Error: Failed to prepare credentials.")
}
