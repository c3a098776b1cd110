package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginCmd_Flags(t *testing.T) {
	cmd := loginCmd()

	for _, name := range []string{"terminal", "browser", "headless", "cert-dir", "token-path", "sqlite"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %q", name)
	}

	headless, err := cmd.Flags().GetBool("headless")
	require.NoError(t, err)
	assert.False(t, headless)
}
