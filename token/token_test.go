package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrader/schwab/token"
)

var frozen = time.Date(2026, 8, 23, 10, 30, 0, 123456789, time.UTC)

func TestNew_StampsBothClocks(t *testing.T) {
	tok, err := token.New("R1", "A1", "Bearer", frozen)
	require.NoError(t, err)

	assert.Equal(t, "R1", tok.RefreshToken)
	assert.Equal(t, "A1", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, frozen.Add(token.AccessLifetime), tok.AccessExpiresAt)
	assert.Equal(t, frozen.Add(token.RefreshLifetime), tok.RefreshExpiresAt)
	assert.False(t, tok.RefreshExpiresAt.Before(tok.AccessExpiresAt),
		"refresh clock must not precede access clock")
}

func TestStateAt_Ladder(t *testing.T) {
	tok := &token.Token{
		AccessExpiresAt:  frozen.Add(10 * time.Minute),
		RefreshExpiresAt: frozen.Add(30 * 24 * time.Hour),
	}

	tests := []struct {
		name string
		now  time.Time
		want token.State
	}{
		{"before both clocks", frozen, token.Fresh},
		{"just before access expiry", tok.AccessExpiresAt.Add(-time.Nanosecond), token.Fresh},
		{"exactly at access expiry", tok.AccessExpiresAt, token.AccessStale},
		{"between the clocks", frozen.Add(24 * time.Hour), token.AccessStale},
		{"just before refresh expiry", tok.RefreshExpiresAt.Add(-time.Nanosecond), token.AccessStale},
		{"exactly at refresh expiry", tok.RefreshExpiresAt, token.RefreshStale},
		{"after both clocks", tok.RefreshExpiresAt.Add(time.Hour), token.RefreshStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.StateAt(tt.now))
		})
	}
}

func TestAccessValid_StrictBoundary(t *testing.T) {
	tok := &token.Token{
		AccessExpiresAt:  frozen.Add(10 * time.Minute),
		RefreshExpiresAt: frozen.Add(30 * 24 * time.Hour),
	}

	assert.True(t, tok.AccessValid(frozen))
	assert.True(t, tok.AccessValid(tok.AccessExpiresAt.Add(-time.Nanosecond)))
	assert.False(t, tok.AccessValid(tok.AccessExpiresAt), "expiry instant itself counts as expired")

	assert.True(t, tok.RefreshValid(tok.RefreshExpiresAt.Add(-time.Nanosecond)))
	assert.False(t, tok.RefreshValid(tok.RefreshExpiresAt), "expiry instant itself counts as expired")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "fresh", token.Fresh.String())
	assert.Equal(t, "access_stale", token.AccessStale.String())
	assert.Equal(t, "refresh_stale", token.RefreshStale.String())
}

func TestRenewAccess_PreservesRefreshFields(t *testing.T) {
	tok, err := token.New("R1", "A1", "Bearer", frozen)
	require.NoError(t, err)
	refreshExp := tok.RefreshExpiresAt

	later := frozen.Add(26 * time.Minute)
	require.NoError(t, tok.RenewAccess("A2", "Bearer", later))

	assert.Equal(t, "R1", tok.RefreshToken, "refresh secret must survive a refresh")
	assert.Equal(t, refreshExp, tok.RefreshExpiresAt, "refresh clock must survive a refresh")
	assert.Equal(t, "A2", tok.AccessToken)
	assert.Equal(t, later.Add(token.AccessLifetime), tok.AccessExpiresAt)
}

func TestRenewAccess_ClampsToRefreshExpiry(t *testing.T) {
	tok := &token.Token{
		RefreshToken:     "R1",
		RefreshExpiresAt: frozen.Add(10 * time.Minute),
		AccessToken:      "A1",
		AccessExpiresAt:  frozen.Add(-time.Second),
		TokenType:        "Bearer",
	}

	require.NoError(t, tok.RenewAccess("A2", "Bearer", frozen))

	assert.Equal(t, tok.RefreshExpiresAt, tok.AccessExpiresAt,
		"access clock must not outlive the refresh clock")
	assert.False(t, tok.RefreshExpiresAt.Before(tok.AccessExpiresAt))
}
