package token

import (
	"time"

	"github.com/gotrader/schwab/pkg/autherr"
)

// Credential lifetimes are pinned below the provider's advertised values
// (30 minutes and 90 days) so a secret is never presented right at the edge
// of its server-side validity. The provider-reported expires_in is ignored.
const (
	AccessLifetime  = 25 * time.Minute
	RefreshLifetime = 60 * 24 * time.Hour
)

// State places a credential record on the expiry ladder at some instant.
type State int

const (
	// Fresh means the access secret is servable as-is.
	Fresh State = iota
	// AccessStale means the access secret has expired but the refresh secret
	// can still mint a replacement without user interaction.
	AccessStale
	// RefreshStale means both clocks have run out and only an interactive
	// re-authorization can produce a usable record.
	RefreshStale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case AccessStale:
		return "access_stale"
	default:
		return "refresh_stale"
	}
}

// Token is the persisted credential record. The serialized field names are
// historical: the *_expires_in keys carry absolute instants, not durations.
type Token struct {
	RefreshToken     string    `json:"refresh"`
	RefreshExpiresAt time.Time `json:"refresh_expires_in"`
	AccessToken      string    `json:"access"`
	AccessExpiresAt  time.Time `json:"access_expires_in"`
	TokenType        string    `json:"type_"`
}

// New mints a record from a completed authorization-code exchange, stamping
// both expiry clocks relative to now.
func New(refreshToken, accessToken, tokenType string, now time.Time) (*Token, error) {
	accessExp := now.Add(AccessLifetime)
	refreshExp := now.Add(RefreshLifetime)
	if !accessExp.After(now) || !refreshExp.After(now) {
		return nil, autherr.New(autherr.Clock, "computed expiry does not follow the current time", nil)
	}
	return &Token{
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		TokenType:        tokenType,
	}, nil
}

// RenewAccess rewrites the access fields after a refresh exchange. The refresh
// secret and its clock are preserved; the new access expiry is clamped to the
// refresh expiry so the record never promises access beyond the point where
// re-authorization is due.
func (t *Token) RenewAccess(accessToken, tokenType string, now time.Time) error {
	accessExp := now.Add(AccessLifetime)
	if !accessExp.After(now) {
		return autherr.New(autherr.Clock, "computed expiry does not follow the current time", nil)
	}
	if accessExp.After(t.RefreshExpiresAt) {
		accessExp = t.RefreshExpiresAt
	}
	t.AccessToken = accessToken
	t.TokenType = tokenType
	t.AccessExpiresAt = accessExp
	return nil
}

// AccessValid reports whether the access secret is servable at instant now.
// An instant equal to the expiry counts as expired: secrets are servable only
// strictly before their clock runs out.
func (t *Token) AccessValid(now time.Time) bool {
	return now.Before(t.AccessExpiresAt)
}

// RefreshValid reports whether the refresh secret can still mint a
// replacement access secret at instant now.
func (t *Token) RefreshValid(now time.Time) bool {
	return now.Before(t.RefreshExpiresAt)
}

// StateAt reports where the record sits on the expiry ladder at instant now.
func (t *Token) StateAt(now time.Time) State {
	switch {
	case t.AccessValid(now):
		return Fresh
	case t.RefreshValid(now):
		return AccessStale
	default:
		return RefreshStale
	}
}
