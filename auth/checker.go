package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/token"
)

// Flow is the slice of the Client the Checker drives: one interactive
// authorization and one refresh exchange.
type Flow interface {
	Authorize(ctx context.Context) (*token.Token, error)
	RefreshAccess(ctx context.Context, refreshToken string) (accessToken, tokenType string, expiresIn int64, err error)
}

// Checker is the process-wide custodian of one credential record. It loads
// and persists the record through a token.Store, decides on every call
// whether to serve, refresh, or re-authorize, and serializes that work so
// concurrent callers can never race two refreshes. Run exactly one Checker
// per credential path.
type Checker struct {
	mu    sync.Mutex
	store token.Store
	flow  Flow
	tok   *token.Token
}

// NewChecker wires a Checker over the credential file at path. A missing or
// unreadable record triggers one interactive authorization before the Checker
// is returned, so a non-nil Checker always holds a usable record.
func NewChecker(ctx context.Context, path, appKey, secret, redirectURL string, m Messenger) (*Checker, error) {
	client, err := NewClient(appKey, secret, redirectURL, nil, m)
	if err != nil {
		return nil, err
	}
	return NewCheckerWith(ctx, token.NewFileStore(path), client)
}

// NewCheckerWith wires a Checker over an explicit store and flow.
func NewCheckerWith(ctx context.Context, store token.Store, flow Flow) (*Checker, error) {
	c := &Checker{store: store, flow: flow}

	tok, err := store.Load()
	if err != nil {
		log.Info().Err(err).Msg("No usable credential record, starting interactive authorization")
		if err := c.reauthorize(ctx); err != nil {
			return nil, err
		}
	} else {
		c.tok = tok
	}

	// One validity pass so the caller starts with a servable access secret.
	if _, err := c.AccessToken(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// AccessToken returns an access secret valid at the time of the call,
// refreshing or re-authorizing first when the clocks demand it. The record
// guard is held across any network round-trip, so concurrent callers block
// and then observe the completed result instead of issuing their own.
func (c *Checker) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	switch c.tok.StateAt(now) {
	case token.Fresh:
		return c.tok.AccessToken, nil

	case token.AccessStale:
		if err := c.refresh(ctx, now); err != nil {
			if errors.Is(err, ErrInvalidGrant) {
				// The provider disagrees with the local refresh clock; treat
				// the record as fully stale and re-authorize now.
				log.Warn().Msg("Provider rejected the refresh secret, starting re-authorization")
				if err := c.reauthorize(ctx); err != nil {
					return "", err
				}
				return c.tok.AccessToken, nil
			}
			return "", err
		}
		return c.tok.AccessToken, nil

	default: // token.RefreshStale
		log.Info().Msg("Refresh secret expired, starting re-authorization")
		if err := c.reauthorize(ctx); err != nil {
			return "", err
		}
		return c.tok.AccessToken, nil
	}
}

// refresh mints a new access secret with the stored refresh secret. The
// in-memory record is replaced only after the new one has been persisted, so
// a failed attempt leaves the record exactly as it was.
func (c *Checker) refresh(ctx context.Context, now time.Time) error {
	access, kind, providerLifetime, err := c.flow.RefreshAccess(ctx, c.tok.RefreshToken)
	if err != nil {
		return err
	}

	next := *c.tok
	if err := next.RenewAccess(access, kind, now); err != nil {
		return err
	}
	if err := c.store.Save(&next); err != nil {
		return fmt.Errorf("persisting refreshed record: %w", err)
	}
	c.tok = &next

	log.Debug().
		Int64("provider_expires_in", providerLifetime).
		Time("access_expires_at", next.AccessExpiresAt).
		Msg("Access token refreshed")
	return nil
}

// reauthorize replaces the whole record through one interactive handshake.
func (c *Checker) reauthorize(ctx context.Context) error {
	tok, err := c.flow.Authorize(ctx)
	if err != nil {
		return err
	}
	if err := c.store.Save(tok); err != nil {
		return fmt.Errorf("persisting authorized record: %w", err)
	}
	c.tok = tok
	return nil
}
