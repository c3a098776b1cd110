package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/pkg/autherr"
)

// Session carries the state of one interactive authorization handshake. It is
// built by the Client, handed to a Messenger via Configure, and discarded once
// a code has been captured or the attempt fails.
type Session struct {
	ID          uuid.UUID
	AuthURL     string   // fully built authorization URL the user must visit
	State       string   // CSRF value embedded in AuthURL
	RedirectURL *url.URL // where the provider sends the browser afterwards
}

// Messenger delivers an authorization URL to the user and captures the
// redirect carrying the authorization code. Implementations cover different
// channels: a loopback HTTPS listener, the terminal, or an automated browser.
type Messenger interface {
	// Configure hands the messenger the session for the upcoming handshake.
	Configure(s Session) error
	// PromptUser delivers the session's authorization URL through the
	// messenger's channel.
	PromptUser(ctx context.Context) error
	// AwaitRedirect blocks until the provider's redirect arrives and returns
	// the authorization code it carried.
	AwaitRedirect(ctx context.Context) (string, error)
}

// ErrTryNextMessenger reports that a prompt failed on one channel of a
// CompoundMessenger but another channel is available; calling PromptUser
// again routes to it.
var ErrTryNextMessenger = errors.New("fallback messenger available")

// CompoundMessenger holds an ordered sequence of messengers. PromptUser
// invokes the current one and advances past it on failure; AwaitRedirect is
// routed to whichever messenger prompted successfully last.
type CompoundMessenger struct {
	messengers []Messenger
	current    atomic.Int32 // next messenger to prompt with
	prompted   atomic.Int32 // last messenger that prompted successfully, -1 before any
}

// NewCompoundMessenger builds a CompoundMessenger trying the given messengers
// in order.
func NewCompoundMessenger(messengers ...Messenger) *CompoundMessenger {
	cm := &CompoundMessenger{messengers: messengers}
	cm.prompted.Store(-1)
	return cm
}

func (cm *CompoundMessenger) Configure(s Session) error {
	for _, m := range cm.messengers {
		if err := m.Configure(s); err != nil {
			return err
		}
	}
	cm.current.Store(0)
	cm.prompted.Store(-1)
	return nil
}

func (cm *CompoundMessenger) PromptUser(ctx context.Context) error {
	idx := int(cm.current.Load())
	if idx >= len(cm.messengers) {
		return autherr.New(autherr.Transport, "no messenger channel left to prompt the user", nil)
	}

	if err := cm.messengers[idx].PromptUser(ctx); err != nil {
		cm.current.Store(int32(idx + 1))
		if idx+1 < len(cm.messengers) {
			log.Warn().Err(err).Int("messenger", idx).Msg("Messenger failed to prompt, falling back to the next channel")
			return fmt.Errorf("%w: %v", ErrTryNextMessenger, err)
		}
		return autherr.New(autherr.Transport, "every messenger channel failed to prompt", err)
	}

	cm.prompted.Store(int32(idx))
	return nil
}

func (cm *CompoundMessenger) AwaitRedirect(ctx context.Context) (string, error) {
	idx := int(cm.prompted.Load())
	if idx < 0 || idx >= len(cm.messengers) {
		return "", autherr.New(autherr.Transport, "no messenger has prompted the user yet", nil)
	}
	return cm.messengers[idx].AwaitRedirect(ctx)
}

// codeFromRedirect parses a captured redirect URL, checks its CSRF state
// byte-for-byte against wantState, and extracts the authorization code.
func codeFromRedirect(raw, wantState string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", autherr.New(autherr.Protocol, "cannot parse redirect URL", err)
	}

	query := parsed.Query()
	if query.Get("state") != wantState {
		return "", autherr.New(autherr.Protocol, "CSRF state mismatch in redirect", nil)
	}

	code := query.Get("code")
	if code == "" {
		return "", autherr.New(autherr.Protocol, "authorization code not found in redirect URL", nil)
	}
	return code, nil
}
