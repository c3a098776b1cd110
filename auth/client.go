package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/pkg/autherr"
	"github.com/gotrader/schwab/token"
)

// Provider endpoints.
const (
	AuthEndpoint  = "https://api.schwabapi.com/v1/oauth/authorize"
	TokenEndpoint = "https://api.schwabapi.com/v1/oauth/token"
)

// ErrInvalidGrant reports that the provider rejected the presented grant,
// typically a refresh secret it no longer recognizes. Callers treat it as a
// signal to fall back to interactive re-authorization.
var ErrInvalidGrant = errors.New("invalid_grant")

// Client speaks OAuth 2.0 with the provider: it builds authorization URLs
// with CSRF state, exchanges authorization codes, and refreshes access
// tokens. User interaction is delegated to the configured Messenger.
type Client struct {
	// AuthURL and TokenURL point at the provider's OAuth endpoints.
	// Overridable for tests against a local server.
	AuthURL  string
	TokenURL string

	appKey      string
	secret      string
	redirectURL *url.URL
	httpClient  *http.Client
	messenger   Messenger
}

// NewClient validates the credentials and redirect URL, pushes an initial
// session into the messenger, and returns a ready Client.
func NewClient(appKey, secret, redirectURL string, httpClient *http.Client, m Messenger) (*Client, error) {
	if appKey == "" || secret == "" {
		return nil, autherr.New(autherr.Config, "app key and secret are required", nil)
	}
	if m == nil {
		return nil, autherr.New(autherr.Config, "a messenger is required", nil)
	}

	redirect, err := url.Parse(redirectURL)
	if err != nil {
		return nil, autherr.New(autherr.Config, "cannot parse redirect URL", err)
	}
	if !redirect.IsAbs() || redirect.Hostname() == "" {
		return nil, autherr.New(autherr.Config, "redirect URL must be absolute with a host", nil)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		AuthURL:     AuthEndpoint,
		TokenURL:    TokenEndpoint,
		appKey:      appKey,
		secret:      secret,
		redirectURL: redirect,
		httpClient:  httpClient,
		messenger:   m,
	}

	sess, err := c.newSession()
	if err != nil {
		return nil, err
	}
	if err := m.Configure(sess); err != nil {
		return nil, fmt.Errorf("configuring messenger: %w", err)
	}
	return c, nil
}

// Authorize drives one interactive handshake: a fresh session is pushed into
// the messenger, the user consents out-of-band, and the captured code is
// exchanged for a new credential record.
func (c *Client) Authorize(ctx context.Context) (*token.Token, error) {
	sess, err := c.newSession()
	if err != nil {
		return nil, err
	}
	if err := c.messenger.Configure(sess); err != nil {
		return nil, fmt.Errorf("configuring messenger: %w", err)
	}

	log.Info().Str("session", sess.ID.String()).Msg("Starting interactive authorization")

	for {
		err := c.messenger.PromptUser(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, ErrTryNextMessenger) {
			continue
		}
		return nil, fmt.Errorf("prompting user: %w", err)
	}

	code, err := c.messenger.AwaitRedirect(ctx)
	if err != nil {
		return nil, fmt.Errorf("awaiting redirect: %w", err)
	}
	log.Debug().Msg("Authorization code received")

	tok, err := c.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Authorization complete")
	return tok, nil
}

// RefreshAccess performs a refresh_token grant. The provider does not rotate
// refresh secrets, so only access fields come back; the provider-reported
// lifetime is returned for logging while callers keep their own shorter clock.
func (c *Client) RefreshAccess(ctx context.Context, refreshToken string) (accessToken, tokenType string, expiresIn int64, err error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	result, err := c.postTokenForm(ctx, form)
	if err != nil {
		return "", "", 0, fmt.Errorf("refreshing access token: %w", err)
	}
	return result.AccessToken, result.TokenType, result.ExpiresIn, nil
}

// Login drives a full interactive authorization and persists the resulting
// record through store.
func (c *Client) Login(ctx context.Context, store token.Store) (*token.Token, error) {
	tok, err := c.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// newSession builds the authorization URL for one handshake with a fresh
// CSRF state.
func (c *Client) newSession() (Session, error) {
	base, err := url.Parse(c.AuthURL)
	if err != nil {
		return Session{}, autherr.New(autherr.Config, "cannot parse authorization endpoint", err)
	}

	state, err := newState()
	if err != nil {
		return Session{}, err
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", c.appKey)
	query.Set("redirect_uri", c.redirectURL.String())
	query.Set("scope", "readonly")
	query.Set("state", state)
	base.RawQuery = query.Encode()

	return Session{
		ID:          uuid.New(),
		AuthURL:     base.String(),
		State:       state,
		RedirectURL: c.redirectURL,
	}, nil
}

func (c *Client) exchangeCode(ctx context.Context, code string) (*token.Token, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURL.String()},
	}

	result, err := c.postTokenForm(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return token.New(result.RefreshToken, result.AccessToken, result.TokenType, time.Now().UTC())
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// postTokenForm sends one form-encoded request to the token endpoint using
// HTTP Basic client authentication.
func (c *Client) postTokenForm(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, autherr.New(autherr.Config, "cannot build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.appKey, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, autherr.New(autherr.Protocol, "token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, autherr.New(autherr.Protocol, "cannot read token response", err)
	}

	var result tokenResponse
	if resp.StatusCode >= 400 {
		_ = json.Unmarshal(body, &result) // best effort, the error body may not be JSON
		if resp.StatusCode == http.StatusBadRequest && result.Error == "invalid_grant" {
			return nil, autherr.New(autherr.Protocol, "provider rejected the grant", ErrInvalidGrant)
		}
		return nil, autherr.New(autherr.Protocol,
			fmt.Sprintf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, autherr.New(autherr.Protocol, "cannot parse token response", err)
	}
	if result.Error != "" {
		return nil, autherr.New(autherr.Protocol, "token endpoint error: "+result.Error, nil)
	}
	if result.AccessToken == "" {
		return nil, autherr.New(autherr.Protocol, "token response carries no access token", nil)
	}
	return &result, nil
}

// newState mints the per-session CSRF value.
func newState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", autherr.New(autherr.IO, "cannot generate CSRF state", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
