package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrader/schwab/auth"
	"github.com/gotrader/schwab/pkg/autherr"
	"github.com/gotrader/schwab/token"
)

// scriptedMessenger satisfies auth.Messenger with canned responses.
type scriptedMessenger struct {
	code       string
	promptErrs []error

	sessions []auth.Session
	prompts  int
	awaits   int
}

func (m *scriptedMessenger) Configure(s auth.Session) error {
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *scriptedMessenger) PromptUser(ctx context.Context) error {
	m.prompts++
	if len(m.promptErrs) > 0 {
		err := m.promptErrs[0]
		m.promptErrs = m.promptErrs[1:]
		return err
	}
	return nil
}

func (m *scriptedMessenger) AwaitRedirect(ctx context.Context) (string, error) {
	m.awaits++
	return m.code, nil
}

func TestNewClient_Validations(t *testing.T) {
	m := &scriptedMessenger{}

	tests := []struct {
		name     string
		appKey   string
		secret   string
		redirect string
		msgr     auth.Messenger
	}{
		{"empty app key", "", "sec", "https://127.0.0.1:8182", m},
		{"empty secret", "key", "", "https://127.0.0.1:8182", m},
		{"relative redirect", "key", "sec", "localhost/callback", m},
		{"redirect without host", "key", "sec", "https://", m},
		{"nil messenger", "key", "sec", "https://127.0.0.1:8182", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewClient(tt.appKey, tt.secret, tt.redirect, nil, tt.msgr)
			require.Error(t, err)
			assert.Equal(t, autherr.Config, autherr.KindOf(err))
		})
	}
}

func TestNewClient_ConfiguresMessengerWithSession(t *testing.T) {
	m := &scriptedMessenger{}
	_, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, m)
	require.NoError(t, err)

	require.Len(t, m.sessions, 1)
	sess := m.sessions[0]

	parsed, err := url.Parse(sess.AuthURL)
	require.NoError(t, err)
	query := parsed.Query()

	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "app-key", query.Get("client_id"))
	assert.Equal(t, "https://127.0.0.1:8182", query.Get("redirect_uri"))
	assert.Equal(t, "readonly", query.Get("scope"))
	assert.NotEmpty(t, query.Get("state"))
	assert.Equal(t, sess.State, query.Get("state"))
	assert.Equal(t, "https://127.0.0.1:8182", sess.RedirectURL.String())
	assert.NotEqual(t, sess.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestAuthorize_ExchangesCodeForRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "token request must use HTTP Basic client auth")
		assert.Equal(t, "app-key", user)
		assert.Equal(t, "app-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "C1", r.FormValue("code"))
		assert.Equal(t, "https://127.0.0.1:8182", r.FormValue("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "A3",
			"refresh_token": "R3",
			"token_type":    "Bearer",
			"expires_in":    1800,
		})
	}))
	defer server.Close()

	m := &scriptedMessenger{code: "C1"}
	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, m)
	require.NoError(t, err)
	client.TokenURL = server.URL

	before := time.Now().UTC()
	tok, err := client.Authorize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "A3", tok.AccessToken)
	assert.Equal(t, "R3", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, 1, m.prompts)
	assert.Equal(t, 1, m.awaits)

	// The provider-reported lifetime is ignored in favour of the local clocks.
	assert.WithinDuration(t, before.Add(token.AccessLifetime), tok.AccessExpiresAt, 5*time.Second)
	assert.WithinDuration(t, before.Add(token.RefreshLifetime), tok.RefreshExpiresAt, 5*time.Second)
	assert.False(t, tok.RefreshExpiresAt.Before(tok.AccessExpiresAt))
}

func TestAuthorize_MintsFreshStatePerCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "A", "refresh_token": "R", "token_type": "Bearer", "expires_in": 1800,
		})
	}))
	defer server.Close()

	m := &scriptedMessenger{code: "C1"}
	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, m)
	require.NoError(t, err)
	client.TokenURL = server.URL

	_, err = client.Authorize(context.Background())
	require.NoError(t, err)
	_, err = client.Authorize(context.Background())
	require.NoError(t, err)

	require.Len(t, m.sessions, 3) // one at construction, one per authorize
	assert.NotEqual(t, m.sessions[1].State, m.sessions[2].State)
}

func TestAuthorize_RetriesPromptOnFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "A", "refresh_token": "R", "token_type": "Bearer", "expires_in": 1800,
		})
	}))
	defer server.Close()

	m := &scriptedMessenger{
		code:       "C1",
		promptErrs: []error{fmt.Errorf("%w: bind refused", auth.ErrTryNextMessenger)},
	}
	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, m)
	require.NoError(t, err)
	client.TokenURL = server.URL

	_, err = client.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, m.prompts, "a fallback hint must trigger another prompt")
}

func TestAuthorize_PromptFailureSurfaces(t *testing.T) {
	m := &scriptedMessenger{promptErrs: []error{errors.New("tty gone")}}
	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, m)
	require.NoError(t, err)

	_, err = client.Authorize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompting user")
	assert.Equal(t, 0, m.awaits, "a failed prompt must not reach redirect capture")
}

func TestRefreshAccess_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "app-key", user)
		assert.Equal(t, "app-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "R1", r.FormValue("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "A2",
			"token_type":   "Bearer",
			"expires_in":   1800,
		})
	}))
	defer server.Close()

	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, &scriptedMessenger{})
	require.NoError(t, err)
	client.TokenURL = server.URL

	access, kind, expiresIn, err := client.RefreshAccess(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "A2", access)
	assert.Equal(t, "Bearer", kind)
	assert.Equal(t, int64(1800), expiresIn)
}

func TestRefreshAccess_InvalidGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "refresh token invalid",
		})
	}))
	defer server.Close()

	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, &scriptedMessenger{})
	require.NoError(t, err)
	client.TokenURL = server.URL

	_, _, _, err = client.RefreshAccess(context.Background(), "stale")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidGrant)
	assert.Equal(t, autherr.Protocol, autherr.KindOf(err))
}

func TestRefreshAccess_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, &scriptedMessenger{})
	require.NoError(t, err)
	client.TokenURL = server.URL

	_, _, _, err = client.RefreshAccess(context.Background(), "R1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidGrant)
	assert.Equal(t, autherr.Protocol, autherr.KindOf(err))
	assert.Contains(t, err.Error(), "500")
}

func TestRefreshAccess_EmptyAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, &scriptedMessenger{})
	require.NoError(t, err)
	client.TokenURL = server.URL

	_, _, _, err = client.RefreshAccess(context.Background(), "R1")
	require.Error(t, err)
	assert.Equal(t, autherr.Protocol, autherr.KindOf(err))
}

func TestLogin_PersistsRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "A3",
			"refresh_token": "R3",
			"token_type":    "Bearer",
			"expires_in":    1800,
		})
	}))
	defer server.Close()

	client, err := auth.NewClient("app-key", "app-secret", "https://127.0.0.1:8182", nil, &scriptedMessenger{code: "C1"})
	require.NoError(t, err)
	client.TokenURL = server.URL

	store := token.NewFileStore(filepath.Join(t.TempDir(), "schwab.json"))
	tok, err := client.Login(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "A3", tok.AccessToken)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "R3", loaded.RefreshToken)
	assert.Equal(t, "A3", loaded.AccessToken)
}
