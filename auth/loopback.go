package auth

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/pkg/autherr"
)

// LoopbackMessenger captures the redirect with a transient TLS server bound to
// the socket named in the session's redirect URL. The provider only redirects
// to HTTPS targets, so cert.pem and key.pem must exist in CertDir.
//
// PromptUser binds the listener and opens the user's browser; the listener
// does not accept connections until AwaitRedirect starts serving on it.
type LoopbackMessenger struct {
	CertDir string
	// OpenBrowser launches the user's browser at the given URL. Replaceable
	// in tests; defaults to the platform opener.
	OpenBrowser func(url string) error

	session  Session
	addr     string
	listener net.Listener
	codeCh   chan string
}

// NewLoopbackMessenger builds a LoopbackMessenger reading certificate
// material from certDir.
func NewLoopbackMessenger(certDir string) *LoopbackMessenger {
	return &LoopbackMessenger{CertDir: certDir, OpenBrowser: openBrowser}
}

func (m *LoopbackMessenger) Configure(s Session) error {
	if s.RedirectURL == nil || s.RedirectURL.Hostname() == "" {
		return autherr.New(autherr.Config, "redirect URL has no host to bind", nil)
	}

	port := s.RedirectURL.Port()
	if port == "" {
		port = "443"
	}

	m.session = s
	m.addr = net.JoinHostPort(s.RedirectURL.Hostname(), port)
	m.codeCh = make(chan string, 1)
	m.listener = nil
	return nil
}

// PromptUser binds the TLS listener and opens the browser at the
// authorization URL. Binding first means a dead socket is reported before the
// user is sent anywhere.
func (m *LoopbackMessenger) PromptUser(ctx context.Context) error {
	if m.codeCh == nil {
		return autherr.New(autherr.Config, "messenger is not configured", nil)
	}

	cert, err := tls.LoadX509KeyPair(
		filepath.Join(m.CertDir, "cert.pem"),
		filepath.Join(m.CertDir, "key.pem"),
	)
	if err != nil {
		return autherr.New(autherr.IO, "cannot load certificate material", err)
	}

	inner, err := net.Listen("tcp", m.addr)
	if err != nil {
		return autherr.New(autherr.Transport, "cannot bind redirect listener", err)
	}
	m.listener = tls.NewListener(inner, &tls.Config{Certificates: []tls.Certificate{cert}})

	log.Info().Str("addr", m.addr).Msg("Waiting for authorization redirect")
	log.Debug().Str("url", m.session.AuthURL).Msg("Opening browser at authorization URL")

	if err := m.OpenBrowser(m.session.AuthURL); err != nil {
		_ = m.listener.Close()
		m.listener = nil
		return autherr.New(autherr.Transport, "cannot open browser", err)
	}
	return nil
}

// Addr reports the socket the listener is bound to, or "" before PromptUser.
func (m *LoopbackMessenger) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// AwaitRedirect serves the bound listener until the provider's redirect
// delivers a code whose CSRF state matches the session, then drops the server.
func (m *LoopbackMessenger) AwaitRedirect(ctx context.Context) (string, error) {
	if m.listener == nil {
		return "", autherr.New(autherr.Transport, "redirect listener is not bound; prompt first", nil)
	}

	router := chi.NewRouter()
	router.Get("/", m.handleRedirect)

	srv := &http.Server{Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(m.listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	defer func() { m.listener = nil }()

	select {
	case code := <-m.codeCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return code, nil
	case err := <-serveErr:
		return "", autherr.New(autherr.Transport, "redirect listener failed", err)
	case <-ctx.Done():
		_ = srv.Close()
		return "", autherr.New(autherr.Transport, "redirect capture cancelled", ctx.Err())
	}
}

func (m *LoopbackMessenger) handleRedirect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("state") != m.session.State {
		log.Warn().Msg("Redirect arrived with mismatched CSRF state")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("CSRF check error"))
		return
	}

	code := query.Get("code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("authorization code missing from redirect"))
		return
	}

	_, _ = w.Write([]byte("Authorization received. You can close this window."))

	// Single-consumer channel; duplicate redirects past the first are dropped.
	select {
	case m.codeCh <- code:
	default:
	}
}

// openBrowser launches the platform's default browser at the given URL.
func openBrowser(u string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		cmd = exec.Command("xdg-open", u)
	}
	return cmd.Start()
}
