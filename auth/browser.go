package auth

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/pkg/autherr"
)

// BrowserMessenger drives the handshake through a Chrome or Chromium instance
// it launches itself. The user completes the provider's login form in the
// opened window while the messenger watches the address bar for the redirect,
// so no local listener is needed.
type BrowserMessenger struct {
	// Headless hides the browser window. Only useful when something else
	// scripts the login form; interactive logins need the window visible.
	Headless bool

	session    Session
	browserCtx context.Context
	cancel     context.CancelFunc
}

// NewBrowserMessenger builds a BrowserMessenger that opens a visible window.
func NewBrowserMessenger() *BrowserMessenger {
	return &BrowserMessenger{}
}

func (m *BrowserMessenger) Configure(s Session) error {
	if s.RedirectURL == nil {
		return autherr.New(autherr.Config, "redirect URL is required to recognize the provider redirect", nil)
	}
	m.session = s
	return nil
}

func (m *BrowserMessenger) PromptUser(ctx context.Context) error {
	browserCtx, cancel, err := createChromeContext(m.Headless)
	if err != nil {
		return autherr.New(autherr.Transport, "cannot launch browser", err)
	}

	if err := chromedp.Run(browserCtx, chromedp.Navigate(m.session.AuthURL)); err != nil {
		cancel()
		return autherr.New(autherr.Transport, "cannot open authorization URL in browser", err)
	}

	m.browserCtx = browserCtx
	m.cancel = cancel
	log.Info().Msg("Browser opened at authorization URL; complete the login there")
	return nil
}

// AwaitRedirect polls the browser's location until it lands on the redirect
// URL carrying a code, then closes the browser.
func (m *BrowserMessenger) AwaitRedirect(callCtx context.Context) (string, error) {
	if m.browserCtx == nil {
		return "", autherr.New(autherr.Transport, "browser is not open; prompt first", nil)
	}
	defer func() {
		m.cancel()
		m.browserCtx = nil
		m.cancel = nil
	}()

	watchCtx, cancel := context.WithTimeout(m.browserCtx, 4*time.Minute)
	defer cancel()

	host := m.session.RedirectURL.Hostname()
	var finalURL string
	err := chromedp.Run(watchCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for {
				var currentURL string
				if err := chromedp.Location(&currentURL).Do(ctx); err != nil {
					return err
				}
				if strings.Contains(currentURL, host) && strings.Contains(currentURL, "code=") {
					finalURL = currentURL
					return nil
				}
				select {
				case <-callCtx.Done():
					return callCtx.Err()
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(500 * time.Millisecond):
				}
			}
		}),
	)
	if err != nil {
		return "", autherr.New(autherr.Transport, "browser redirect capture failed", err)
	}

	return codeFromRedirect(finalURL, m.session.State)
}

// createChromeContext locates a Chrome or Chromium binary and builds a
// chromedp context on it.
func createChromeContext(headless bool) (context.Context, context.CancelFunc, error) {
	var execPath string
	if p, err := exec.LookPath("google-chrome"); err == nil {
		execPath = p
	} else if p, err := exec.LookPath("chromium"); err == nil {
		execPath = p
	} else if p, err := exec.LookPath("chrome"); err == nil {
		execPath = p
	} else {
		return nil, nil, fmt.Errorf("no Chrome or Chromium executable found in PATH")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(execPath))
	if !headless {
		opts = append(opts,
			chromedp.Flag("headless", false),
			chromedp.Flag("disable-gpu", false),
			chromedp.Flag("start-maximized", true),
		)
	}

	allocatorCtx, cancelAllocator := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelContext := chromedp.NewContext(allocatorCtx, chromedp.WithLogf(log.Debug().Msgf))
	return browserCtx, func() {
		cancelContext()
		cancelAllocator()
	}, nil
}
