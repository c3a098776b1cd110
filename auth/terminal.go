package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gotrader/schwab/pkg/autherr"
)

// TerminalMessenger runs the handshake through the terminal: PromptUser
// prints the authorization URL with instructions, the user completes consent
// in any browser and pastes the resulting redirect URL back on stdin.
type TerminalMessenger struct {
	In  io.Reader // defaults to os.Stdin
	Out io.Writer // defaults to os.Stdout

	session    Session
	configured bool
}

// NewTerminalMessenger builds a TerminalMessenger wired to the process's
// stdin and stdout.
func NewTerminalMessenger() *TerminalMessenger {
	return &TerminalMessenger{In: os.Stdin, Out: os.Stdout}
}

func (m *TerminalMessenger) Configure(s Session) error {
	m.session = s
	m.configured = true
	return nil
}

func (m *TerminalMessenger) PromptUser(ctx context.Context) error {
	if !m.configured {
		return autherr.New(autherr.Config, "messenger is not configured", nil)
	}

	_, err := fmt.Fprintf(m.Out,
		"Open the following URL in your browser and log in:\n\n%s\n\n"+
			"After approving access the browser lands on an unreachable page; copy its full address and paste it below.\n"+
			"Redirect URL: ",
		m.session.AuthURL)
	if err != nil {
		return autherr.New(autherr.Transport, "cannot write authorization prompt", err)
	}
	return nil
}

type terminalRead struct {
	line string
	err  error
}

func (m *TerminalMessenger) AwaitRedirect(ctx context.Context) (string, error) {
	if !m.configured {
		return "", autherr.New(autherr.Config, "messenger is not configured", nil)
	}

	// The blocking stdin read runs on a worker so cancellation stays possible.
	resultCh := make(chan terminalRead, 1)
	go func() {
		line, err := bufio.NewReader(m.In).ReadString('\n')
		resultCh <- terminalRead{line: line, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil && res.line == "" {
			return "", autherr.New(autherr.Transport, "cannot read redirect URL from input", res.err)
		}
		return codeFromRedirect(res.line, m.session.State)
	case <-ctx.Done():
		return "", autherr.New(autherr.Transport, "redirect capture cancelled", ctx.Err())
	}
}
