package auth_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrader/schwab/auth"
	"github.com/gotrader/schwab/pkg/autherr"
)

type fakeMessenger struct {
	promptErr error
	code      string

	sessions []auth.Session
	prompts  int
	awaits   int
}

func (m *fakeMessenger) Configure(s auth.Session) error {
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *fakeMessenger) PromptUser(ctx context.Context) error {
	m.prompts++
	return m.promptErr
}

func (m *fakeMessenger) AwaitRedirect(ctx context.Context) (string, error) {
	m.awaits++
	return m.code, nil
}

func testSession(t *testing.T, state string) auth.Session {
	t.Helper()
	redirect, err := url.Parse("https://127.0.0.1:8182")
	require.NoError(t, err)
	return auth.Session{
		AuthURL:     "https://provider.example/authorize?state=" + state,
		State:       state,
		RedirectURL: redirect,
	}
}

func TestCompoundMessenger_FallsBackAfterPromptFailure(t *testing.T) {
	broken := &fakeMessenger{promptErr: errors.New("bind refused")}
	working := &fakeMessenger{code: "C1"}
	cm := auth.NewCompoundMessenger(broken, working)
	require.NoError(t, cm.Configure(testSession(t, "S1")))

	err := cm.PromptUser(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrTryNextMessenger)

	// The next prompt routes to the fallback channel.
	require.NoError(t, cm.PromptUser(context.Background()))
	assert.Equal(t, 1, broken.prompts)
	assert.Equal(t, 1, working.prompts)

	code, err := cm.AwaitRedirect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "C1", code)
	assert.Equal(t, 0, broken.awaits, "await must route to the messenger that prompted")
	assert.Equal(t, 1, working.awaits)
}

func TestCompoundMessenger_ExhaustsAllChannels(t *testing.T) {
	first := &fakeMessenger{promptErr: errors.New("bind refused")}
	second := &fakeMessenger{promptErr: errors.New("stdout gone")}
	cm := auth.NewCompoundMessenger(first, second)
	require.NoError(t, cm.Configure(testSession(t, "S1")))

	err := cm.PromptUser(context.Background())
	assert.ErrorIs(t, err, auth.ErrTryNextMessenger)

	// The last channel's failure is final, not a fallback hint.
	err = cm.PromptUser(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrTryNextMessenger)
	assert.Equal(t, autherr.Transport, autherr.KindOf(err))

	err = cm.PromptUser(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no messenger channel left")
}

func TestCompoundMessenger_AwaitBeforePrompt(t *testing.T) {
	cm := auth.NewCompoundMessenger(&fakeMessenger{code: "C1"})
	require.NoError(t, cm.Configure(testSession(t, "S1")))

	_, err := cm.AwaitRedirect(context.Background())
	require.Error(t, err)
	assert.Equal(t, autherr.Transport, autherr.KindOf(err))
}

func TestCompoundMessenger_ConfigureForwardsToAllChannels(t *testing.T) {
	first := &fakeMessenger{}
	second := &fakeMessenger{}
	cm := auth.NewCompoundMessenger(first, second)

	sess := testSession(t, "S1")
	require.NoError(t, cm.Configure(sess))

	require.Len(t, first.sessions, 1)
	require.Len(t, second.sessions, 1)
	assert.Equal(t, "S1", first.sessions[0].State)
	assert.Equal(t, "S1", second.sessions[0].State)
}

func TestCompoundMessenger_ReconfigureRestartsFromFirstChannel(t *testing.T) {
	first := &fakeMessenger{promptErr: errors.New("bind refused")}
	second := &fakeMessenger{code: "C1"}
	cm := auth.NewCompoundMessenger(first, second)
	require.NoError(t, cm.Configure(testSession(t, "S1")))

	assert.Error(t, cm.PromptUser(context.Background()))
	require.NoError(t, cm.PromptUser(context.Background()))

	// A new session starts over at the preferred channel.
	first.promptErr = nil
	require.NoError(t, cm.Configure(testSession(t, "S2")))
	require.NoError(t, cm.PromptUser(context.Background()))
	assert.Equal(t, 2, first.prompts)
	assert.Equal(t, 1, second.prompts)
}
