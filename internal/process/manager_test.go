package process_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/config"
	"github.com/danhigham/autoresponder/internal/process"
)

func newManager(t *testing.T, authenticated bool, stopGrace time.Duration) *process.Manager {
	t.Helper()

	records := config.NewRecordStore(filepath.Join(t.TempDir(), "config.json"))
	if authenticated {
		require.NoError(t, records.Save(config.Record{
			APIID:   "12345",
			APIHash: "abcdef",
			Session: "session-token",
		}))
	}

	cfg := config.Default()
	cfg.StopGrace = stopGrace
	return process.NewManager(cfg, records, zap.NewNop())
}

func TestStartListener_RequiresSession(t *testing.T) {
	m := newManager(t, false, time.Second)
	m.SetListenerCommand("/bin/sleep", "60")

	err := m.StartListener("12345", "abcdef")
	require.Error(t, err)
	assert.True(t, errors.Is(err, process.ErrNotAuthenticated))
	assert.False(t, m.Running())
}

func TestStartListener_RejectsSecondStart(t *testing.T) {
	m := newManager(t, true, time.Second)
	m.SetListenerCommand("/bin/sleep", "60")

	require.NoError(t, m.StartListener("12345", "abcdef"))
	t.Cleanup(func() { _ = m.StopListener() })

	assert.True(t, m.Running())

	err := m.StartListener("12345", "abcdef")
	assert.True(t, errors.Is(err, process.ErrAlreadyRunning))
}

func TestStopListener_NotRunning(t *testing.T) {
	m := newManager(t, true, time.Second)

	err := m.StopListener()
	assert.True(t, errors.Is(err, process.ErrNotRunning))
}

func TestStopListener_GracefulTermination(t *testing.T) {
	m := newManager(t, true, 5*time.Second)
	m.SetListenerCommand("/bin/sleep", "60")

	require.NoError(t, m.StartListener("12345", "abcdef"))
	require.NoError(t, m.StopListener())

	assert.Eventually(t, func() bool { return !m.Running() },
		3*time.Second, 20*time.Millisecond, "listener should exit on SIGTERM")
}

func TestStopListener_EscalatesToKill(t *testing.T) {
	m := newManager(t, true, 100*time.Millisecond)
	// The child ignores SIGTERM, forcing the grace-window escalation.
	m.SetListenerCommand("/bin/sh", "-c", `trap "" TERM; sleep 60`)

	require.NoError(t, m.StartListener("12345", "abcdef"))
	require.NoError(t, m.StopListener())

	assert.Eventually(t, func() bool { return !m.Running() },
		3*time.Second, 20*time.Millisecond, "listener should be killed after the grace window")
}

func TestListenerExitClearsHandle(t *testing.T) {
	m := newManager(t, true, time.Second)
	m.SetListenerCommand("/bin/true")

	require.NoError(t, m.StartListener("12345", "abcdef"))

	assert.Eventually(t, func() bool { return !m.Running() },
		3*time.Second, 20*time.Millisecond, "exit must clear the tracked handle")

	// A subsequent start is accepted again.
	m.SetListenerCommand("/bin/sleep", "60")
	require.NoError(t, m.StartListener("12345", "abcdef"))
	t.Cleanup(func() { _ = m.StopListener() })
}

func TestSpawn_LineProtocolRoundTrip(t *testing.T) {
	m := newManager(t, true, time.Second)
	m.SetHandshakeCommand("/bin/sh", "-c", `read line; echo "GOT $line"; echo "OOPS" >&2`)

	child, err := m.Spawn(map[string]string{"PHONE_NUMBER": "+15550100"})
	require.NoError(t, err)
	t.Cleanup(child.Kill)

	require.NoError(t, child.WriteLine("12345"))

	select {
	case line := <-child.Stdout():
		assert.Equal(t, "GOT 12345", line)
	case <-time.After(3 * time.Second):
		t.Fatal("no stdout line from child")
	}

	select {
	case line := <-child.Stderr():
		assert.Equal(t, "OOPS", line)
	case <-time.After(3 * time.Second):
		t.Fatal("no stderr line from child")
	}

	select {
	case <-child.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("child never exited")
	}
}

func TestSpawn_EnvIsInjected(t *testing.T) {
	m := newManager(t, true, time.Second)
	m.SetHandshakeCommand("/bin/sh", "-c", `echo "$PHONE_NUMBER"`)

	child, err := m.Spawn(map[string]string{"PHONE_NUMBER": "+15550100"})
	require.NoError(t, err)
	t.Cleanup(child.Kill)

	select {
	case line := <-child.Stdout():
		assert.Equal(t, "+15550100", line)
	case <-time.After(3 * time.Second):
		t.Fatal("no stdout line from child")
	}
}
