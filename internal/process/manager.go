package process

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/config"
)

var (
	// ErrAlreadyRunning is returned when a start request arrives while a
	// listener is live.
	ErrAlreadyRunning = errors.New("listener already running")
	// ErrNotRunning is returned for stop requests with no live listener.
	ErrNotRunning = errors.New("listener not running")
	// ErrNotAuthenticated is returned when no session token is persisted.
	ErrNotAuthenticated = errors.New("no session token persisted")
)

// Manager owns the long-running listener process and spawns handshake
// children. At most one listener and one handshake child may be live.
type Manager struct {
	mu       sync.Mutex
	listener *listenerHandle

	records     *config.RecordStore
	listenerBin string
	listenerArg []string
	codeBin     string
	codeArg     []string
	stopGrace   time.Duration
	logger      *zap.Logger
}

type listenerHandle struct {
	signal func(os.Signal) error
	kill   func()
	done   chan struct{}
}

func NewManager(cfg *config.Config, records *config.RecordStore, logger *zap.Logger) *Manager {
	return &Manager{
		records:     records,
		listenerBin: cfg.UserbotBin,
		codeBin:     cfg.SendCodeBin,
		stopGrace:   cfg.StopGrace,
		logger:      logger,
	}
}

// SetListenerCommand overrides the listener binary and arguments.
func (m *Manager) SetListenerCommand(bin string, args ...string) {
	m.listenerBin = bin
	m.listenerArg = args
}

// SetHandshakeCommand overrides the handshake binary and arguments.
func (m *Manager) SetHandshakeCommand(bin string, args ...string) {
	m.codeBin = bin
	m.codeArg = args
}

// Running reports whether a listener process is currently live.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener != nil
}

// StartListener spawns the listener with the given credentials in its
// environment. Fails when a listener is already running or when no
// session token has been persisted yet.
func (m *Manager) StartListener(apiID, apiHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listener != nil {
		return ErrAlreadyRunning
	}

	rec, err := m.records.Load()
	if err != nil {
		return err
	}
	if !rec.Authenticated() {
		return ErrNotAuthenticated
	}

	child, err := startChild(m.listenerBin, m.listenerArg, map[string]string{
		"T_API_ID":    apiID,
		"T_API_HASH":  apiHash,
		"RECORD_PATH": m.records.Path(),
	})
	if err != nil {
		return err
	}
	// The listener speaks no stdin protocol.
	_ = child.stdin.Close()

	h := &listenerHandle{
		signal: child.cmd.Process.Signal,
		kill:   child.Kill,
		done:   child.done,
	}
	m.listener = h

	go m.relay(child.stdout, "listener stdout")
	go m.relay(child.stderr, "listener stderr")
	go func() {
		<-child.done
		m.logger.Info("listener exited")
		m.mu.Lock()
		if m.listener == h {
			m.listener = nil
		}
		m.mu.Unlock()
	}()

	m.logger.Info("listener started", zap.String("bin", m.listenerBin))
	return nil
}

// StopListener asks the listener to terminate gracefully and escalates to
// a forced kill when it has not exited within the grace window.
func (m *Manager) StopListener() error {
	m.mu.Lock()
	h := m.listener
	m.mu.Unlock()

	if h == nil {
		return ErrNotRunning
	}

	if err := h.signal(syscall.SIGTERM); err != nil {
		// Exited between the check and the signal.
		return ErrNotRunning
	}

	go func() {
		select {
		case <-h.done:
		case <-time.After(m.stopGrace):
			m.logger.Warn("listener ignored SIGTERM, killing")
			h.kill()
		}
	}()

	return nil
}

// Spawn launches a handshake child with the given environment.
func (m *Manager) Spawn(env map[string]string) (Child, error) {
	return startChild(m.codeBin, m.codeArg, env)
}

func (m *Manager) relay(lines <-chan string, stream string) {
	for line := range lines {
		m.logger.Info(stream, zap.String("line", line))
	}
}

// SpawnFunc adapts a function to the Spawner interface.
type SpawnFunc func(env map[string]string) (Child, error)

func (f SpawnFunc) Spawn(env map[string]string) (Child, error) { return f(env) }
