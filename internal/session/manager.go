package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chat-gateway/backend/internal/protocol"
)

var (
	ErrNotReady       = errors.New("session is not ready")
	ErrNoClient       = errors.New("no protocol client instance")
	ErrManagerClosed  = errors.New("session manager is closed")
	ErrAlreadyStarted = errors.New("session manager is already initialized")
)

// Credentials is the slice of the storage layer the manager needs: wiping
// persisted session credentials when a logout invalidates them.
type Credentials interface {
	Purge() error
}

type Config struct {
	Delays Delays
	// OnTransition observes every snapshot change. Called with the manager
	// lock released; implementations must not call back into the manager.
	OnTransition func(Snapshot)
	// OnRecovery observes every scheduled recovery; kind is "rebuild" or
	// "reinit". Same calling rules as OnTransition.
	OnRecovery func(kind string)
}

// Manager owns one logical session: at most one live client handle, at most
// one scheduled recovery timer. Client handles carry a generation number so
// an event from a torn-down instance can never mutate the snapshot of its
// replacement.
type Manager struct {
	factory        protocol.Factory
	creds          Credentials
	delays         Delays
	logger         *slog.Logger
	notify         func(Snapshot)
	notifyRecovery func(kind string)

	// lifecycleMu serializes init/restart/recover/close sequences.
	lifecycleMu sync.Mutex

	mu     sync.Mutex
	snap   Snapshot
	client protocol.Client
	gen    uint64
	task   *recoveryTask
	closed bool
}

// recoveryTask is the single-slot pending-recovery handle. Its existence in
// Manager.task is the mutual exclusion: a second disconnect during the delay
// window finds the slot occupied and schedules nothing.
type recoveryTask struct {
	kind  EffectKind
	purge bool
	timer *time.Timer
}

func NewManager(factory protocol.Factory, creds Credentials, logger *slog.Logger, cfg Config) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory:        factory,
		creds:          creds,
		delays:         cfg.Delays.normalized(),
		logger:         logger,
		notify:         cfg.OnTransition,
		notifyRecovery: cfg.OnRecovery,
		snap:           Snapshot{State: StateUninitialized},
	}
}

// Init creates the first client handle, subscribes to its events and issues
// the connect. A construction or initialize failure leaves the session
// uninitialized; per policy it is not retried automatically.
func (m *Manager) Init(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.client != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.mu.Unlock()

	return m.buildAndConnect(ctx)
}

// buildAndConnect constructs a fresh client, attaches the event handler for
// the next generation and initializes it. Caller holds lifecycleMu.
func (m *Manager) buildAndConnect(ctx context.Context) error {
	client, err := m.factory()
	if err != nil {
		m.logger.Error("protocol client construction failed", "error", err)
		m.setState(func(s *Snapshot) { s.State = StateUninitialized })
		return err
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.client = client
	m.mu.Unlock()

	client.Subscribe(func(ev protocol.Event) { m.handleEvent(gen, ev) })
	if err := client.Initialize(ctx); err != nil {
		m.logger.Error("protocol client initialize failed", "error", err)
		client.Unsubscribe()
		m.mu.Lock()
		if m.client == client {
			m.client = nil
		}
		m.mu.Unlock()
		m.setState(func(s *Snapshot) { s.State = StateUninitialized })
		return err
	}

	m.setState(func(s *Snapshot) {
		if !s.Ready {
			s.State = StateAwaitingQR
		}
	})
	return nil
}

// handleEvent is the only writer driven by the protocol client. Events from
// a superseded generation are dropped before they can touch the snapshot.
func (m *Manager) handleEvent(gen uint64, ev protocol.Event) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug("dropping stale protocol event", "type", string(ev.Type))
		return
	}
	prev := m.snap
	next, effect := Apply(m.snap, ev, m.delays)
	m.snap = next
	m.mu.Unlock()

	if ev.Type == protocol.EventError {
		m.logger.Warn("protocol client error", "error", ev.Err)
	}
	if prev.State != next.State {
		m.logger.Info("session state transition",
			"from", string(prev.State),
			"to", string(next.State),
			"event", string(ev.Type),
			"reason", string(ev.Reason),
		)
	}
	m.emit(next)
	m.scheduleRecovery(effect)
}

// scheduleRecovery arms the recovery timer unless one is already pending.
func (m *Manager) scheduleRecovery(effect Effect) {
	if effect.Kind == EffectNone {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.task != nil {
		m.mu.Unlock()
		m.logger.Info("recovery already pending, ignoring")
		return
	}
	task := &recoveryTask{kind: effect.Kind, purge: effect.Purge}
	task.timer = time.AfterFunc(effect.Delay, func() { m.runRecovery(task) })
	m.task = task
	m.mu.Unlock()

	kind := "reinit"
	if effect.Kind == EffectRebuild {
		kind = "rebuild"
	}
	m.logger.Info("recovery scheduled", "kind", kind, "purge", effect.Purge, "delay", effect.Delay)
	if m.notifyRecovery != nil {
		m.notifyRecovery(kind)
	}
}

// cancelRecoveryLocked clears the pending task slot. Caller holds m.mu.
func (m *Manager) cancelRecoveryLocked() {
	if m.task == nil {
		return
	}
	m.task.timer.Stop()
	m.task = nil
}

func (m *Manager) runRecovery(task *recoveryTask) {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.closed || m.task != task {
		// Cancelled (restart or close) while the timer was in flight.
		m.mu.Unlock()
		return
	}
	m.task = nil
	client := m.client
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch task.kind {
	case EffectRebuild:
		m.releaseClient(ctx, client)
		if task.purge && m.creds != nil {
			if err := m.creds.Purge(); err != nil {
				m.logger.Error("credential purge failed", "error", err)
			}
		}
		if err := m.buildAndConnect(ctx); err != nil {
			m.logger.Error("session rebuild failed", "error", err)
		}
	case EffectReinit:
		if client == nil {
			m.logger.Warn("reinit scheduled without a client instance")
			return
		}
		if err := client.Initialize(ctx); err != nil {
			m.logger.Error("session reinitialize failed", "error", err)
			m.setState(func(s *Snapshot) { s.State = StateDisconnected })
			return
		}
		m.setState(func(s *Snapshot) {
			if !s.Ready {
				s.State = StateAwaitingQR
			}
		})
	}
}

// releaseClient detaches event delivery synchronously, bumps the generation
// so any straggler callback is discarded, then destroys the instance. The
// old handle must be fully detached before a replacement is constructed.
func (m *Manager) releaseClient(ctx context.Context, client protocol.Client) {
	if client == nil {
		return
	}
	client.Unsubscribe()
	m.mu.Lock()
	m.gen++
	if m.client == client {
		m.client = nil
	}
	m.mu.Unlock()
	if err := client.Destroy(ctx); err != nil {
		m.logger.Warn("protocol client destroy failed", "error", err)
	}
}

// Restart resets the session and schedules a fresh client after the restart
// delay. Safe from any state, including mid-recovery: a pending recovery
// timer is cancelled before the restart task takes the slot.
func (m *Manager) Restart(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.cancelRecoveryLocked()
	client := m.client
	m.mu.Unlock()

	m.releaseClient(ctx, client)
	m.setState(func(s *Snapshot) {
		s.Ready = false
		s.Authenticated = false
		s.QR = ""
		s.State = StateUninitialized
	})

	m.mu.Lock()
	task := &recoveryTask{kind: EffectRebuild}
	task.timer = time.AfterFunc(m.delays.Restart, func() { m.runRecovery(task) })
	m.task = task
	m.mu.Unlock()

	m.logger.Info("session restart scheduled", "delay", m.delays.Restart)
	return nil
}

// Close cancels any pending recovery and tears down the client. The manager
// cannot be reused afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancelRecoveryLocked()
	client := m.client
	m.mu.Unlock()

	m.releaseClient(ctx, client)
	return nil
}

// Status returns a copy of the current snapshot.
func (m *Manager) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Manager) Ready() bool { return m.Status().Ready }

// QR returns the most recent login QR payload. The second return is false
// when no QR is held, either because none was emitted yet or because
// readiness superseded it.
func (m *Manager) QR() (string, bool) {
	snap := m.Status()
	return snap.QR, snap.QR != ""
}

// RecoveryPending reports whether a recovery timer is currently scheduled.
func (m *Manager) RecoveryPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.task != nil
}

// SendMessage dispatches one text message. Fails fast before touching the
// client unless the session is ready. At-most-once: a failed send is
// surfaced, never retried here.
func (m *Manager) SendMessage(ctx context.Context, jid, text string) error {
	client, err := m.readyClient()
	if err != nil {
		return err
	}
	return client.SendMessage(ctx, jid, text)
}

// Contacts fetches the contact set from the protocol client. Never cached.
func (m *Manager) Contacts(ctx context.Context) ([]protocol.Contact, error) {
	client, err := m.readyClient()
	if err != nil {
		return nil, err
	}
	return client.Contacts(ctx)
}

func (m *Manager) readyClient() (protocol.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if !m.snap.Ready {
		return nil, ErrNotReady
	}
	if m.client == nil {
		return nil, ErrNoClient
	}
	return m.client, nil
}

func (m *Manager) setState(mutate func(*Snapshot)) {
	m.mu.Lock()
	prev := m.snap
	mutate(&m.snap)
	next := m.snap
	m.mu.Unlock()
	if prev.State != next.State {
		m.logger.Info("session state transition",
			"from", string(prev.State),
			"to", string(next.State),
		)
	}
	m.emit(next)
}

func (m *Manager) emit(snap Snapshot) {
	if m.notify != nil {
		m.notify(snap)
	}
}
