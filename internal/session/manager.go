package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agridesk/agridesk/internal/shared"
)

// ExpiryFunc is invoked exactly once when a session expires, from the sweep
// goroutine. It must be safe to call after the originating request finished.
type ExpiryFunc func(sess Session)

// Config collects Manager dependencies and tunables.
type Config struct {
	// Window is the inactivity timeout; every touch extends expiry by it.
	Window time.Duration
	// SweepInterval drives the per-session expiry sweep.
	SweepInterval time.Duration
	// Now substitutes the clock in tests. Nil means time.Now.
	Now func() time.Time
	// OnExpire is the expiry push notification. Optional.
	OnExpire ExpiryFunc
	Logger   *slog.Logger
}

// Manager issues, validates, refreshes and expires sessions. Each active
// session owns one cancellable sweep goroutine; sign-out and timeout expiry
// converge on the same cleared state.
type Manager struct {
	store    Store
	window   time.Duration
	interval time.Duration
	now      func() time.Time
	onExpire ExpiryFunc
	logger   *slog.Logger

	mu     sync.Mutex
	sweeps map[string]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewManager constructs a Manager.
func NewManager(store Store, cfg Config) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:    store,
		window:   cfg.Window,
		interval: cfg.SweepInterval,
		now:      cfg.Now,
		onExpire: cfg.OnExpire,
		logger:   cfg.Logger,
		sweeps:   make(map[string]context.CancelFunc),
	}
}

// Window exposes the configured inactivity timeout.
func (m *Manager) Window() time.Duration { return m.window }

// Create issues a session for the actor and starts its sweep.
func (m *Manager) Create(ctx context.Context, actorID int64, identityID string) (Session, error) {
	now := m.now()
	sess := Session{
		ID:           uuid.NewString(),
		ActorID:      actorID,
		IdentityID:   identityID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.window),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	m.startSweep(sess.ID)
	return sess, nil
}

// Get loads the session without touching it.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	return m.store.Get(ctx, id)
}

// IsValid reports whether the session exists and has not expired.
func (m *Manager) IsValid(ctx context.Context, id string) bool {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return false
	}
	return m.now().Before(sess.ExpiresAt)
}

// Touch extends the session's expiry by the inactivity window. Called
// implicitly on every successful authorization check.
func (m *Manager) Touch(ctx context.Context, id string) (Session, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	now := m.now()
	if !now.Before(sess.ExpiresAt) {
		m.expire(ctx, sess)
		return Session{}, shared.ErrSessionExpired
	}
	sess.LastActivity = now
	sess.ExpiresAt = now.Add(m.window)
	if err := m.store.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	m.startSweep(sess.ID)
	return sess, nil
}

// Validate returns the session when still valid, ErrSessionExpired when the
// activity window lapsed, and ErrSessionInvalid for unknown IDs.
func (m *Manager) Validate(ctx context.Context, id string) (Session, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !m.now().Before(sess.ExpiresAt) {
		m.expire(ctx, sess)
		return Session{}, fmt.Errorf("session %s: %w", id, shared.ErrSessionExpired)
	}
	m.startSweep(id)
	return sess, nil
}

// SignOut stops the sweep and clears the session state.
func (m *Manager) SignOut(ctx context.Context, id string) error {
	m.stopSweep(id)
	return m.store.Delete(ctx, id)
}

// Close cancels every sweep and waits for them to stop. Sessions themselves
// survive in the store; a restarted process revives sweeps lazily on touch.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for id, cancel := range m.sweeps {
		cancel()
		delete(m.sweeps, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// startSweep launches the expiry sweep for a session unless one is already
// running. At most one sweep per session exists at any time.
func (m *Manager) startSweep(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, running := m.sweeps[id]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.sweeps[id] = cancel
	m.wg.Add(1)
	go m.sweep(ctx, id)
}

func (m *Manager) stopSweep(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.sweeps[id]; ok {
		cancel()
		delete(m.sweeps, id)
	}
}

// takeSweep removes the sweep registration and reports whether this caller
// owned it. Ownership gates the expiry callback so it fires exactly once.
func (m *Manager) takeSweep(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.sweeps[id]
	if !ok {
		return false
	}
	cancel()
	delete(m.sweeps, id)
	return true
}

func (m *Manager) sweep(ctx context.Context, id string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess, err := m.store.Get(ctx, id)
			if errors.Is(err, shared.ErrSessionInvalid) {
				// Session already cleared elsewhere; nothing to notify.
				m.takeSweep(id)
				return
			}
			if err != nil {
				// Transient store failure. Keep ticking so the expiry
				// notification still fires once the store recovers.
				if m.logger != nil {
					m.logger.Warn("session sweep read", slog.String("session_id", id), slog.Any("error", err))
				}
				continue
			}
			if !m.now().Before(sess.ExpiresAt) {
				m.expire(ctx, sess)
				return
			}
		}
	}
}

// expire clears session state and fires the expiry callback exactly once.
func (m *Manager) expire(ctx context.Context, sess Session) {
	owned := m.takeSweep(sess.ID)
	if err := m.store.Delete(ctx, sess.ID); err != nil && m.logger != nil {
		m.logger.Warn("clear expired session", slog.String("session_id", sess.ID), slog.Any("error", err))
	}
	if owned && m.onExpire != nil {
		m.onExpire(sess)
	}
}
