// Package stream is the coordination point the application layer calls to
// start, control, and stop capture sessions.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapdeck/tapdeck/internal/backend"
	"github.com/tapdeck/tapdeck/internal/capture"
	"github.com/tapdeck/tapdeck/internal/filter"
	"github.com/tapdeck/tapdeck/internal/procs"
	"github.com/tapdeck/tapdeck/internal/session"
)

// ErrDeviceBusy indicates another live session already owns the requested
// device. Exactly one session may hold a device at a time; a second start
// fails fast rather than sharing or queuing.
var ErrDeviceBusy = errors.New("device already owned by an active session")

// Request is one capture start call. The filter spec is caller-owned and
// immutable for the session lifetime; the manager never reads preference or
// filter state from disk itself.
type Request struct {
	Device     capture.Device
	Preference backend.Kind
	Filter     filter.Spec
	Policy     session.Policy
}

// Config wires the manager's collaborators. Zero values select production
// implementations.
type Config struct {
	Inventory      procs.Inventory
	Factory        capture.Factory
	Selector       *backend.Selector
	AcquireTimeout time.Duration
	BufferDepth    int
	Logger         zerolog.Logger
}

// Manager owns all active sessions and enforces device exclusivity.
type Manager struct {
	inventory procs.Inventory
	factory   capture.Factory
	selector  *backend.Selector
	timeout   time.Duration
	depth     int
	log       zerolog.Logger

	mu     sync.Mutex
	active map[string]*session.Session // device ID -> live session
}

// NewManager builds a manager with production defaults for any collaborator
// left unset.
func NewManager(cfg Config) *Manager {
	if cfg.Inventory == nil {
		cfg.Inventory = procs.System()
	}
	if cfg.Factory == nil {
		cfg.Factory = capture.New(capture.Config{})
	}
	if cfg.Selector == nil {
		cfg.Selector = backend.NewSelector()
	}
	return &Manager{
		inventory: cfg.Inventory,
		factory:   cfg.Factory,
		selector:  cfg.Selector,
		timeout:   cfg.AcquireTimeout,
		depth:     cfg.BufferDepth,
		log:       cfg.Logger,
		active:    make(map[string]*session.Session),
	}
}

// Start selects a backend for the request and drives a new session to
// Recording. Warnings (unmatched apps, unsupported filtering) are carried
// on the returned session, not just logged. The device slot is held for the
// whole attempt, so concurrent starts on one device fail fast.
func (m *Manager) Start(ctx context.Context, req Request) (*session.Session, error) {
	kind, backendWarnings := m.selector.Select(req.Device.Type, req.Preference, !req.Filter.Empty())

	warnings := make([]session.Warning, 0, len(backendWarnings))
	for _, w := range backendWarnings {
		warnings = append(warnings, w)
		m.log.Warn().Str("device", req.Device.ID).Msg(w.String())
	}

	sess := session.New(session.Config{
		Backend:        kind,
		Device:         req.Device,
		Filter:         req.Filter,
		Policy:         req.Policy,
		Inventory:      m.inventory,
		Factory:        m.factory,
		AcquireTimeout: m.timeout,
		BufferDepth:    m.depth,
		Warnings:       warnings,
		Logger:         m.log,
	})

	m.mu.Lock()
	if current, ok := m.active[req.Device.ID]; ok && !current.State().Terminal() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, req.Device.ID)
	}
	m.active[req.Device.ID] = sess
	m.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		m.release(sess)
		return nil, err
	}
	return sess, nil
}

// Stop tears the session down and frees its device slot.
func (m *Manager) Stop(sess *session.Session) error {
	err := sess.Stop()
	m.release(sess)
	return err
}

// Pause suspends buffer delivery without releasing the tap.
func (m *Manager) Pause(sess *session.Session) error { return sess.Pause() }

// Resume restarts buffer delivery after Pause.
func (m *Manager) Resume(sess *session.Session) error { return sess.Resume() }

// Status reports the session lifecycle state for UI polling.
func (m *Manager) Status(sess *session.Session) session.State { return sess.State() }

// ListAudioProcesses exposes the live process inventory so a UI can offer
// an up-to-date application picker.
func (m *Manager) ListAudioProcesses(ctx context.Context) ([]procs.ProcessInfo, error) {
	return m.inventory.ListAudioProcesses(ctx)
}

// ListDevices enumerates capturable devices, system audio first.
func (m *Manager) ListDevices() ([]capture.Device, error) {
	return m.factory.ListDevices()
}

func (m *Manager) release(sess *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.active[sess.Device().ID]; ok && current == sess {
		delete(m.active, sess.Device().ID)
	}
}
