// Package session owns the lifecycle of one recording attempt: tap
// acquisition, the running stream, pause/resume, teardown, and recovery.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tapdeck/tapdeck/internal/backend"
	"github.com/tapdeck/tapdeck/internal/capture"
	"github.com/tapdeck/tapdeck/internal/filter"
	"github.com/tapdeck/tapdeck/internal/procs"
	"github.com/tapdeck/tapdeck/internal/tap"
	"github.com/tapdeck/tapdeck/internal/telemetry"
)

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Starting
	Recording
	Paused
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state admits no further transitions except a
// fresh session.
func (s State) Terminal() bool { return s == Stopped || s == Failed }

// Policy decides what happens when process inventory or tap building fails
// during Starting.
type Policy int

const (
	// FailOnFilterError fails the session attempt. The default: a filter
	// the user asked for is never dropped silently.
	FailOnFilterError Policy = iota
	// FallbackUnfiltered downgrades to unfiltered capture with a
	// user-visible warning. Opt-in only.
	FallbackUnfiltered
)

// ErrTimeout indicates tap or stream acquisition exceeded the bounded wait.
var ErrTimeout = errors.New("capture acquisition timed out")

// ErrStoppedDuringStart indicates a stop request cancelled an in-flight start.
var ErrStoppedDuringStart = errors.New("session stopped during start")

// Warning is a non-fatal advisory surfaced to the caller alongside a
// successful start.
type Warning interface {
	String() string
}

// FallbackWarning tells the user their filter was abandoned under the
// FallbackUnfiltered policy and capture proceeds globally.
type FallbackWarning struct {
	Cause error
}

func (w FallbackWarning) String() string {
	return fmt.Sprintf("per-application filtering failed (%v); capturing all system audio instead", w.Cause)
}

const (
	defaultAcquireTimeout = 10 * time.Second
	defaultBufferDepth    = 8

	restartInitialBackoff = 250 * time.Millisecond
	restartMaxBackoff     = 5 * time.Second
)

// Config assembles one session. Inventory and Factory are injected so tests
// run without audio hardware.
type Config struct {
	Backend   backend.Kind
	Device    capture.Device
	Filter    filter.Spec
	Policy    Policy
	Inventory procs.Inventory
	Factory   capture.Factory

	AcquireTimeout time.Duration
	BufferDepth    int
	Warnings       []Warning // pre-start warnings (e.g. backend selection)
	Logger         zerolog.Logger
}

// Session is one end-to-end recording lifecycle. Create with New, drive with
// Start/Pause/Resume/Stop. All methods are safe for concurrent use.
type Session struct {
	id  string
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex
	state      State
	desc       *tap.Descriptor
	src        capture.Source
	sampleRate int
	warnings   []Warning
	failure    error

	out       chan []float32
	runCancel context.CancelFunc
	superDone chan struct{}
}

// New builds an idle session.
func New(cfg Config) *Session {
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.BufferDepth == 0 {
		cfg.BufferDepth = defaultBufferDepth
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		cfg:      cfg,
		log:      cfg.Logger.With().Str("session", id).Str("backend", cfg.Backend.String()).Logger(),
		state:    Idle,
		warnings: append([]Warning(nil), cfg.Warnings...),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Backend returns the backend chosen for this session.
func (s *Session) Backend() backend.Kind { return s.cfg.Backend }

// Device returns the device this session records.
func (s *Session) Device() capture.Device { return s.cfg.Device }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SampleRate reports the stream rate in Hz, valid once Recording.
func (s *Session) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// Err returns the failure cause once the session is Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Warnings returns the advisories accumulated so far.
func (s *Session) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning(nil), s.warnings...)
}

// Buffers is the delivery channel for captured audio. No buffer is ever
// delivered before the tap descriptor is built and the session reaches
// Recording. The channel closes when the session ends.
func (s *Session) Buffers() <-chan []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Start drives Idle -> Starting -> Recording. Filter resolution happens
// exactly once, against a fresh process snapshot; it is never re-evaluated
// mid-session. Any failure in inventory, resolution, tap building, or
// stream acquisition transitions to Failed with the cause preserved, and
// releases the descriptor if one was built.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return fmt.Errorf("cannot start session in state %s", s.state)
	}
	s.state = Starting
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.out = make(chan []float32, s.cfg.BufferDepth)
	s.mu.Unlock()

	acquireCtx, acquireDone := context.WithTimeout(runCtx, s.cfg.AcquireTimeout)
	defer acquireDone()

	desc, err := s.buildDescriptor(acquireCtx)
	if err != nil {
		return s.failStart(err)
	}
	s.mu.Lock()
	s.desc = desc
	s.mu.Unlock()

	src, err := s.cfg.Factory.Open(acquireCtx, s.cfg.Backend, s.cfg.Device, desc)
	if err != nil {
		return s.failStart(fmt.Errorf("failed to open %s stream: %w", s.cfg.Backend, err))
	}
	if err := src.Start(runCtx, s.out); err != nil {
		return s.failStart(fmt.Errorf("failed to start %s stream: %w", s.cfg.Backend, err))
	}
	if err := acquireCtx.Err(); err != nil {
		src.Stop()
		<-src.Done()
		return s.failStart(err)
	}

	s.mu.Lock()
	if s.state != Starting {
		// Stop arrived while we were acquiring. Tear down immediately so
		// the descriptor never outlives the session.
		s.mu.Unlock()
		src.Stop()
		<-src.Done()
		s.releaseTap()
		s.finish(Stopped)
		return ErrStoppedDuringStart
	}
	s.src = src
	s.sampleRate = src.SampleRate()
	s.state = Recording
	s.superDone = make(chan struct{})
	s.mu.Unlock()

	go s.supervise(runCtx, src)

	s.log.Info().Int("sample_rate", src.SampleRate()).
		Ints32("excluded_pids", desc.ExcludedPIDs()).
		Msg("recording started")
	return nil
}

// buildDescriptor snapshots the process inventory, resolves the filter, and
// encodes the exclusion set. With an empty filter it skips enumeration
// entirely and builds the no-exclusion descriptor (global capture).
func (s *Session) buildDescriptor(ctx context.Context) (*tap.Descriptor, error) {
	exclude := make(filter.ExcludeSet)

	if !s.cfg.Filter.Empty() && s.cfg.Backend.SupportsFiltering() {
		processes, err := s.cfg.Inventory.ListAudioProcesses(ctx)
		if err != nil {
			if s.cfg.Policy != FallbackUnfiltered {
				return nil, err
			}
			s.addWarning(FallbackWarning{Cause: err})
			s.log.Warn().Err(err).Msg("process inventory failed, falling back to unfiltered capture")
			return tap.Build(nil)
		}

		resolved, unmatched := filter.Resolve(s.cfg.Filter, processes)
		for _, w := range unmatched {
			s.addWarning(w)
			s.log.Warn().Str("app", w.App).Msg("selected app has no audio process")
		}
		exclude = resolved
	}

	desc, err := tap.Build(exclude)
	if err != nil {
		if s.cfg.Policy != FallbackUnfiltered {
			return nil, err
		}
		s.addWarning(FallbackWarning{Cause: err})
		s.log.Warn().Err(err).Msg("tap descriptor build failed, falling back to unfiltered capture")
		return tap.Build(nil)
	}
	return desc, nil
}

// supervise watches the running source and restarts it with exponential
// backoff when the stream dies underneath the session. The descriptor built
// at start is reused as-is; the exclusion set is never recomputed.
func (s *Session) supervise(ctx context.Context, src capture.Source) {
	defer close(s.superDone)
	defer close(s.out)

	backoff := restartInitialBackoff
	attempt := 0

	for {
		var cause error
		select {
		case <-ctx.Done():
			// Wait for the delivery goroutine to wind down before the
			// deferred close of the buffer channel.
			<-src.Done()
			s.reportDrops(src)
			telemetry.CaptureShutdown(s.log)
			return
		case cause = <-src.Done():
			if cause == nil {
				s.reportDrops(src)
				telemetry.CaptureShutdown(s.log)
				return
			}
			s.reportDrops(src)
		}

		for {
			attempt++
			telemetry.CaptureRestart(s.log, attempt, backoff, cause)

			select {
			case <-ctx.Done():
				telemetry.CaptureShutdown(s.log)
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > restartMaxBackoff {
				backoff = restartMaxBackoff
			}

			next, err := s.reopen(ctx)
			if err != nil {
				cause = err
				continue
			}

			src = next
			backoff = restartInitialBackoff
			telemetry.CaptureRecovered(s.log, src.SampleRate())
			break
		}
	}
}

// reopen rebuilds the stream after a mid-session failure, preserving the
// original descriptor and the paused state.
func (s *Session) reopen(ctx context.Context) (capture.Source, error) {
	s.mu.Lock()
	desc := s.desc
	paused := s.state == Paused
	alive := s.state == Recording || s.state == Paused
	s.mu.Unlock()
	if !alive {
		return nil, fmt.Errorf("session no longer running")
	}

	src, err := s.cfg.Factory.Open(ctx, s.cfg.Backend, s.cfg.Device, desc)
	if err != nil {
		return nil, err
	}
	if err := src.Start(ctx, s.out); err != nil {
		return nil, err
	}
	if paused {
		src.Pause()
	}

	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
	return src, nil
}

// Pause suspends buffer delivery. The tap stays allocated; only delivery
// stops.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording {
		return fmt.Errorf("cannot pause session in state %s", s.state)
	}
	if err := s.src.Pause(); err != nil {
		return err
	}
	s.state = Paused
	s.log.Info().Msg("recording paused")
	return nil
}

// Resume restarts buffer delivery after Pause.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused {
		return fmt.Errorf("cannot resume session in state %s", s.state)
	}
	if err := s.src.Resume(); err != nil {
		return err
	}
	s.state = Recording
	s.log.Info().Msg("recording resumed")
	return nil
}

// Stop tears the session down from any live state. A stop during Starting
// cancels the in-flight acquisition; the starting goroutine completes the
// teardown and the session lands in Stopped without leaking the descriptor.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.state = Stopped
		s.mu.Unlock()
		return nil
	case Stopped, Stopping:
		s.mu.Unlock()
		return nil
	case Failed:
		// Defensive: the failure path already released the descriptor.
		s.mu.Unlock()
		s.releaseTap()
		return nil
	case Starting:
		s.state = Stopping
		cancel := s.runCancel
		s.mu.Unlock()
		cancel()
		return nil
	}

	// Recording or Paused.
	s.state = Stopping
	src := s.src
	cancel := s.runCancel
	done := s.superDone
	s.mu.Unlock()

	cancel()
	if src != nil {
		src.Stop()
	}
	if done != nil {
		<-done
	}
	s.releaseTap()
	s.finish(Stopped)
	s.log.Info().Msg("recording stopped")
	return nil
}

// failStart is the single failure path out of Starting: release the
// descriptor if one was built, record the cause, land in Failed. A
// concurrent stop wins and lands in Stopped instead.
func (s *Session) failStart(cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("%w: %v", ErrTimeout, cause)
	}

	s.releaseTap()

	s.mu.Lock()
	stopped := s.state == Stopping
	s.mu.Unlock()
	if stopped || errors.Is(cause, context.Canceled) {
		s.finish(Stopped)
		return ErrStoppedDuringStart
	}

	s.mu.Lock()
	s.failure = cause
	s.mu.Unlock()
	s.finish(Failed)
	s.log.Error().Err(cause).Msg("session start failed")
	return cause
}

func (s *Session) finish(terminal State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = terminal
	if s.runCancel != nil {
		s.runCancel()
	}
	if s.superDone == nil && s.out != nil {
		// No supervisor ever ran; close the delivery channel here.
		close(s.out)
	}
}

func (s *Session) releaseTap() {
	s.mu.Lock()
	desc := s.desc
	s.desc = nil
	s.mu.Unlock()
	if desc != nil {
		desc.Release()
	}
}

// reportDrops surfaces buffers the source discarded against a full delivery
// channel. Reported here, off the delivery path, never from the callback.
func (s *Session) reportDrops(src capture.Source) {
	if dropped := src.Dropped(); dropped > 0 {
		telemetry.BufferOverflow(s.log, int(dropped), s.cfg.BufferDepth)
	}
}

func (s *Session) addWarning(w Warning) {
	s.mu.Lock()
	s.warnings = append(s.warnings, w)
	s.mu.Unlock()
}
