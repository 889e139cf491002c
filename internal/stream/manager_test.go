package stream

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tapdeck/tapdeck/internal/backend"
	"github.com/tapdeck/tapdeck/internal/capture"
	"github.com/tapdeck/tapdeck/internal/filter"
	"github.com/tapdeck/tapdeck/internal/procs"
	"github.com/tapdeck/tapdeck/internal/session"
	"github.com/tapdeck/tapdeck/internal/tap"
)

// Mock implementations for testing

type mockInventory struct {
	processes []procs.ProcessInfo
	err       error
}

func (m *mockInventory) ListAudioProcesses(ctx context.Context) ([]procs.ProcessInfo, error) {
	return m.processes, m.err
}

type mockSource struct {
	done   chan error
	cancel context.CancelFunc
}

func (m *mockSource) Start(ctx context.Context, out chan<- []float32) error {
	ctx, m.cancel = context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		m.done <- nil
	}()
	return nil
}

func (m *mockSource) SampleRate() int { return 48000 }
func (m *mockSource) Pause() error    { return nil }
func (m *mockSource) Resume() error   { return nil }

func (m *mockSource) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *mockSource) Done() <-chan error { return m.done }

func (m *mockSource) Dropped() uint64 { return 0 }

type mockFactory struct {
	mu      sync.Mutex
	openErr error
	kinds   []backend.Kind
	descs   []*tap.Descriptor
}

func (m *mockFactory) Open(ctx context.Context, kind backend.Kind, device capture.Device, desc *tap.Descriptor) (capture.Source, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.mu.Lock()
	m.kinds = append(m.kinds, kind)
	m.descs = append(m.descs, desc)
	m.mu.Unlock()
	return &mockSource{done: make(chan error, 1)}, nil
}

func (m *mockFactory) ListDevices() ([]capture.Device, error) {
	return []capture.Device{capture.SystemAudioDevice()}, nil
}

func (m *mockFactory) lastKind() backend.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kinds[len(m.kinds)-1]
}

func (m *mockFactory) lastDesc() *tap.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.descs[len(m.descs)-1]
}

func newTestManager(factory capture.Factory) *Manager {
	return NewManager(Config{
		Inventory: &mockInventory{processes: []procs.ProcessInfo{
			{PID: 10, DisplayName: "Zoom"},
			{PID: 20, DisplayName: "Slack"},
		}},
		Factory:  factory,
		Selector: &backend.Selector{NativeTapSupported: true},
		Logger:   zerolog.Nop(),
	})
}

func TestManagerEnforcesOneSessionPerDevice(t *testing.T) {
	m := newTestManager(&mockFactory{})
	req := Request{Device: capture.SystemAudioDevice()}

	first, err := m.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	if _, err := m.Start(context.Background(), req); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("expected ErrDeviceBusy, got %v", err)
	}

	if err := m.Stop(first); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	// Slot is free again once the owning session is gone.
	second, err := m.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("start after stop failed: %v", err)
	}
	defer m.Stop(second)
}

func TestManagerFreesSlotWhenStartFails(t *testing.T) {
	factory := &mockFactory{openErr: errors.New("no such device")}
	m := newTestManager(factory)
	req := Request{Device: capture.SystemAudioDevice()}

	if _, err := m.Start(context.Background(), req); err == nil {
		t.Fatal("expected start to fail")
	}

	factory.openErr = nil
	sess, err := m.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("failed start must not hold the device slot: %v", err)
	}
	defer m.Stop(sess)
}

func TestManagerUnfilterableBackendWarnsAndRecords(t *testing.T) {
	factory := &mockFactory{}
	m := newTestManager(factory)

	sess, err := m.Start(context.Background(), Request{
		Device:     capture.SystemAudioDevice(),
		Preference: backend.ScreenCaptureSystemAudio,
		Filter:     filter.Spec{Apps: []string{"Zoom"}},
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.Stop(sess)

	if factory.lastKind() != backend.ScreenCaptureSystemAudio {
		t.Fatalf("explicit preference must be honored, got %s", factory.lastKind())
	}
	// The filter cannot be applied on this backend, so the capture runs
	// unfiltered and the session says so.
	if got := factory.lastDesc().ExcludedPIDs(); len(got) != 0 {
		t.Fatalf("unfilterable backend must not carry exclusions, got %v", got)
	}
	var warned bool
	for _, w := range sess.Warnings() {
		if _, ok := w.(backend.FilteringUnsupportedWarning); ok {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("ignored filter must be user-visible, warnings: %v", sess.Warnings())
	}
}

func TestManagerFilteredStartExcludesUnselected(t *testing.T) {
	factory := &mockFactory{}
	m := newTestManager(factory)

	sess, err := m.Start(context.Background(), Request{
		Device:     capture.SystemAudioDevice(),
		Preference: backend.NativeProcessTap,
		Filter:     filter.Spec{Apps: []string{"Zoom"}},
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.Stop(sess)

	got := factory.lastDesc().ExcludedPIDs()
	if len(got) != 1 || got[0] != 20 {
		t.Fatalf("expected Slack's pid excluded, got %v", got)
	}
	if m.Status(sess) != session.Recording {
		t.Fatalf("expected Recording, got %s", m.Status(sess))
	}
}

func TestManagerPauseResume(t *testing.T) {
	m := newTestManager(&mockFactory{})

	sess, err := m.Start(context.Background(), Request{Device: capture.SystemAudioDevice()})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.Stop(sess)

	if err := m.Pause(sess); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if m.Status(sess) != session.Paused {
		t.Fatalf("expected Paused, got %s", m.Status(sess))
	}
	if err := m.Resume(sess); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if m.Status(sess) != session.Recording {
		t.Fatalf("expected Recording, got %s", m.Status(sess))
	}
}

func TestManagerListAudioProcesses(t *testing.T) {
	m := newTestManager(&mockFactory{})

	processes, err := m.ListAudioProcesses(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(processes) != 2 {
		t.Fatalf("expected 2 processes, got %d", len(processes))
	}
}

func TestManagerListDevices(t *testing.T) {
	m := newTestManager(&mockFactory{})

	devices, err := m.ListDevices()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(devices) != 1 || devices[0].Type != backend.SystemAudio {
		t.Fatalf("expected the system audio device, got %v", devices)
	}
}
