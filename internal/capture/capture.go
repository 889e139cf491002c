// Package capture provides the audio sources behind each backend kind.
package capture

import (
	"context"
	"fmt"

	"github.com/tapdeck/tapdeck/internal/backend"
	"github.com/tapdeck/tapdeck/internal/native"
	"github.com/tapdeck/tapdeck/internal/tap"
)

// Device identifies what a session records.
type Device struct {
	ID      string
	Name    string
	Type    backend.DeviceType
	Default bool
}

// SystemAudioDevice is the pseudo-device representing mixed system output.
func SystemAudioDevice() Device {
	return Device{ID: "system-audio", Name: "System Audio", Type: backend.SystemAudio}
}

// Source is one live audio stream. Buffer delivery runs on a goroutine fed
// by the OS audio callback; the out channel hand-off never blocks (full
// buffers are dropped) and the delivery path never logs or allocates beyond
// the per-chunk copy.
type Source interface {
	// Start begins delivery into out. It returns once the stream is running.
	Start(ctx context.Context, out chan<- []float32) error
	// SampleRate reports the stream rate in Hz, valid after Start.
	SampleRate() int
	// Pause suspends buffer delivery without releasing the stream.
	Pause() error
	// Resume restarts delivery after Pause.
	Resume() error
	// Stop tears the stream down and releases its resources.
	Stop() error
	// Done receives the terminal error when the stream ends on its own.
	Done() <-chan error
	// Dropped counts buffers discarded because the delivery channel was full.
	Dropped() uint64
}

// Factory opens a Source for the backend chosen at session start.
type Factory interface {
	Open(ctx context.Context, kind backend.Kind, device Device, desc *tap.Descriptor) (Source, error)
	ListDevices() ([]Device, error)
}

// Config tunes the default factory.
type Config struct {
	SampleRate      int // device capture rate, default 16000
	FramesPerBuffer int // default 512
}

type factory struct {
	cfg Config
}

// New creates the production factory.
func New(cfg Config) Factory {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FramesPerBuffer == 0 {
		cfg.FramesPerBuffer = 512
	}
	return &factory{cfg: cfg}
}

func (f *factory) Open(ctx context.Context, kind backend.Kind, device Device, desc *tap.Descriptor) (Source, error) {
	switch kind {
	case backend.NativeProcessTap:
		if desc == nil {
			return nil, fmt.Errorf("native tap backend requires a descriptor")
		}
		return newHelperSource(ctx, native.ModeProcessTap, desc.Payload())
	case backend.ScreenCaptureSystemAudio:
		return newHelperSource(ctx, native.ModeScreenCapture, nil)
	case backend.GenericDeviceCapture:
		return newPortAudioSource(device.ID, f.cfg)
	default:
		return nil, fmt.Errorf("unknown backend kind: %s", kind)
	}
}

func (f *factory) ListDevices() ([]Device, error) {
	devices, err := listPortAudioDevices()
	if err != nil {
		return nil, err
	}
	return append([]Device{SystemAudioDevice()}, devices...), nil
}

// downmixInterleaved folds interleaved multi-channel frames to mono by
// averaging. The result is always a fresh slice.
func downmixInterleaved(samples []float32, channels, frames int) []float32 {
	out := make([]float32, frames)
	if channels <= 1 {
		copy(out, samples[:frames])
		return out
	}
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
