package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/tapdeck/tapdeck/internal/backend"
)

var paInit sync.Once

func initPortAudio() error {
	var err error
	paInit.Do(func() {
		err = portaudio.Initialize()
	})
	if err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// portAudioSource captures from a concrete input device. It ignores tap
// descriptors: per-process filtering is a tap-backend capability.
type portAudioSource struct {
	deviceID   string
	sampleRate int
	frames     int

	stream  *portaudio.Stream
	paused  atomic.Bool
	dropped atomic.Uint64
	done    chan error
	stop    context.CancelFunc
}

func newPortAudioSource(deviceID string, cfg Config) (Source, error) {
	if err := initPortAudio(); err != nil {
		return nil, err
	}
	return &portAudioSource{
		deviceID:   deviceID,
		sampleRate: cfg.SampleRate,
		frames:     cfg.FramesPerBuffer,
		done:       make(chan error, 1),
	}, nil
}

func (p *portAudioSource) Start(ctx context.Context, out chan<- []float32) error {
	device, err := findInputDevice(p.deviceID)
	if err != nil {
		return err
	}

	channels := 1
	if device.MaxInputChannels > 1 {
		channels = 2
	}
	buffer := make([]float32, p.frames*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.sampleRate),
		FramesPerBuffer: p.frames,
	}, buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	p.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	ctx, p.stop = context.WithCancel(ctx)

	go func() {
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				p.done <- nil
				return
			default:
				if err := stream.Read(); err != nil {
					p.done <- fmt.Errorf("audio stream read failed: %w", err)
					return
				}
				if p.paused.Load() {
					continue
				}
				samples := downmixInterleaved(buffer, channels, p.frames)

				select {
				case out <- samples:
				case <-ctx.Done():
					p.done <- nil
					return
				default:
					// Drop if channel full (backpressure)
					p.dropped.Add(1)
				}
			}
		}
	}()

	return nil
}

func (p *portAudioSource) SampleRate() int { return p.sampleRate }

func (p *portAudioSource) Pause() error {
	p.paused.Store(true)
	return nil
}

func (p *portAudioSource) Resume() error {
	p.paused.Store(false)
	return nil
}

func (p *portAudioSource) Stop() error {
	if p.stop != nil {
		p.stop()
	}
	if p.stream != nil {
		return p.stream.Stop()
	}
	return nil
}

func (p *portAudioSource) Done() <-chan error { return p.done }

func (p *portAudioSource) Dropped() uint64 { return p.dropped.Load() }

func findInputDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" || deviceID == "default" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", deviceID)
}

func listPortAudioDevices() ([]Device, error) {
	if err := initPortAudio(); err != nil {
		return nil, err
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]Device, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				ID:      d.Name,
				Name:    d.Name,
				Type:    backend.InputDevice,
				Default: d == defaultDevice,
			})
		}
	}
	return result, nil
}
