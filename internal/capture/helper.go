package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sync/atomic"

	"github.com/tapdeck/tapdeck/internal/native"
)

// helperSampleRate matches the rate the capture helper is configured for.
const helperSampleRate = 48000

// helperFramesPerChunk sizes the chunks handed to the delivery channel.
const helperFramesPerChunk = 1024

// helperSource streams f32le mono samples from the native capture helper's
// stdout. One helper process per source; the tap descriptor payload travels
// on the helper's stdin.
type helperSource struct {
	mode    native.Mode
	payload []byte

	cmd     *exec.Cmd
	cancel  context.CancelFunc
	paused  atomic.Bool
	dropped atomic.Uint64
	done    chan error
}

func newHelperSource(ctx context.Context, mode native.Mode, payload []byte) (Source, error) {
	if !native.Supported() {
		return nil, native.ErrUnsupported
	}
	return &helperSource{
		mode:    mode,
		payload: payload,
		done:    make(chan error, 1),
	}, nil
}

func (h *helperSource) Start(ctx context.Context, out chan<- []float32) error {
	ctx, h.cancel = context.WithCancel(ctx)

	cmd, err := native.CaptureCommand(ctx, h.mode, h.payload)
	if err != nil {
		h.cancel()
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.cancel()
		return fmt.Errorf("failed to create helper stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		h.cancel()
		return fmt.Errorf("failed to start capture helper: %w", err)
	}
	h.cmd = cmd

	go h.readLoop(ctx, stdout, out)
	return nil
}

func (h *helperSource) readLoop(ctx context.Context, stdout io.Reader, out chan<- []float32) {
	raw := make([]byte, helperFramesPerChunk*4)
	for {
		n, err := io.ReadFull(stdout, raw)
		if err != nil {
			waitErr := h.cmd.Wait()
			if ctx.Err() != nil {
				h.done <- nil
				return
			}
			if waitErr != nil {
				h.done <- fmt.Errorf("capture helper exited: %w", waitErr)
			} else {
				h.done <- fmt.Errorf("capture helper stream ended: %w", err)
			}
			return
		}
		if h.paused.Load() {
			continue
		}

		frames := n / 4
		samples := make([]float32, frames)
		for i := 0; i < frames; i++ {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			samples[i] = math.Float32frombits(bits)
		}

		select {
		case out <- samples:
		case <-ctx.Done():
			_ = h.cmd.Wait()
			h.done <- nil
			return
		default:
			// Drop if channel full (backpressure)
			h.dropped.Add(1)
		}
	}
}

func (h *helperSource) SampleRate() int { return helperSampleRate }

func (h *helperSource) Pause() error {
	h.paused.Store(true)
	return nil
}

func (h *helperSource) Resume() error {
	h.paused.Store(false)
	return nil
}

func (h *helperSource) Stop() error {
	if h.cancel != nil {
		h.cancel()
	}
	return nil
}

func (h *helperSource) Done() <-chan error { return h.done }

func (h *helperSource) Dropped() uint64 { return h.dropped.Load() }
