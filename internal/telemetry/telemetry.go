// Package telemetry emits structured events for the capture pipeline.
// Events are logged off the real-time delivery path only.
package telemetry

import (
	"time"

	"github.com/rs/zerolog"
)

// CaptureRestart records one supervisor restart attempt after a stream failure.
func CaptureRestart(log zerolog.Logger, attempt int, backoff time.Duration, cause error) {
	log.Warn().
		Str("event", "capture_restart").
		Int("attempt", attempt).
		Dur("backoff", backoff).
		Err(cause).
		Msg("capture stream interrupted, restarting")
}

// CaptureRecovered records a stream coming back after restarts.
func CaptureRecovered(log zerolog.Logger, sampleRate int) {
	log.Info().
		Str("event", "capture_recovered").
		Int("sample_rate", sampleRate).
		Msg("capture stream recovered")
}

// BufferOverflow records dropped delivery buffers, reported out-of-band by
// the consumer, never from the audio callback itself.
func BufferOverflow(log zerolog.Logger, dropped, depth int) {
	log.Warn().
		Str("event", "buffer_overflow").
		Int("dropped", dropped).
		Int("depth", depth).
		Msg("delivery channel overflow")
}

// CaptureShutdown records orderly supervisor exit.
func CaptureShutdown(log zerolog.Logger) {
	log.Info().
		Str("event", "capture_shutdown").
		Msg("capture supervisor exiting")
}
