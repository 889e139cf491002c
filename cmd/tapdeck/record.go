package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tapdeck/tapdeck/internal/capture"
	"github.com/tapdeck/tapdeck/internal/config"
	"github.com/tapdeck/tapdeck/internal/filter"
	"github.com/tapdeck/tapdeck/internal/permissions"
	"github.com/tapdeck/tapdeck/internal/session"
	"github.com/tapdeck/tapdeck/internal/stream"
	"github.com/tapdeck/tapdeck/internal/wav"
)

var (
	flagSeconds int
	flagOutput  string
)

func init() {
	recordCmd.Flags().IntVar(&flagSeconds, "seconds", 5, "capture duration in seconds")
	recordCmd.Flags().StringVar(&flagOutput, "output", "", "output WAV path (default: recordings folder, timestamped)")
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record system audio to a WAV file",
	Long: `Records system audio through the full capture pipeline and writes a
mono 32-bit float WAV file. With --app flags, audio from every other
application is excluded via the native process tap.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		if err := permissions.EnsurePermissions(); err != nil {
			log.Warn().Err(err).Msg("permission check failed; capture may not start")
		}

		preference, err := cfg.BackendKind()
		if err != nil {
			return err
		}
		policy := session.FailOnFilterError
		if cfg.FallbackUnfiltered {
			policy = session.FallbackUnfiltered
		}

		mgr := newManager(cfg, log)
		sess, err := mgr.Start(cmd.Context(), stream.Request{
			Device:     capture.SystemAudioDevice(),
			Preference: preference,
			Filter:     filter.Spec{Apps: cfg.FilteredApps},
			Policy:     policy,
		})
		if err != nil {
			return fmt.Errorf("failed to start capture: %w", err)
		}
		for _, w := range sess.Warnings() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}

		rate := uint32(sess.SampleRate())
		fmt.Printf("recording %d seconds of system audio at %d Hz...\n", flagSeconds, rate)

		var samples []float32
		deadline := time.After(time.Duration(flagSeconds) * time.Second)
	collect:
		for {
			select {
			case <-deadline:
				break collect
			case chunk, ok := <-sess.Buffers():
				if !ok {
					break collect
				}
				samples = append(samples, chunk...)
			}
		}

		if err := mgr.Stop(sess); err != nil {
			log.Warn().Err(err).Msg("stop returned error")
		}

		if len(samples) == 0 {
			return fmt.Errorf("no samples captured (session state: %s)", sess.State())
		}

		var sumSq float64
		for _, s := range samples {
			sumSq += float64(s) * float64(s)
		}
		rms := math.Sqrt(sumSq / float64(len(samples)))
		fmt.Printf("captured %d samples, RMS=%.4f\n", len(samples), rms)

		out := flagOutput
		if out == "" {
			dir := config.RecordingsPath()
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create recordings folder: %w", err)
			}
			out = filepath.Join(dir, time.Now().Format("2006-01-02_15-04-05")+".wav")
		}

		if err := wav.SaveF32Mono(out, rate, samples); err != nil {
			return err
		}
		fmt.Printf("saved: %s\n", out)
		return nil
	},
}
