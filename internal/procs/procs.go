// Package procs enumerates OS processes attached to the audio subsystem.
package procs

import (
	"context"
	"errors"
)

// ErrProcessQuery indicates the OS process enumeration itself failed
// (missing permission, unsupported OS version). Callers should treat it
// as recoverable: capture can still proceed unfiltered.
var ErrProcessQuery = errors.New("audio process query failed")

// ProcessInfo describes one process currently registered with the audio
// subsystem. PIDs are unique at query time but reused by the OS over time.
type ProcessInfo struct {
	PID         int32
	DisplayName string
	BundleID    string // empty when the platform has no bundle notion
}

// Inventory lists processes currently producing or consuming audio.
// Every call queries the OS fresh; results are never cached.
type Inventory interface {
	ListAudioProcesses(ctx context.Context) ([]ProcessInfo, error)
}
