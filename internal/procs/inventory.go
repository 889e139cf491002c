package procs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/tapdeck/tapdeck/internal/native"
)

// System returns the inventory for the current platform. On macOS the
// capture helper reports exactly the processes registered with the audio
// HAL; elsewhere the gopsutil enumeration approximates the audio-process
// set with every named user process (there is no portable registry of
// audio producers outside CoreAudio).
func System() Inventory {
	if native.Supported() {
		return &helperInventory{}
	}
	return &psutilInventory{}
}

type helperInventory struct{}

func (h *helperInventory) ListAudioProcesses(ctx context.Context) ([]ProcessInfo, error) {
	apps, err := native.ListAudioApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessQuery, err)
	}
	infos := make([]ProcessInfo, 0, len(apps))
	for _, app := range apps {
		if app.PID <= 0 || app.Name == "" {
			continue
		}
		infos = append(infos, ProcessInfo{
			PID:         app.PID,
			DisplayName: app.Name,
			BundleID:    app.BundleID,
		})
	}
	sortByPID(infos)
	return infos, nil
}

type psutilInventory struct{}

func (p *psutilInventory) ListAudioProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessQuery, err)
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, pr := range procs {
		name, err := pr.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		infos = append(infos, ProcessInfo{
			PID:         pr.Pid,
			DisplayName: strings.TrimSpace(name),
		})
	}
	sortByPID(infos)
	return infos, nil
}

func sortByPID(infos []ProcessInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].PID < infos[j].PID })
}
