// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vram reports GPU memory usage via nvidia-smi.
//
// The query is strictly informational: when nvidia-smi is missing,
// fails, or produces output we can't parse, Query returns a safe
// default instead of an error so the UI always has something to show.
package vram

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultTotalMB is reported as the total when no GPU can be queried.
const DefaultTotalMB = 16384

// queryTimeout bounds a single nvidia-smi invocation.
const queryTimeout = 3 * time.Second

// Usage holds a point-in-time GPU memory reading in megabytes.
type Usage struct {
	UsedMB  int
	TotalMB int
}

// Default returns the fallback reading used when the GPU is absent.
func Default() Usage {
	return Usage{UsedMB: 0, TotalMB: DefaultTotalMB}
}

// Percent returns used memory as a fraction of total, in [0, 1].
func (u Usage) Percent() float64 {
	if u.TotalMB <= 0 {
		return 0
	}
	p := float64(u.UsedMB) / float64(u.TotalMB)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// runCommand is swapped out by tests.
var runCommand = func(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).Output()
}

// Query reads current GPU memory usage. It never returns an error:
// any failure yields Default().
func Query(ctx context.Context) Usage {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	for _, path := range nvidiaSmiPaths() {
		out, err := runCommand(ctx, path,
			"--query-gpu=memory.used,memory.total",
			"--format=csv,noheader,nounits")
		if err != nil {
			continue
		}
		if usage, ok := parseOutput(string(out)); ok {
			return usage
		}
	}

	return Default()
}

// parseOutput parses nvidia-smi CSV output ("used, total" in MiB).
// Multi-GPU hosts produce one line per device; the first device wins.
func parseOutput(out string) (Usage, bool) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// nvidia-smi outputs CSV with ", " as delimiter
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			continue
		}

		used, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		total, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || total <= 0 {
			continue
		}

		return Usage{UsedMB: used, TotalMB: total}, true
	}
	return Usage{}, false
}

// nvidiaSmiPaths returns candidate nvidia-smi locations for this OS.
func nvidiaSmiPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}
