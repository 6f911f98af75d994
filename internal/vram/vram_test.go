// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vram

import (
	"context"
	"errors"
	"testing"
)

func withRunCommand(t *testing.T, fn func(ctx context.Context, path string, args ...string) ([]byte, error)) {
	t.Helper()
	orig := runCommand
	runCommand = fn
	t.Cleanup(func() { runCommand = orig })
}

func TestQueryParsesOutput(t *testing.T) {
	withRunCommand(t, func(ctx context.Context, path string, args ...string) ([]byte, error) {
		return []byte("4523, 16384\n"), nil
	})

	usage := Query(context.Background())
	if usage.UsedMB != 4523 || usage.TotalMB != 16384 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestQueryFirstGPUWins(t *testing.T) {
	withRunCommand(t, func(ctx context.Context, path string, args ...string) ([]byte, error) {
		return []byte("1000, 16384\n2000, 24576\n"), nil
	})

	usage := Query(context.Background())
	if usage.UsedMB != 1000 || usage.TotalMB != 16384 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestQueryCommandFailure(t *testing.T) {
	withRunCommand(t, func(ctx context.Context, path string, args ...string) ([]byte, error) {
		return nil, errors.New("executable file not found")
	})

	usage := Query(context.Background())
	if usage != Default() {
		t.Errorf("usage = %+v, want default %+v", usage, Default())
	}
}

func TestQueryMalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"garbage", "not a number, also not\n"},
		{"empty", ""},
		{"missing column", "4523\n"},
		{"zero total", "100, 0\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			withRunCommand(t, func(ctx context.Context, path string, args ...string) ([]byte, error) {
				return []byte(tc.out), nil
			})

			if usage := Query(context.Background()); usage != Default() {
				t.Errorf("usage = %+v, want default", usage)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		usage Usage
		want  float64
	}{
		{"half", Usage{UsedMB: 8192, TotalMB: 16384}, 0.5},
		{"zero total", Usage{UsedMB: 100, TotalMB: 0}, 0},
		{"over capacity clamps", Usage{UsedMB: 20000, TotalMB: 16384}, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.usage.Percent(); got != tc.want {
				t.Errorf("Percent() = %f, want %f", got, tc.want)
			}
		})
	}
}
