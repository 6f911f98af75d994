// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared utilities for theseus.
//
// It contains the atomic file writer used by the session store and
// string helpers for rune- and width-aware truncation of labels.
package util
