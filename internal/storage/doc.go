// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides session persistence for theseus.
//
// Each session is one JSON file in the sessions directory, named after
// its ID (chat_YYYYMMDD_HHMMSS.json) and holding the message array in
// human-readable form. The ID doubles as the sort key: listing sorts
// filenames descending, which is reverse chronological by construction.
package storage
