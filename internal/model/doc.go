// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
//
// A Session is an ordered sequence of Messages identified by a
// timestamp-derived ID, so session IDs sort lexicographically in
// creation order. The package also owns the two presentation rules the
// rest of the program relies on: label derivation from the first user
// message and the fixed 10-message history window used when building
// backend requests.
package model
