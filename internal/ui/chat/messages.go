// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines all Bubble Tea message types used by the chat
// interface, grouped by concern:
//   - Turn lifecycle: token delivery and completion
//   - Sessions: listing, opening, creation, and external changes
//   - Models: installed-model discovery
//   - Attachments: extraction results and progress
//   - Telemetry: GPU memory readings
//
// All message types follow Bubble Tea conventions and are immutable.
package chat

import (
	"time"

	"github.com/jeranaias/theseus-tui/internal/extract"
	"github.com/jeranaias/theseus-tui/internal/model"
	"github.com/jeranaias/theseus-tui/internal/ollama"
	"github.com/jeranaias/theseus-tui/internal/storage"
	"github.com/jeranaias/theseus-tui/internal/vram"
)

// =============================================================================
// TURN MESSAGES
// =============================================================================

// StreamTokenMsg delivers a new token from the in-flight turn.
type StreamTokenMsg struct {
	Token string
}

// TurnDoneMsg signals that the current turn finished, successfully or
// not. Reply carries the full assistant response; Stats the generation
// statistics when available.
type TurnDoneMsg struct {
	Reply string
	Stats *ollama.StreamStats
	Err   error
}

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// SessionsLoadedMsg delivers the session list for the sidebar.
type SessionsLoadedMsg struct {
	Metas []storage.SessionMeta
	Err   error
}

// SessionOpenedMsg delivers a session loaded from disk.
type SessionOpenedMsg struct {
	Session *model.Session
	Err     error
}

// SessionCreatedMsg delivers a freshly created session.
type SessionCreatedMsg struct {
	Session *model.Session
	Err     error
}

// SessionsChangedMsg signals that the sessions directory changed on
// disk (another process, manual edits). The list should be reloaded.
type SessionsChangedMsg struct{}

// =============================================================================
// MODEL MESSAGES
// =============================================================================

// ModelsLoadedMsg delivers the list of installed models.
type ModelsLoadedMsg struct {
	Models []ollama.ModelInfo
	Err    error
}

// OllamaStatusMsg reports backend reachability at startup.
type OllamaStatusMsg struct {
	Running bool
	Err     error
}

// =============================================================================
// ATTACHMENT MESSAGES
// =============================================================================

// AttachmentMsg delivers the result of extracting an uploaded file.
type AttachmentMsg struct {
	Blob *extract.Blob
	Err  error
}

// AttachmentStatusMsg carries extraction progress (OCR page counts).
type AttachmentStatusMsg struct {
	Status string
}

// =============================================================================
// TELEMETRY MESSAGES
// =============================================================================

// VRAMMsg delivers a GPU memory reading.
type VRAMMsg struct {
	Usage vram.Usage
}

// vramTickMsg schedules the next GPU poll.
type vramTickMsg struct {
	Time time.Time
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// FlashMsg shows a transient status-bar notice.
type FlashMsg struct {
	Text string
}

// clearFlashMsg hides the transient notice again.
type clearFlashMsg struct{}
