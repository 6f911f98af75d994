// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
package model

import (
	"time"

	"github.com/jeranaias/theseus-tui/internal/ollama"
	"github.com/jeranaias/theseus-tui/internal/util"
)

// HistoryWindow is the number of trailing messages included in a
// backend request. Bounds request size without a summarization step; a
// deliberately simple count-based policy, not a token-aware one.
const HistoryWindow = 10

// LabelRunes is the number of leading characters of the first user
// message used as a session's sidebar label.
const LabelRunes = 25

// sessionIDLayout is the time layout baked into session IDs. Second
// resolution is enough for uniqueness under single-user sequential use,
// and the layout keeps lexicographic order equal to creation order.
const sessionIDLayout = "20060102_150405"

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds one chat transcript. The message slice is the
// conversation in insertion order; messages are owned exclusively by
// their session.
type Session struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Messages  []*Message `json:"messages"`
}

// NewSession creates a new empty session with a timestamp-derived ID.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        SessionID(now),
		CreatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// SessionID derives the session identifier for a creation time.
func SessionID(t time.Time) string {
	return "chat_" + t.Format(sessionIDLayout)
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the session.
func (s *Session) Append(msg *Message) {
	s.Messages = append(s.Messages, msg)
}

// AppendUser creates and appends a user message.
func (s *Session) AppendUser(content string) *Message {
	msg := NewUserMessage(content)
	s.Append(msg)
	return msg
}

// AppendAssistant creates and appends a completed assistant message.
func (s *Session) AppendAssistant(content string) *Message {
	msg := NewMessage(RoleAssistant, content)
	s.Append(msg)
	return msg
}

// Last returns the most recent message, or nil if the session is empty.
func (s *Session) Last() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// AppendToLast appends a token to the last (streaming) message.
func (s *Session) AppendToLast(token string) {
	last := s.Last()
	if last != nil && last.IsStreaming {
		last.AppendToken(token)
	}
}

// DropStreaming removes a trailing in-flight message, if any. Used when
// a turn fails before its reply arrives; completed messages are never
// dropped.
func (s *Session) DropStreaming() {
	if last := s.Last(); last != nil && last.IsStreaming {
		s.Messages = s.Messages[:len(s.Messages)-1]
	}
}

// MessageCount returns the number of messages.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// IsEmpty returns true if there are no messages.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// Window returns the last n messages in original order. The returned
// slice aliases the session's messages.
func (s *Session) Window(n int) []*Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// =============================================================================
// LABELS
// =============================================================================

// Label returns the sidebar label for the session: the first LabelRunes
// characters of the first user message, with "..." appended when the
// content is longer. Falls back to the session ID when no user message
// exists.
func (s *Session) Label() string {
	if label := LabelFor(s.Messages); label != "" {
		return label
	}
	return s.ID
}

// LabelFor derives a display label from a message sequence, or ""
// when the sequence has no user message.
func LabelFor(messages []*Message) string {
	for _, msg := range messages {
		if msg.Role != RoleUser || msg.Content == "" {
			continue
		}
		content := util.Flatten(msg.Content)
		runes := []rune(content)
		if len(runes) > LabelRunes {
			return string(runes[:LabelRunes]) + "..."
		}
		return content
	}
	return ""
}

// =============================================================================
// REQUEST ASSEMBLY
// =============================================================================

// BuildRequest assembles the message list for a text-model call: a
// leading system message carrying the profile, an optional second
// system message carrying extracted document text verbatim, then the
// last HistoryWindow messages of the session in original order.
func (s *Session) BuildRequest(profile, docContext string) []ollama.Message {
	messages := make([]ollama.Message, 0, HistoryWindow+2)

	messages = append(messages, ollama.NewSystemMessage("System: "+profile))

	if docContext != "" {
		// Passed through in full; no truncation.
		messages = append(messages, ollama.NewSystemMessage("Document: "+docContext))
	}

	for _, msg := range s.Window(HistoryWindow) {
		// The in-flight reply placeholder never echoes into its own
		// request; everything else is forwarded as-is, empty or not.
		if msg.IsStreaming {
			continue
		}
		messages = append(messages, ollama.Message{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}

	return messages
}
