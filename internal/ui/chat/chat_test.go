// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/theseus-tui/internal/config"
	"github.com/jeranaias/theseus-tui/internal/model"
	"github.com/jeranaias/theseus-tui/internal/ollama"
	"github.com/jeranaias/theseus-tui/internal/orchestrator"
	"github.com/jeranaias/theseus-tui/internal/storage"
)

// =============================================================================
// COMMAND PARSING TESTS
// =============================================================================

func TestParseCommandPlainInput(t *testing.T) {
	_, ok := ParseCommand("hello there")
	assert.False(t, ok, "plain chat input is not a command")

	_, ok = ParseCommand("  what about /model mid-sentence")
	assert.False(t, ok)
}

func TestParseCommandKinds(t *testing.T) {
	tests := []struct {
		input string
		kind  Command
		arg   string
	}{
		{"/new", CmdNew, ""},
		{"/open chat_20250101_100000", CmdOpen, "chat_20250101_100000"},
		{"/open 3", CmdOpen, "3"},
		{"/sessions", CmdSessions, ""},
		{"/model llava:13b", CmdModel, "llava:13b"},
		{"/attach ~/docs/paper.pdf", CmdAttach, "~/docs/paper.pdf"},
		{"/detach", CmdDetach, ""},
		{"/export", CmdExport, ""},
		{"/help", CmdHelp, ""},
		{"/quit", CmdQuit, ""},
		{"/q", CmdQuit, ""},
		{"/QUIT", CmdQuit, ""},
		{"  /new  ", CmdNew, ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			cmd, ok := ParseCommand(tc.input)
			assert.True(t, ok)
			assert.Equal(t, tc.kind, cmd.Kind)
			assert.Equal(t, tc.arg, cmd.Arg)
		})
	}
}

func TestParseCommandUnknown(t *testing.T) {
	cmd, ok := ParseCommand("/frobnicate now")
	assert.True(t, ok)
	assert.Equal(t, CmdUnknown, cmd.Kind)
	assert.Equal(t, "frobnicate", cmd.Arg)
}

// =============================================================================
// SESSION ARG RESOLUTION TESTS
// =============================================================================

func TestResolveSessionArg(t *testing.T) {
	m := &Model{metas: []storage.SessionMeta{
		{ID: "chat_20250301_100000"},
		{ID: "chat_20250201_100000"},
	}}

	assert.Equal(t, "chat_20250101_090000", m.resolveSessionArg("chat_20250101_090000"),
		"full IDs pass through")
	assert.Equal(t, "chat_20250301_100000", m.resolveSessionArg("1"))
	assert.Equal(t, "chat_20250201_100000", m.resolveSessionArg("2"))
	assert.Empty(t, m.resolveSessionArg("3"), "index out of range")
	assert.Empty(t, m.resolveSessionArg("0"))
	assert.Empty(t, m.resolveSessionArg("abc"))
	assert.Empty(t, m.resolveSessionArg(""))
}

// =============================================================================
// TURN FLOW TESTS
// =============================================================================

type stubBackend struct{}

func (stubBackend) Chat(ctx context.Context, model string, messages []ollama.Message) (*ollama.ChatResponse, error) {
	return &ollama.ChatResponse{}, nil
}

func (stubBackend) ChatStreamChan(ctx context.Context, model string, messages []ollama.Message) <-chan ollama.StreamChunk {
	ch := make(chan ollama.StreamChunk)
	close(ch)
	return ch
}

type stubStore struct{ saves int }

func (s *stubStore) Save(sess *model.Session) error {
	s.saves++
	return nil
}

func turnTestModel(t *testing.T) (*Model, *orchestrator.Orchestrator, *stubStore) {
	t.Helper()
	store := &stubStore{}
	orch := orchestrator.New(stubBackend{}, store, "p")
	sess := model.NewSession()
	m := New(config.Default(), nil, orch, nil, nil, sess, nil)
	return m, orch, store
}

// Streamed tokens reach the transcript only through the UI handlers;
// the session is owned by this side of the turn for its whole lifetime.
func TestStreamTokensLandInSessionViaHandlers(t *testing.T) {
	m, orch, store := turnTestModel(t)

	turn, err := orch.BeginTurn(m.session, "hi", nil, orchestrator.ModelChoice{Name: "m"})
	require.NoError(t, err)
	m.streaming = true

	// The placeholder is in the session but not in the request snapshot.
	require.Equal(t, 2, m.session.MessageCount())
	assert.True(t, m.session.Last().IsStreaming)
	for _, msg := range turn.Messages {
		assert.NotEmpty(t, msg.Role)
	}
	assert.Len(t, turn.Messages, 2) // profile + user

	m.handleStreamToken(StreamTokenMsg{Token: "Hel"})
	m.handleStreamToken(StreamTokenMsg{Token: "lo"})
	assert.Equal(t, "Hello", m.session.Last().DisplayContent())

	m.handleTurnDone(TurnDoneMsg{Reply: "Hello"})
	last := m.session.Last()
	assert.False(t, last.IsStreaming)
	assert.Equal(t, "Hello", last.Content)
	assert.False(t, m.streaming)
	assert.Equal(t, 2, store.saves)
}

func TestFailedTurnDropsPlaceholder(t *testing.T) {
	m, orch, store := turnTestModel(t)

	_, err := orch.BeginTurn(m.session, "hi", nil, orchestrator.ModelChoice{Name: "m"})
	require.NoError(t, err)
	m.streaming = true

	m.handleTurnDone(TurnDoneMsg{Err: ollama.ErrNotRunning})

	// Only the user message remains, and it stays persisted.
	require.Equal(t, 1, m.session.MessageCount())
	assert.Equal(t, model.RoleUser, m.session.Messages[0].Role)
	assert.Equal(t, 1, store.saves)
	assert.Contains(t, m.errText, "ollama serve")
	assert.False(t, m.streaming)
}

// =============================================================================
// ERROR PRESENTATION TESTS
// =============================================================================

func TestFriendlyError(t *testing.T) {
	assert.Contains(t, friendlyError(ollama.ErrNotRunning), "ollama serve")
	assert.Contains(t, friendlyError(ollama.ErrModelNotFound), "ollama pull")
	assert.Contains(t, friendlyError(ollama.ErrTimeout), "too long")
	assert.Equal(t, "boom", friendlyError(assertableError("boom")))
	assert.Empty(t, friendlyError(nil))
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
