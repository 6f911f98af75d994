// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionID(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "chat_20250314_092653", SessionID(ts))
}

func TestSessionIDOrdering(t *testing.T) {
	// Lexicographic order of IDs must match chronological order.
	base := time.Date(2025, 12, 31, 23, 59, 58, 0, time.UTC)
	earlier := SessionID(base)
	later := SessionID(base.Add(3 * time.Second)) // crosses the year boundary
	assert.Less(t, earlier, later)
}

func TestNewSessionEmpty(t *testing.T) {
	sess := NewSession()
	assert.True(t, sess.IsEmpty())
	assert.Equal(t, 0, sess.MessageCount())
	assert.True(t, strings.HasPrefix(sess.ID, "chat_"))
}

func TestAppendAndLast(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("hello")
	sess.AppendAssistant("hi there")

	require.Equal(t, 2, sess.MessageCount())
	assert.Equal(t, RoleAssistant, sess.Last().Role)
	assert.Equal(t, "hi there", sess.Last().Content)
}

func TestWindow(t *testing.T) {
	sess := NewSession()
	for i := 0; i < 15; i++ {
		sess.AppendUser(string(rune('a' + i)))
	}

	window := sess.Window(HistoryWindow)
	require.Len(t, window, HistoryWindow)
	// Oldest five dropped, order preserved.
	assert.Equal(t, "f", window[0].Content)
	assert.Equal(t, "o", window[len(window)-1].Content)
}

func TestWindowShorterThanLimit(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("only one")
	assert.Len(t, sess.Window(HistoryWindow), 1)
	assert.Nil(t, sess.Window(0))
}

func TestLabelShortMessage(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("short question")
	assert.Equal(t, "short question", sess.Label())
}

func TestLabelLongMessage(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("this is a fairly long first message that gets cut")

	label := sess.Label()
	assert.True(t, strings.HasSuffix(label, "..."))
	assert.Equal(t, LabelRunes+3, len([]rune(label)))
	assert.Equal(t, "this is a fairly long fir...", label)
}

func TestLabelExactBoundary(t *testing.T) {
	content := strings.Repeat("x", LabelRunes)
	sess := NewSession()
	sess.AppendUser(content)
	// Exactly at the limit: no ellipsis.
	assert.Equal(t, content, sess.Label())
}

func TestLabelMultibyte(t *testing.T) {
	content := strings.Repeat("日", LabelRunes+1)
	sess := NewSession()
	sess.AppendUser(content)

	label := sess.Label()
	assert.Equal(t, strings.Repeat("日", LabelRunes)+"...", label)
}

func TestLabelFallsBackToID(t *testing.T) {
	sess := NewSession()
	assert.Equal(t, sess.ID, sess.Label())

	// A session with only assistant messages also falls back.
	sess.AppendAssistant("unprompted")
	assert.Equal(t, sess.ID, sess.Label())
}

func TestLabelSkipsToFirstUserMessage(t *testing.T) {
	sess := NewSession()
	sess.Append(NewSystemMessage("context"))
	sess.AppendUser("the real label")
	assert.Equal(t, "the real label", sess.Label())
}

func TestLabelFlattensNewlines(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("line one\nline two")
	assert.Equal(t, "line one line two", sess.Label())
}

func TestBuildRequestProfileFirst(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("hello")

	msgs := sess.BuildRequest("Raul's rig", "")
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "System: Raul's rig", msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestBuildRequestDocumentContext(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("summarize it")

	msgs := sess.BuildRequest("profile", "extracted pdf text")
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[1].Role)
	assert.Equal(t, "Document: extracted pdf text", msgs[1].Content)
}

func TestBuildRequestWindowed(t *testing.T) {
	sess := NewSession()
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			sess.AppendUser("u")
		} else {
			sess.AppendAssistant("a")
		}
	}

	msgs := sess.BuildRequest("p", "")
	// 1 system + last 10.
	require.Len(t, msgs, 1+HistoryWindow)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[len(msgs)-1].Role)
}

func TestBuildRequestExcludesInFlightPlaceholder(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("real")
	sess.Append(NewStreamingMessage()) // reply in progress

	msgs := sess.BuildRequest("p", "")
	require.Len(t, msgs, 2)
	assert.Equal(t, "real", msgs[1].Content)
}

func TestBuildRequestKeepsEmptyMessages(t *testing.T) {
	// Persisted empty messages are forwarded as-is; the window is
	// exactly the trailing messages, not a filtered view of them.
	sess := NewSession()
	sess.AppendUser("question")
	sess.AppendAssistant("")
	sess.AppendUser("follow-up")

	msgs := sess.BuildRequest("p", "")
	require.Len(t, msgs, 4)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Empty(t, msgs[2].Content)
	assert.Equal(t, "follow-up", msgs[3].Content)
}

func TestDropStreaming(t *testing.T) {
	sess := NewSession()
	sess.AppendUser("q")
	sess.Append(NewStreamingMessage())

	sess.DropStreaming()
	require.Equal(t, 1, sess.MessageCount())
	assert.Equal(t, RoleUser, sess.Last().Role)

	// Completed messages are never dropped.
	sess.AppendAssistant("a")
	sess.DropStreaming()
	assert.Equal(t, 2, sess.MessageCount())
}

func TestStreamingMessageLifecycle(t *testing.T) {
	msg := NewStreamingMessage()
	assert.True(t, msg.IsEmpty())

	msg.AppendToken("Hi")
	msg.AppendToken(" there")
	assert.Equal(t, "Hi there", msg.DisplayContent())
	assert.Empty(t, msg.Content)

	msg.FinalizeStream()
	assert.False(t, msg.IsStreaming)
	assert.Equal(t, "Hi there", msg.Content)
	assert.Equal(t, "Hi there", msg.DisplayContent())
}

func TestAppendToLastOnlyWhileStreaming(t *testing.T) {
	sess := NewSession()
	sess.AppendAssistant("done")
	sess.AppendToLast("ignored")
	assert.Equal(t, "done", sess.Last().Content)

	sess.Append(NewStreamingMessage())
	sess.AppendToLast("tok")
	assert.Equal(t, "tok", sess.Last().DisplayContent())
}

func TestRoleDisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())
	assert.Equal(t, "System", RoleSystem.DisplayName())
}
