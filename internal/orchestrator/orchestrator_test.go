// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/theseus-tui/internal/extract"
	"github.com/jeranaias/theseus-tui/internal/model"
	"github.com/jeranaias/theseus-tui/internal/ollama"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeBackend struct {
	// streamTokens are emitted one chunk each by ChatStreamChan.
	streamTokens []string
	streamErr    error

	chatReply string
	chatErr   error

	// captured requests
	lastModel    string
	lastMessages []ollama.Message
	chatCalls    int
	streamCalls  int
}

func (f *fakeBackend) Chat(ctx context.Context, model string, messages []ollama.Message) (*ollama.ChatResponse, error) {
	f.chatCalls++
	f.lastModel = model
	f.lastMessages = messages
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &ollama.ChatResponse{Message: ollama.NewAssistantMessage(f.chatReply), Done: true}, nil
}

func (f *fakeBackend) ChatStreamChan(ctx context.Context, model string, messages []ollama.Message) <-chan ollama.StreamChunk {
	f.streamCalls++
	f.lastModel = model
	f.lastMessages = messages

	ch := make(chan ollama.StreamChunk, len(f.streamTokens)+1)
	if f.streamErr != nil {
		ch <- ollama.StreamChunk{Error: f.streamErr, Done: true}
	} else {
		for _, tok := range f.streamTokens {
			ch <- ollama.StreamChunk{Content: tok}
		}
		ch <- ollama.StreamChunk{Done: true}
	}
	close(ch)
	return ch
}

type fakeStore struct {
	saves   int
	saveErr error
}

func (f *fakeStore) Save(sess *model.Session) error {
	f.saves++
	return f.saveErr
}

// =============================================================================
// BEGIN TESTS
// =============================================================================

func TestBeginTurnPersistsUserBeforeDispatch(t *testing.T) {
	store := &fakeStore{}
	o := New(&fakeBackend{}, store, "profile text")

	sess := model.NewSession()
	turn, err := o.BeginTurn(sess, "Hello", nil, ModelChoice{Name: "llama3.1:8b"})
	require.NoError(t, err)

	// User message saved, reply placeholder appended after the snapshot.
	assert.Equal(t, 1, store.saves)
	require.Equal(t, 2, sess.MessageCount())
	assert.Equal(t, model.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "Hello", sess.Messages[0].Content)
	assert.True(t, sess.Last().IsStreaming)
	assert.Equal(t, StateDispatching, o.State())

	// The snapshot carries profile + user message, not the placeholder.
	require.Len(t, turn.Messages, 2)
	assert.Equal(t, "system", turn.Messages[0].Role)
	assert.Contains(t, turn.Messages[0].Content, "profile text")
	assert.Equal(t, "Hello", turn.Messages[1].Content)
}

func TestBeginTurnProfileAndWindow(t *testing.T) {
	o := New(&fakeBackend{}, &fakeStore{}, "Rig: Ship of Theseus")

	sess := model.NewSession()
	for i := 0; i < 12; i++ {
		sess.AppendUser("filler")
		sess.AppendAssistant("ack")
	}

	turn, err := o.BeginTurn(sess, "latest", nil, ModelChoice{Name: "m"})
	require.NoError(t, err)

	msgs := turn.Messages
	require.NotEmpty(t, msgs)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Rig: Ship of Theseus")

	// Profile plus the 10-message window (which includes the new user message).
	assert.Len(t, msgs, 1+model.HistoryWindow)
	assert.Equal(t, "latest", msgs[len(msgs)-1].Content)
}

func TestBeginTurnDocumentContext(t *testing.T) {
	o := New(&fakeBackend{}, &fakeStore{}, "p")

	sess := model.NewSession()
	blob := &extract.Blob{Kind: extract.KindPDF, Text: "extracted body"}

	turn, err := o.BeginTurn(sess, "summarize", blob, ModelChoice{Name: "m"})
	require.NoError(t, err)

	require.Len(t, turn.Messages, 3)
	assert.Equal(t, "system", turn.Messages[1].Role)
	assert.Equal(t, "Document: extracted body", turn.Messages[1].Content)
}

func TestBeginTurnSaveFailureStopsDispatch(t *testing.T) {
	backend := &fakeBackend{}
	store := &fakeStore{saveErr: errors.New("disk full")}
	o := New(backend, store, "p")

	sess := model.NewSession()
	turn, err := o.BeginTurn(sess, "Hello", nil, ModelChoice{Name: "m"})
	require.Error(t, err)
	assert.Nil(t, turn)
	assert.Equal(t, StateFailed, o.State())

	// No placeholder, and the backend was never touched.
	assert.Equal(t, 1, sess.MessageCount())
	assert.Zero(t, backend.streamCalls)
	assert.Zero(t, backend.chatCalls)
}

// =============================================================================
// STREAMED TURN TESTS
// =============================================================================

func TestStreamedTurnEndToEnd(t *testing.T) {
	// Run executes on a worker goroutine while the caller's side owns
	// every session append, mirroring how the UI drives a turn.
	backend := &fakeBackend{streamTokens: []string{"Hi", " there"}}
	store := &fakeStore{}
	o := New(backend, store, "profile")

	sess := model.NewSession()
	turn, err := o.BeginTurn(sess, "Hello", nil, ModelChoice{Name: "llama3.1:8b"})
	require.NoError(t, err)

	type outcome struct {
		reply string
		err   error
	}
	tokens := make(chan string, 16)
	results := make(chan outcome, 1)
	go func() {
		reply, _, err := o.Run(context.Background(), turn, func(tok string) { tokens <- tok })
		close(tokens)
		results <- outcome{reply, err}
	}()

	// Tokens land in the session here, never inside Run.
	for tok := range tokens {
		sess.AppendToLast(tok)
	}
	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, "Hi there", sess.Last().DisplayContent())

	require.NoError(t, o.CompleteTurn(sess, res.reply))
	require.Equal(t, 2, sess.MessageCount())
	last := sess.Last()
	assert.False(t, last.IsStreaming)
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "Hi there", last.Content)

	// Saved once after the user message, once after the reply.
	assert.Equal(t, 2, store.saves)
	assert.Equal(t, StateCompleted, o.State())
}

func TestRunReportsStreamStats(t *testing.T) {
	backend := &fakeBackend{streamTokens: []string{"ok"}}
	o := New(backend, &fakeStore{}, "p")

	sess := model.NewSession()
	turn, err := o.BeginTurn(sess, "hi", nil, ModelChoice{Name: "m"})
	require.NoError(t, err)

	reply, stats, err := o.Run(context.Background(), turn, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	require.NotNil(t, stats)
}

func TestFailedTurnKeepsUserMessage(t *testing.T) {
	backend := &fakeBackend{streamErr: ollama.ErrNotRunning}
	store := &fakeStore{}
	o := New(backend, store, "p")

	sess := model.NewSession()
	turn, err := o.BeginTurn(sess, "Hello", nil, ModelChoice{Name: "m"})
	require.NoError(t, err)

	_, _, err = o.Run(context.Background(), turn, nil)
	require.Error(t, err)
	assert.True(t, ollama.IsNotRunning(err))

	o.FailTurn(sess)

	// The user message survives; the placeholder is gone.
	require.Equal(t, 1, sess.MessageCount())
	assert.Equal(t, model.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, 1, store.saves, "only the user turn was persisted")
	assert.Equal(t, StateFailed, o.State())
}

// =============================================================================
// IMAGE TURN TESTS
// =============================================================================

func TestImageTurn(t *testing.T) {
	backend := &fakeBackend{chatReply: "a cat on a keyboard"}
	store := &fakeStore{}
	o := New(backend, store, "profile should not appear")

	sess := model.NewSession()
	sess.AppendUser("earlier question")
	sess.AppendAssistant("earlier answer")

	blob := &extract.Blob{Kind: extract.KindImage, Image: []byte{1, 2, 3}}
	turn, err := o.BeginTurn(sess, "what is this?", blob, ModelChoice{Name: "llava:13b", Vision: true})
	require.NoError(t, err)
	require.True(t, turn.Image)

	// The request is the prompt and image alone: no system message, no
	// history.
	require.Len(t, turn.Messages, 1)
	msg := turn.Messages[0]
	assert.Equal(t, "user", msg.Role)
	assert.Equal(t, "what is this?", msg.Content)
	require.Len(t, msg.Images, 1)
	assert.Equal(t, blob.ImageBase64(), msg.Images[0])

	// Image turns use the non-streaming call and still report stats.
	reply, stats, err := o.Run(context.Background(), turn, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.chatCalls)
	assert.Zero(t, backend.streamCalls)
	assert.Equal(t, "llava:13b", backend.lastModel)
	assert.NotNil(t, stats)

	// Reply still lands in the session.
	require.NoError(t, o.CompleteTurn(sess, reply))
	assert.Equal(t, "a cat on a keyboard", sess.Last().Content)
}

func TestImageWithoutVisionModelStreams(t *testing.T) {
	// An image attached while a text model is selected falls through to
	// the normal text path.
	backend := &fakeBackend{streamTokens: []string{"text path"}}
	o := New(backend, &fakeStore{}, "p")

	sess := model.NewSession()
	blob := &extract.Blob{Kind: extract.KindImage, Image: []byte{1}}
	turn, err := o.BeginTurn(sess, "hi", blob, ModelChoice{Name: "m", Vision: false})
	require.NoError(t, err)
	assert.False(t, turn.Image)

	_, _, err = o.Run(context.Background(), turn, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.streamCalls)
	assert.Zero(t, backend.chatCalls)
}

func TestImageChatFailure(t *testing.T) {
	backend := &fakeBackend{chatErr: ollama.ErrModelNotFound}
	o := New(backend, &fakeStore{}, "p")

	sess := model.NewSession()
	blob := &extract.Blob{Kind: extract.KindImage, Image: []byte{1}}
	turn, err := o.BeginTurn(sess, "hi", blob, ModelChoice{Name: "gone", Vision: true})
	require.NoError(t, err)

	_, _, err = o.Run(context.Background(), turn, nil)
	require.Error(t, err)
	assert.True(t, ollama.IsModelNotFound(err))

	o.FailTurn(sess)
	assert.Equal(t, 1, sess.MessageCount())
}

// =============================================================================
// STATE TESTS
// =============================================================================

func TestTurnStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "failed", StateFailed.String())
}
