// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator runs a chat turn as an explicit state machine
// split into phases: BeginTurn persists the user message and snapshots
// the request, Run performs the backend call, CompleteTurn (or
// FailTurn) folds the result back in and persists it.
//
// The split exists for ownership: BeginTurn, CompleteTurn, and FailTurn
// mutate the session and must run on the caller's event loop, while Run
// reads only the immutable Turn snapshot and is safe to dispatch on a
// worker goroutine. The session is never shared with the worker.
package orchestrator

import (
	"context"

	"github.com/jeranaias/theseus-tui/internal/extract"
	"github.com/jeranaias/theseus-tui/internal/model"
	"github.com/jeranaias/theseus-tui/internal/ollama"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Backend is the slice of the Ollama client a turn needs.
type Backend interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (*ollama.ChatResponse, error)
	ChatStreamChan(ctx context.Context, model string, messages []ollama.Message) <-chan ollama.StreamChunk
}

// Store is the slice of session storage a turn needs.
type Store interface {
	Save(sess *model.Session) error
}

// ModelChoice names the model a turn runs on and whether it accepts
// images.
type ModelChoice struct {
	Name   string
	Vision bool
}

// TokenFunc receives assistant tokens as they stream in.
type TokenFunc func(token string)

// =============================================================================
// TURN STATE
// =============================================================================

// TurnState tracks where a turn is in its lifecycle.
type TurnState int

const (
	StateIdle TurnState = iota
	StateUserAppended
	StateDispatching
	StateCompleted
	StateFailed
)

// String returns a short name for logging.
func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUserAppended:
		return "user-appended"
	case StateDispatching:
		return "dispatching"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// TURN SNAPSHOT
// =============================================================================

// Turn is the immutable request snapshot for one dispatch. It carries
// everything Run needs, so the worker goroutine never reads the
// session.
type Turn struct {
	Model    string
	Messages []ollama.Message

	// Image marks a vision turn, sent as a single non-streaming call.
	Image bool
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator executes chat turns against a backend and a store.
type Orchestrator struct {
	backend Backend
	store   Store

	// Profile is the fixed system context sent with every text turn.
	Profile string

	state TurnState
}

// New creates an orchestrator.
func New(backend Backend, store Store, profile string) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		store:   store,
		Profile: profile,
		state:   StateIdle,
	}
}

// State returns the state of the most recent turn.
func (o *Orchestrator) State() TurnState {
	return o.state
}

// BeginTurn appends and persists the user message, then snapshots the
// request for Run. On a save failure the backend is never called and
// the error is returned for the UI to surface.
//
// On success the session also gains a streaming placeholder message
// that accumulates the reply for display; it is appended after the
// snapshot so it never echoes into its own request.
func (o *Orchestrator) BeginTurn(sess *model.Session, userText string, blob *extract.Blob, choice ModelChoice) (*Turn, error) {
	sess.AppendUser(userText)
	o.state = StateUserAppended

	if err := o.store.Save(sess); err != nil {
		o.state = StateFailed
		return nil, err
	}

	turn := &Turn{Model: choice.Name}
	if blob != nil && blob.Kind == extract.KindImage && choice.Vision {
		// The prompt and image alone, with no profile and no history.
		// Vision models answer about the image in front of them; prior
		// conversation only dilutes the prompt.
		turn.Image = true
		turn.Messages = []ollama.Message{
			ollama.NewImageMessage(userText, blob.ImageBase64()),
		}
	} else {
		docContext := ""
		if blob != nil && blob.Kind == extract.KindPDF {
			docContext = blob.Text
		}
		turn.Messages = sess.BuildRequest(o.Profile, docContext)
	}

	sess.Append(model.NewStreamingMessage())
	o.state = StateDispatching
	return turn, nil
}

// Run dispatches the prepared turn and returns the full reply with
// generation statistics. Safe to call from a goroutine: it reads only
// the turn snapshot and the backend, never the session.
func (o *Orchestrator) Run(ctx context.Context, turn *Turn, onToken TokenFunc) (string, *ollama.StreamStats, error) {
	if turn.Image {
		resp, err := o.backend.Chat(ctx, turn.Model, turn.Messages)
		if err != nil {
			return "", nil, err
		}
		return resp.Message.Content, &ollama.StreamStats{
			TotalDuration:    resp.TotalTime(),
			CompletionTokens: resp.EvalCount,
			TokensPerSecond:  resp.TokensPerSecond(),
		}, nil
	}

	acc := ollama.NewStreamAccumulator()
	for chunk := range o.backend.ChatStreamChan(ctx, turn.Model, turn.Messages) {
		acc.Add(chunk)
		if chunk.Content != "" && onToken != nil {
			onToken(chunk.Content)
		}
	}
	if acc.GetError() != nil {
		return "", nil, acc.GetError()
	}

	return acc.GetContent(), acc.Stats, nil
}

// CompleteTurn folds the reply into the session and persists it. The
// accumulated reply is authoritative; streamed tokens only drove the
// live display.
func (o *Orchestrator) CompleteTurn(sess *model.Session, reply string) error {
	if last := sess.Last(); last != nil && last.IsStreaming {
		last.FinalizeStream()
		last.Content = reply
	} else {
		sess.AppendAssistant(reply)
	}

	if err := o.store.Save(sess); err != nil {
		o.state = StateFailed
		return err
	}

	o.state = StateCompleted
	return nil
}

// FailTurn discards the reply placeholder after a backend failure. The
// user message stays persisted; no assistant message is recorded, and
// nothing is retried.
func (o *Orchestrator) FailTurn(sess *model.Session) {
	sess.DropStreaming()
	o.state = StateFailed
}
