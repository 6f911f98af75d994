// theseus - a terminal chat interface for a local Ollama rig.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/theseus-tui/internal/config"
	"github.com/jeranaias/theseus-tui/internal/extract"
	"github.com/jeranaias/theseus-tui/internal/model"
	"github.com/jeranaias/theseus-tui/internal/ollama"
	"github.com/jeranaias/theseus-tui/internal/orchestrator"
	"github.com/jeranaias/theseus-tui/internal/storage"
	"github.com/jeranaias/theseus-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--version", "-v":
			fmt.Printf("theseus %s (%s, %s)\n", Version, GitCommit, BuildDate)
			return
		case "--help", "-h":
			fmt.Println("theseus - terminal chat for a local Ollama rig")
			fmt.Println()
			fmt.Println("Usage: theseus [--version]")
			fmt.Println()
			fmt.Println("Configuration: ~/.theseus/config.toml")
			fmt.Println("Sessions:      ~/.theseus/sessions/")
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("theseus needs an interactive terminal")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// First run: write a starter config so the defaults are visible and
	// editable. Best effort; the in-memory defaults already work.
	if path, perr := config.ConfigPath(); perr == nil {
		if _, serr := os.Stat(path); os.IsNotExist(serr) {
			_ = config.Save(cfg)
		}
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Local.OllamaURL,
		Timeout:      2 * time.Minute,
		DefaultModel: cfg.Chat.DefaultModel,
		VisionModel:  cfg.Chat.VisionModel,
	})

	store, err := storage.NewSessionStoreWithDir(cfg.Sessions.Dir)
	if err != nil {
		return err
	}

	sess, err := bootSession(store)
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor()
	extractor.MaxUploadBytes = cfg.Upload.MaxBytes

	orch := orchestrator.New(client, store, cfg.Chat.Profile)

	// Sidebar refresh on external edits; losing the watcher is not
	// worth failing startup over.
	watcher, err := chat.NewSessionWatcher(store.BaseDir)
	if err != nil {
		watcher = nil
	} else {
		defer watcher.Close()
	}

	m := chat.New(cfg, client, orch, store, extractor, sess, watcher)

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Extraction progress (OCR page counts) flows back into the UI.
	extractor.Status = func(status string) {
		p.Send(chat.AttachmentStatusMsg{Status: status})
	}

	_, err = p.Run()
	return err
}

// bootSession resumes the most recent session, creating the first one
// on a fresh install.
func bootSession(store *storage.SessionStore) (*model.Session, error) {
	sess, err := store.LoadLatest()
	if errors.Is(err, storage.ErrNoSessions) {
		return store.Create()
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}
