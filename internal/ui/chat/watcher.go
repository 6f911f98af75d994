// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events (an atomic save
// produces create+rename) into a single notification.
const debounceWindow = 250 * time.Millisecond

// SessionWatcher watches the sessions directory and reports changes so
// the sidebar stays in sync with edits made outside this process.
type SessionWatcher struct {
	fsw     *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

// NewSessionWatcher starts watching dir.
func NewSessionWatcher(dir string) (*SessionWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &SessionWatcher{
		fsw:     fsw,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Changes delivers one signal per debounced burst of directory events.
func (w *SessionWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher.
func (w *SessionWatcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *SessionWatcher) run() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
			default: // a signal is already pending
			}

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the list just refreshes less.
		}
	}
}
