// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "strings"

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command identifies a slash command typed in the input line.
type Command int

const (
	CmdUnknown Command = iota
	CmdNew             // /new - start a fresh session
	CmdOpen            // /open <id> - open a session by ID or list index
	CmdSessions        // /sessions - toggle the sidebar
	CmdModel           // /model <name> - switch models
	CmdAttach          // /attach <path> - attach a PDF or image
	CmdDetach          // /detach - drop the current attachment
	CmdExport          // /export - write the session as Markdown
	CmdHelp            // /help - show key bindings and commands
	CmdQuit            // /quit - exit
)

// ParsedCommand is a recognized slash command plus its argument.
type ParsedCommand struct {
	Kind Command
	Arg  string
}

// commandNames maps the typed word to its command.
var commandNames = map[string]Command{
	"new":      CmdNew,
	"open":     CmdOpen,
	"sessions": CmdSessions,
	"model":    CmdModel,
	"attach":   CmdAttach,
	"detach":   CmdDetach,
	"export":   CmdExport,
	"help":     CmdHelp,
	"quit":     CmdQuit,
	"q":        CmdQuit,
	"exit":     CmdQuit,
}

// ParseCommand recognizes slash commands. The second return is false
// for ordinary chat input (anything not starting with "/").
func ParseCommand(input string) (ParsedCommand, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return ParsedCommand{}, false
	}

	word, arg, _ := strings.Cut(strings.TrimPrefix(trimmed, "/"), " ")
	kind, ok := commandNames[strings.ToLower(word)]
	if !ok {
		return ParsedCommand{Kind: CmdUnknown, Arg: word}, true
	}

	return ParsedCommand{Kind: kind, Arg: strings.TrimSpace(arg)}, true
}

// HelpText lists the available commands for the /help overlay.
func HelpText() string {
	return strings.Join([]string{
		"/new              start a fresh session",
		"/open <id>        open a session from the sidebar",
		"/sessions         toggle the session sidebar",
		"/model <name>     switch the active model",
		"/attach <path>    attach a PDF or image to the next message",
		"/detach           drop the current attachment",
		"/export           save this session as Markdown",
		"/quit             exit",
		"",
		"ctrl+n new session    ctrl+s sidebar    ctrl+c quit",
	}, "\n")
}
