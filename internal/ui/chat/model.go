// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/theseus-tui/internal/config"
	"github.com/jeranaias/theseus-tui/internal/extract"
	"github.com/jeranaias/theseus-tui/internal/model"
	"github.com/jeranaias/theseus-tui/internal/ollama"
	"github.com/jeranaias/theseus-tui/internal/orchestrator"
	"github.com/jeranaias/theseus-tui/internal/storage"
	"github.com/jeranaias/theseus-tui/internal/ui/styles"
	"github.com/jeranaias/theseus-tui/internal/vram"
)

// vramPollInterval is how often the GPU gauge refreshes.
const vramPollInterval = 5 * time.Second

// sidebarWidth is the fixed width of the session list column.
const sidebarWidth = 28

// =============================================================================
// MODEL
// =============================================================================

// Model is the root Bubble Tea model for the chat view.
type Model struct {
	theme *styles.Theme
	cfg   *config.Config

	client    *ollama.Client
	orch      *orchestrator.Orchestrator
	store     *storage.SessionStore
	extractor *extract.Extractor
	watcher   *SessionWatcher

	// Current session and the sidebar listing
	session     *model.Session
	metas       []storage.SessionMeta
	showSidebar bool

	// Model selection
	modelName       string
	installedModels []string
	visionModels    map[string]bool

	// Components
	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	// Attachment state
	attachment   *extract.Blob
	attaching    bool
	attachStatus string

	// In-flight turn. The session is mutated only on the UI goroutine;
	// the turn goroutine sees an immutable request snapshot.
	streaming  bool
	turnEvents chan tea.Msg

	// Status bar
	usage    vram.Usage
	flash    string
	errText  string
	showHelp bool

	width  int
	height int
	ready  bool
}

// New assembles the chat model around an already-booted session.
func New(cfg *config.Config, client *ollama.Client, orch *orchestrator.Orchestrator, store *storage.SessionStore, extractor *extract.Extractor, sess *model.Session, watcher *SessionWatcher) *Model {
	theme := styles.NewTheme(cfg.UI.Theme)

	ti := textinput.New()
	ti.Placeholder = "Type a message, or /help"
	ti.Prompt = theme.InputPrompt.Render("> ")
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return &Model{
		theme:        theme,
		cfg:          cfg,
		client:       client,
		orch:         orch,
		store:        store,
		extractor:    extractor,
		watcher:      watcher,
		session:      sess,
		modelName:    cfg.Chat.DefaultModel,
		visionModels: map[string]bool{},
		input:        ti,
		spin:         sp,
		showSidebar:  true,
	}
}

// Session exposes the active session (for shutdown saves).
func (m *Model) Session() *model.Session {
	return m.session
}

// =============================================================================
// INIT
// =============================================================================

// Init starts background loads: session list, installed models, GPU
// telemetry, and the directory watcher.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.loadSessionsCmd(),
		m.loadModelsCmd(),
		m.checkOllamaCmd(),
	}
	if m.cfg.UI.ShowVRAM {
		cmds = append(cmds, m.queryVRAMCmd(), m.vramTickCmd())
	}
	if m.watcher != nil {
		cmds = append(cmds, m.watchSessionsCmd())
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) loadSessionsCmd() tea.Cmd {
	return func() tea.Msg {
		metas, err := m.store.List()
		return SessionsLoadedMsg{Metas: metas, Err: err}
	}
}

func (m *Model) loadModelsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		models, err := m.client.ListModels(ctx)
		return ModelsLoadedMsg{Models: models, Err: err}
	}
}

func (m *Model) checkOllamaCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := m.client.CheckRunning(ctx)
		return OllamaStatusMsg{Running: err == nil, Err: err}
	}
}

func (m *Model) queryVRAMCmd() tea.Cmd {
	return func() tea.Msg {
		return VRAMMsg{Usage: vram.Query(context.Background())}
	}
}

func (m *Model) vramTickCmd() tea.Cmd {
	return tea.Tick(vramPollInterval, func(t time.Time) tea.Msg {
		return vramTickMsg{Time: t}
	})
}

func (m *Model) watchSessionsCmd() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.watcher.Changes(); !ok {
			return nil
		}
		return SessionsChangedMsg{}
	}
}

func (m *Model) openSessionCmd(id string) tea.Cmd {
	return func() tea.Msg {
		sess, err := m.store.Load(id)
		return SessionOpenedMsg{Session: sess, Err: err}
	}
}

func (m *Model) newSessionCmd() tea.Cmd {
	return func() tea.Msg {
		sess, err := m.store.Create()
		return SessionCreatedMsg{Session: sess, Err: err}
	}
}

func (m *Model) attachCmd(path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		blob, err := m.extractor.ExtractFile(ctx, path)
		return AttachmentMsg{Blob: blob, Err: err}
	}
}

func flashCmd(text string) tea.Cmd {
	return func() tea.Msg { return FlashMsg{Text: text} }
}

func clearFlashAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearFlashMsg{} })
}

// startTurnCmd dispatches the prepared turn in a goroutine and wires
// its progress into the Bubble Tea loop through a channel. The
// goroutine reads only the turn snapshot, never the session.
func (m *Model) startTurnCmd(turn *orchestrator.Turn) tea.Cmd {
	events := make(chan tea.Msg, 64)
	m.turnEvents = events

	orch := m.orch
	go func() {
		reply, stats, err := orch.Run(context.Background(), turn, func(token string) {
			events <- StreamTokenMsg{Token: token}
		})
		events <- TurnDoneMsg{Reply: reply, Stats: stats, Err: err}
		close(events)
	}()

	return tea.Batch(m.listenTurnCmd(), m.spin.Tick)
}

// listenTurnCmd pulls the next event from the in-flight turn.
func (m *Model) listenTurnCmd() tea.Cmd {
	events := m.turnEvents
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// isVisionTurn decides whether this turn goes to the vision model.
func (m *Model) isVisionTurn(blob *extract.Blob) bool {
	if blob == nil || blob.Kind != extract.KindImage {
		return false
	}
	name := m.cfg.Chat.VisionModel
	if m.visionModels[name] {
		return true
	}
	// Model list unavailable: trust the configured name.
	return len(m.visionModels) == 0
}

// =============================================================================
// UPDATE
// =============================================================================

// Update is the Bubble Tea message dispatcher.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case StreamTokenMsg:
		return m.handleStreamToken(msg)
	case TurnDoneMsg:
		return m.handleTurnDone(msg)
	case SessionsLoadedMsg:
		return m.handleSessionsLoaded(msg)
	case SessionOpenedMsg:
		return m.handleSessionOpened(msg)
	case SessionCreatedMsg:
		return m.handleSessionCreated(msg)
	case SessionsChangedMsg:
		return m, tea.Batch(m.loadSessionsCmd(), m.watchSessionsCmd())
	case ModelsLoadedMsg:
		return m.handleModelsLoaded(msg)
	case OllamaStatusMsg:
		return m.handleOllamaStatus(msg)
	case AttachmentMsg:
		return m.handleAttachment(msg)
	case AttachmentStatusMsg:
		m.attachStatus = msg.Status
		return m, nil
	case VRAMMsg:
		m.usage = msg.Usage
		return m, nil
	case vramTickMsg:
		return m, tea.Batch(m.queryVRAMCmd(), m.vramTickCmd())
	case FlashMsg:
		m.flash = msg.Text
		return m, clearFlashAfter(3 * time.Second)
	case clearFlashMsg:
		m.flash = ""
		return m, nil
	case spinner.TickMsg:
		if !m.streaming && !m.attaching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m.updateComponents(msg)
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	contentWidth := m.chatWidth()
	viewportHeight := m.height - chromeHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(contentWidth, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = viewportHeight
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.glamourStyle()),
		glamour.WithWordWrap(contentWidth-2),
	)
	if err == nil {
		m.renderer = renderer
	}

	m.refreshViewport()
	return m, nil
}

func (m *Model) glamourStyle() string {
	if m.theme.IsDark {
		return "dark"
	}
	return "light"
}

// chatWidth is the transcript column width for the current layout.
func (m *Model) chatWidth() int {
	w := m.width
	if m.showSidebar {
		w -= sidebarWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if m.errText != "" {
			m.errText = ""
			return m, nil
		}
		return m, nil

	case "ctrl+n":
		if m.streaming {
			return m, nil
		}
		return m, m.newSessionCmd()

	case "ctrl+s":
		m.showSidebar = !m.showSidebar
		return m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})

	case "enter":
		return m.handleSubmit()
	}

	return m.updateComponents(msg)
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if cmd, ok := ParseCommand(text); ok {
		m.input.Reset()
		return m.runCommand(cmd)
	}

	if m.streaming {
		return m, nil // one turn at a time
	}

	m.input.Reset()
	m.errText = ""

	choice := orchestrator.ModelChoice{
		Name:   m.modelName,
		Vision: m.isVisionTurn(m.attachment),
	}
	if choice.Vision {
		choice.Name = m.cfg.Chat.VisionModel
	}

	turn, err := m.orch.BeginTurn(m.session, text, m.attachment, choice)
	if err != nil {
		m.errText = friendlyError(err)
		m.refreshViewport()
		return m, nil
	}

	m.streaming = true
	m.refreshViewport()
	return m, m.startTurnCmd(turn)
}

func (m *Model) runCommand(cmd ParsedCommand) (tea.Model, tea.Cmd) {
	switch cmd.Kind {
	case CmdQuit:
		return m, tea.Quit

	case CmdNew:
		if m.streaming {
			return m, nil
		}
		return m, m.newSessionCmd()

	case CmdSessions:
		m.showSidebar = !m.showSidebar
		return m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})

	case CmdOpen:
		if m.streaming {
			return m, nil
		}
		id := m.resolveSessionArg(cmd.Arg)
		if id == "" {
			return m, flashCmd("usage: /open <id or list number>")
		}
		return m, m.openSessionCmd(id)

	case CmdModel:
		if cmd.Arg == "" {
			note := "current model: " + m.modelName
			if len(m.installedModels) > 0 {
				note += "  installed: " + strings.Join(m.installedModels, ", ")
			}
			return m, flashCmd(note)
		}
		m.modelName = cmd.Arg
		return m, flashCmd("model set to " + cmd.Arg)

	case CmdAttach:
		if cmd.Arg == "" {
			return m, flashCmd("usage: /attach <path to pdf or image>")
		}
		m.attaching = true
		m.attachStatus = "Reading " + filepath.Base(cmd.Arg) + "..."
		return m, tea.Batch(m.attachCmd(cmd.Arg), m.spin.Tick)

	case CmdDetach:
		m.attachment = nil
		m.attachStatus = ""
		return m, flashCmd("attachment removed")

	case CmdExport:
		return m, m.exportCmd()

	case CmdHelp:
		m.showHelp = true
		return m, nil

	default:
		return m, flashCmd("unknown command: /" + cmd.Arg)
	}
}

// resolveSessionArg accepts either a full session ID or a 1-based
// index into the sidebar list.
func (m *Model) resolveSessionArg(arg string) string {
	if arg == "" {
		return ""
	}
	if strings.HasPrefix(arg, "chat_") {
		return arg
	}
	idx := 0
	for _, r := range arg {
		if r < '0' || r > '9' {
			return ""
		}
		idx = idx*10 + int(r-'0')
	}
	if idx < 1 || idx > len(m.metas) {
		return ""
	}
	return m.metas[idx-1].ID
}

func (m *Model) exportCmd() tea.Cmd {
	sess := m.session
	dir := m.store.BaseDir
	return func() tea.Msg {
		md := storage.ExportMarkdown(sess)
		path := filepath.Join(dir, sess.ID+".md")
		if err := writeExport(path, md); err != nil {
			return FlashMsg{Text: "export failed: " + err.Error()}
		}
		return FlashMsg{Text: "exported to " + path}
	}
}

func (m *Model) handleStreamToken(msg StreamTokenMsg) (tea.Model, tea.Cmd) {
	m.session.AppendToLast(msg.Token)
	m.refreshViewport()
	return m, m.listenTurnCmd()
}

func (m *Model) handleTurnDone(msg TurnDoneMsg) (tea.Model, tea.Cmd) {
	m.streaming = false
	m.turnEvents = nil

	// An attachment applies to the turn it was attached for.
	m.attachment = nil
	m.attachStatus = ""

	if msg.Err != nil {
		m.orch.FailTurn(m.session)
		m.errText = friendlyError(msg.Err)
	} else if err := m.orch.CompleteTurn(m.session, msg.Reply); err != nil {
		m.errText = friendlyError(err)
	}

	m.refreshViewport()
	// Labels may have changed (first message names the session).
	cmds := []tea.Cmd{m.loadSessionsCmd()}
	if msg.Err == nil && msg.Stats != nil {
		cmds = append(cmds, flashCmd(msg.Stats.Format()))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleSessionsLoaded(msg SessionsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.errText = friendlyError(msg.Err)
		return m, nil
	}
	m.metas = msg.Metas
	return m, nil
}

func (m *Model) handleSessionOpened(msg SessionOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.errText = friendlyError(msg.Err)
		return m, nil
	}
	m.session = msg.Session
	m.attachment = nil
	m.errText = ""
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, flashCmd("opened " + msg.Session.ID)
}

func (m *Model) handleSessionCreated(msg SessionCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.errText = friendlyError(msg.Err)
		return m, nil
	}
	m.session = msg.Session
	m.attachment = nil
	m.errText = ""
	m.refreshViewport()
	return m, tea.Batch(m.loadSessionsCmd(), flashCmd("new session "+msg.Session.ID))
}

func (m *Model) handleModelsLoaded(msg ModelsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, nil // non-fatal; status bar already shows backend state
	}
	names := make([]string, 0, len(msg.Models))
	vision := make(map[string]bool, len(msg.Models))
	for _, info := range msg.Models {
		names = append(names, info.Name)
		if info.IsVision() {
			vision[info.Name] = true
		}
	}
	m.installedModels = names
	m.visionModels = vision
	return m, nil
}

func (m *Model) handleOllamaStatus(msg OllamaStatusMsg) (tea.Model, tea.Cmd) {
	if !msg.Running {
		m.errText = friendlyError(msg.Err)
	}
	return m, nil
}

func (m *Model) handleAttachment(msg AttachmentMsg) (tea.Model, tea.Cmd) {
	m.attaching = false
	m.attachStatus = ""

	if msg.Err != nil {
		m.errText = friendlyError(msg.Err)
		return m, nil
	}

	m.attachment = msg.Blob
	switch msg.Blob.Kind {
	case extract.KindPDF:
		note := "attached " + msg.Blob.Name
		if msg.Blob.OCRUsed {
			note += " (OCR)"
		}
		return m, flashCmd(note)
	default:
		return m, flashCmd("attached image " + msg.Blob.Name)
	}
}

// =============================================================================
// ERROR PRESENTATION
// =============================================================================

// friendlyError maps backend errors to actionable one-liners.
func friendlyError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case ollama.IsNotRunning(err):
		return "Ollama is not running. Start it with: ollama serve"
	case ollama.IsModelNotFound(err):
		return "Model not installed. Pull it with: ollama pull <name>"
	case ollama.IsTimeout(err):
		return "The model took too long to respond. Try again or use a smaller model."
	default:
		return err.Error()
	}
}
