package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwulff/hush/internal/daemon"
	"github.com/jwulff/hush/internal/store"
	"github.com/jwulff/hush/internal/timer"
	"github.com/jwulff/hush/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// countdownPresets are the duration bounds cycled by the countdown key.
// Zero means open-ended.
var countdownPresets = []time.Duration{
	0,
	1 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	25 * time.Minute,
}

// Model is the root bubbletea model for the hush TUI.
type Model struct {
	socketPath string
	dbPath     string
	actorID    string

	// Connection state
	client    *daemon.Client // command connection
	evClient  *daemon.Client // event subscription connection
	connected bool
	connError string

	// Session state, mirrored from the daemon
	session      timer.Session
	voice        timer.VoiceConfig
	countdownIdx int

	// History, read directly from the shared store
	history []timer.Session
	store   *store.Store

	// Display clock for the running timer
	now time.Time

	// Transient voice warnings and command errors
	warning string

	// UI state
	width  int
	height int

	// Reconnect
	reconnecting     bool
	reconnectAttempt int
}

// New creates a new Model with default state.
func New(socketPath, dbPath string) Model {
	return Model{
		socketPath: socketPath,
		dbPath:     dbPath,
		actorID:    "tui-" + uuid.New().String()[:8],
		session:    timer.Session{Status: timer.StatusIdle},
	}
}

// Init returns the initial command — connect to the daemon.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.socketPath)
}

// connectCmd attempts to connect to the daemon with two connections:
// one for commands, one for event subscription.
func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := daemon.Connect(socketPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		evClient, err := daemon.Connect(socketPath)
		if err != nil {
			client.Close()
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd registers on the event client and starts reading events.
func subscribeCmd(evClient *daemon.Client, actorID string) tea.Cmd {
	return func() tea.Msg {
		if err := evClient.Subscribe(actorID, "hush-tui"); err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DaemonEventMsg{Event: ev}
	}
}

// sendCmd sends one command and wraps the response.
func sendCmd(client *daemon.Client, cmd daemon.Command) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(cmd)
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return CommandResponseMsg{Response: resp}
	}
}

// openStoreCmd opens the shared store read-only for the history panel.
func openStoreCmd(dbPath string) tea.Cmd {
	return func() tea.Msg {
		st, err := store.OpenReadOnly(dbPath, 0)
		if err != nil {
			return nil // the daemon may not have created it yet
		}
		return storeOpenedMsg{store: st}
	}
}

type storeOpenedMsg struct{ store *store.Store }

// loadHistoryCmd reads finalized sessions from the shared store.
func loadHistoryCmd(st *store.Store) tea.Cmd {
	return func() tea.Msg {
		sessions, err := st.History(0)
		if err != nil {
			return HistoryLoadedMsg{} // silently ignore store errors
		}
		return HistoryLoadedMsg{Sessions: sessions}
	}
}

// elapsedTickCmd redraws the running timer roughly ten times a second.
func elapsedTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return ElapsedTickMsg{Now: t}
	})
}

// refreshTickCmd schedules the periodic status and history refresh.
func refreshTickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return RefreshTickMsg{}
	})
}

// clearWarningCmd fires after a delay to clear transient warnings.
func clearWarningCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearWarningMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DaemonConnectedMsg:
		m.client = msg.Client
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		return m, tea.Batch(
			subscribeCmd(m.evClient, m.actorID),
			sendCmd(m.client, daemon.Command{Cmd: daemon.CmdStatus}),
			openStoreCmd(m.dbPath),
			refreshTickCmd(),
		)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		return m, reconnectCmd(m.reconnectAttempt)

	case CommandResponseMsg:
		r := msg.Response
		if !r.OK {
			m.warning = r.Error
			return m, clearWarningCmd()
		}
		var cmd tea.Cmd
		if r.Session != nil {
			wasRunning := m.session.Running()
			m.session = *r.Session
			if m.session.Running() && !wasRunning {
				m.now = time.Now()
				cmd = elapsedTickCmd()
			}
		}
		if r.Voice != nil {
			m.voice = *r.Voice
		}
		return m, cmd

	case DaemonEventMsg:
		cmd := m.handleEvent(msg.Event)
		// Continue reading events on the event client
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case DaemonEventErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		if m.client != nil {
			m.client.Close()
			m.client = nil
		}
		if m.evClient != nil {
			m.evClient.Close()
			m.evClient = nil
		}
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.socketPath)

	case storeOpenedMsg:
		m.store = msg.store
		return m, loadHistoryCmd(m.store)

	case HistoryLoadedMsg:
		m.history = msg.Sessions
		return m, nil

	case ElapsedTickMsg:
		m.now = msg.Now
		if m.session.Running() {
			return m, elapsedTickCmd()
		}
		return m, nil

	case RefreshTickMsg:
		var cmds []tea.Cmd
		if m.connected && m.client != nil {
			cmds = append(cmds, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdStatus}))
		}
		if m.store != nil {
			cmds = append(cmds, loadHistoryCmd(m.store))
		}
		cmds = append(cmds, refreshTickCmd())
		return m, tea.Batch(cmds...)

	case ClearWarningMsg:
		m.warning = ""
		return m, nil
	}

	return m, nil
}

// handleEvent processes a daemon event and returns any resulting command.
func (m *Model) handleEvent(ev daemon.Event) tea.Cmd {
	switch ev.Event {
	case daemon.EventStarted:
		if ev.Session != nil {
			m.session = *ev.Session
		}
		m.now = time.Now()
		return elapsedTickCmd()

	case daemon.EventStopped:
		if ev.Session != nil {
			m.session = *ev.Session
		}
		if m.store != nil {
			return loadHistoryCmd(m.store)
		}

	case daemon.EventReset, daemon.EventStatus:
		if ev.Session != nil {
			m.session = *ev.Session
		}

	case daemon.EventVoiceUnsupported:
		m.warning = "voice recognition unavailable in this environment"
		return clearWarningCmd()

	case daemon.EventVoicePermissionDenied:
		m.warning = "microphone permission denied; manual timing only"
		return clearWarningCmd()

	case daemon.EventVoiceStreamError:
		m.warning = "recognition stream error: " + ev.Message
		return clearWarningCmd()
	}

	return nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		if m.client != nil {
			m.client.Close()
		}
		if m.evClient != nil {
			m.evClient.Close()
		}
		return m, tea.Quit

	case KeySpace:
		if !m.connected {
			return m, nil
		}
		if m.session.Running() {
			return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdStop})
		}
		return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdStart})

	case KeyReset:
		if !m.connected {
			return m, nil
		}
		return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdReset})

	case KeyToggleVoice:
		if !m.connected {
			return m, nil
		}
		return m, sendCmd(m.client, daemon.Command{
			Cmd:     daemon.CmdSetVoice,
			Enabled: daemon.BoolPtr(!m.voice.Enabled),
		})

	case KeyCycleMode:
		if !m.connected {
			return m, nil
		}
		mode := string(timer.VoiceModeAny)
		if m.voice.Mode == timer.VoiceModeAny {
			mode = string(timer.VoiceModeKeyword)
		}
		return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdSetVoice, Mode: mode})

	case KeyCycleCountdown:
		if !m.connected {
			return m, nil
		}
		m.countdownIdx = (m.countdownIdx + 1) % len(countdownPresets)
		ms := countdownPresets[m.countdownIdx].Milliseconds()
		return m, sendCmd(m.client, daemon.Command{
			Cmd:         daemon.CmdSetCountdown,
			CountdownMs: daemon.Int64Ptr(ms),
		})

	case KeySimulate:
		if !m.connected {
			return m, nil
		}
		text := "stop the timer"
		if m.voice.Mode == timer.VoiceModeKeyword && m.voice.Keyword != "" {
			text = m.voice.Keyword
		}
		return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdSimulate, Text: text})
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, ui.TitleStyle.Render("HUSH"))
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, m.renderTimer())
	sections = append(sections, m.renderVoiceLine())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderHistory())

	if m.warning != "" {
		sections = append(sections, ui.WarningStyle.Render("⚠ "+m.warning))
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderStatusBar() string {
	if !m.connected {
		if m.reconnecting {
			return ui.ErrorStyle.Render("○ DISCONNECTED") + ui.DimStyle.Render(" reconnecting…")
		}
		return ui.DimStyle.Render("○ connecting to hushd…")
	}

	switch m.session.Status {
	case timer.StatusRunning:
		return ui.RunningDotStyle.Render("● RUNNING")
	case timer.StatusStopped:
		return ui.StoppedDotStyle.Render("■ STOPPED") +
			ui.DimStyle.Render(" ("+string(m.session.StopReason)+")")
	case timer.StatusFinished:
		return ui.StoppedDotStyle.Render("■ FINISHED")
	default:
		return ui.IdleDotStyle.Render("○ IDLE")
	}
}

func (m Model) renderTimer() string {
	switch m.session.Status {
	case timer.StatusRunning:
		line := ui.ElapsedStyle.Render(formatDuration(m.session.Elapsed(m.now)))
		if m.session.ScheduledFinishAt != nil {
			line += ui.RemainingStyle.Render("  −" + formatDuration(m.session.Remaining(m.now)))
		}
		return line
	case timer.StatusStopped, timer.StatusFinished:
		return ui.ElapsedStyle.Render(formatDuration(time.Duration(m.session.DurationMs) * time.Millisecond))
	default:
		return ui.DimStyle.Render("Press Space to start")
	}
}

func (m Model) renderVoiceLine() string {
	var parts []string

	if m.voice.Enabled {
		parts = append(parts, ui.VoiceOnStyle.Render("voice on"))
		if m.voice.Mode == timer.VoiceModeKeyword {
			kw := m.voice.Keyword
			if kw == "" {
				kw = ui.DimStyle.Render("(no keyword — never matches)")
			}
			parts = append(parts, ui.DimStyle.Render("keyword:")+" "+kw)
		} else {
			parts = append(parts, ui.DimStyle.Render("mode: any speech"))
		}
	} else {
		parts = append(parts, ui.VoiceOffStyle.Render("voice off"))
	}

	if d := countdownPresets[m.countdownIdx]; d > 0 {
		parts = append(parts, ui.DimStyle.Render("countdown: ")+formatDuration(d))
	}

	return strings.Join(parts, "  ")
}

func (m Model) renderHistory() string {
	var lines []string
	lines = append(lines, ui.PanelTitleStyle.Render(fmt.Sprintf("HISTORY (%d)", len(m.history))))

	if len(m.history) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No finished sessions yet"))
	} else {
		visible := m.historyVisibleLines()
		for i, s := range m.history {
			if i >= visible {
				break
			}
			ts := ""
			if s.EndedAt != nil {
				ts = ui.TimestampStyle.Render(s.EndedAt.Local().Format("[15:04:05]"))
			}
			dur := formatDuration(time.Duration(s.DurationMs) * time.Millisecond)
			lines = append(lines, fmt.Sprintf("  %s %s %s",
				ts, dur, ui.DimStyle.Render(string(s.StopReason))))
		}
	}

	return strings.Join(lines, "\n")
}

func (m Model) historyVisibleLines() int {
	if m.height == 0 {
		return 10
	}
	// Reserve: title(1) + status(1) + timer(1) + voice(1) + divider(1) +
	// history title(1) + warning(1) + footer(1)
	return max(3, m.height-8)
}

func (m Model) renderFooter() string {
	var parts []string

	if m.connected {
		if m.session.Running() {
			parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Stop"))
		} else {
			parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Start"))
		}
		parts = append(parts, ui.FooterKeyStyle.Render("r")+ui.FooterDescStyle.Render(" Reset"))
		parts = append(parts, ui.FooterKeyStyle.Render("v")+ui.FooterDescStyle.Render(" Voice"))
		parts = append(parts, ui.FooterKeyStyle.Render("m")+ui.FooterDescStyle.Render(" Mode"))
		parts = append(parts, ui.FooterKeyStyle.Render("c")+ui.FooterDescStyle.Render(" Countdown"))
		parts = append(parts, ui.FooterKeyStyle.Render("u")+ui.FooterDescStyle.Render(" Utter"))
	}

	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

// formatDuration renders h:mm:ss for long runs and m:ss.t otherwise.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d >= time.Hour {
		h := int(d.Hours())
		mi := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%d:%02d:%02d", h, mi, s)
	}
	mi := int(d.Minutes())
	s := int(d.Seconds()) % 60
	tenths := int(d.Milliseconds()/100) % 10
	return fmt.Sprintf("%d:%02d.%d", mi, s, tenths)
}
