// Package ui provides the main UI for the voicegpt application.
package ui

import (
	"context"
	"errors"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/koeck/voicegpt/internal/assistant"
	"github.com/koeck/voicegpt/internal/stt"
	"github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 2 // how long to show status messages like "copied!"
	ellipsis             = "…"

	headerHeight = 2
	footerHeight = 2
)

// Asker drives requests. It is implemented by *assistant.Session.
type Asker interface {
	Ask(prompt string) uint64
	Cancel()
	Silence()
	ReportListenError(err error)
	Dismiss()
}

// Deps are the collaborators of the TUI.
type Deps struct {
	Session Asker

	// Recognizer captures spoken prompts; nil means keyboard only
	Recognizer stt.Recognizer

	// Updates delivers every new assistant state; the program quits when it
	// is closed
	Updates <-chan assistant.State

	Logger *log.Logger
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	deps.Logger.Debug(
		"Starting voicegpt",
		"round",
		cfg.Round,
		"listening",
		cfg.Listening && deps.Recognizer != nil,
	)

	if cfg.GlamourStyle == styles.AutoStyle {
		if termenv.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps), opts...)
}

type (
	stateMsg                assistant.State
	updatesClosedMsg        struct{}
	statusMessageTimeoutMsg struct{}
	noticeTimeoutMsg        int
	heardMsg                struct {
		text string
		err  error
	}
)

type model struct {
	cfg        Config
	session    Asker
	recognizer stt.Recognizer
	updates    <-chan assistant.State
	logger     *log.Logger

	width  int
	height int

	state assistant.State

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	// round face scrolling: the first visible word and the offsets to go
	// back up to
	offset  int
	offsets []int

	listening   bool
	stopListen  context.CancelFunc
	noticeCount int

	statusMessage      string
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, deps Deps) model {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if cfg.NoticeTimeout <= 0 {
		cfg.NoticeTimeout = 3 * time.Second
	}
	if cfg.SpinnerFPS <= 0 {
		cfg.SpinnerFPS = 10
	}

	ti := textinput.New()
	ti.Placeholder = "Ask anything"
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.CharLimit = 1000

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: spinner.Dot.Frames,
		FPS:    time.Second / time.Duration(cfg.SpinnerFPS),
	}
	sp.Style = idleStyle

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true

	return model{
		cfg:        cfg,
		session:    deps.Session,
		recognizer: deps.Recognizer,
		updates:    deps.Updates,
		logger:     deps.Logger,
		input:      ti,
		spinner:    sp,
		viewport:   vp,
	}
}

func (m model) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)

	case tea.MouseMsg:
		if m.cfg.Round {
			switch msg.Button { //nolint:exhaustive
			case tea.MouseButtonWheelUp:
				m.scrollUp()
			case tea.MouseButtonWheelDown:
				m.scrollDown()
			}
			return m, nil
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.setSize()
		m.setContent()
		return m, nil

	case stateMsg:
		return m.updateState(assistant.State(msg))

	case updatesClosedMsg:
		return m, tea.Quit

	case heardMsg:
		m.listening = false
		m.stopListen = nil
		if msg.err != nil {
			if errors.Is(msg.err, context.Canceled) {
				return m, nil
			}
			m.logger.Debug("listening failed", "error", msg.err)
			return m, m.do(func(s Asker) { s.ReportListenError(msg.err) })
		}
		m.logger.Debug("heard prompt", "prompt", msg.text)
		return m, m.do(func(s Asker) { s.Ask(msg.text) })

	case noticeTimeoutMsg:
		if int(msg) == m.noticeCount && m.state.Notice != assistant.NoticeNone {
			return m, m.do(func(s Asker) { s.Dismiss() })
		}
		return m, nil

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		return m, nil

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if !m.cfg.Round {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, m.quit()
	case "esc":
		m.input.Blur()
		m.input.Reset()
		return m, nil
	case "enter":
		prompt := m.input.Value()
		m.input.Blur()
		m.input.Reset()
		return m, m.do(func(s Asker) { s.Ask(prompt) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, m.quit()

	case "ctrl+z":
		return m, tea.Suspend

	case " ", "enter":
		if m.listening {
			return m, nil
		}
		if m.cfg.Listening && m.recognizer != nil {
			return m, m.listen()
		}
		return m, m.input.Focus()

	case "/", "i":
		if m.listening {
			return m, nil
		}
		return m, m.input.Focus()

	case "c":
		response := m.state.Response()
		if response == "" {
			return m, nil
		}
		// Copy using OSC 52
		termenv.Copy(response)
		// Copy using native system clipboard
		_ = clipboard.WriteAll(response)
		return m, m.showStatusMessage("Copied response")

	case "s":
		return m, m.do(func(s Asker) { s.Silence() })

	case "x", "esc":
		if m.listening {
			m.stopListen()
			return m, nil
		}
		return m, m.do(func(s Asker) { s.Cancel() })

	case "up", "k":
		if m.cfg.Round {
			m.scrollUp()
			return m, nil
		}

	case "down", "j":
		if m.cfg.Round {
			m.scrollDown()
			return m, nil
		}
	}

	if m.cfg.Round {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updateState(s assistant.State) (tea.Model, tea.Cmd) {
	wasBusy := m.busy()
	prev := m.state
	m.state = s

	cmds := []tea.Cmd{waitForUpdate(m.updates)}

	if s.ID != prev.ID {
		m.offset = 0
		m.offsets = nil
		m.viewport.GotoTop()
	}
	if s.Response() != prev.Response() || s.ID != prev.ID {
		m.setContent()
	}
	if s.Notice != assistant.NoticeNone && (s.Notice != prev.Notice || s.Err != prev.Err) {
		m.noticeCount++
		cmds = append(cmds, waitForNoticeTimeout(m.cfg.NoticeTimeout, m.noticeCount))
	}
	if !wasBusy && m.busy() {
		cmds = append(cmds, m.spinner.Tick)
	}

	return m, tea.Batch(cmds...)
}

// busy reports whether the spinner should run.
func (m model) busy() bool {
	return m.listening || m.state.Loading
}

func (m *model) listen() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.listening = true
	m.stopListen = cancel
	return tea.Batch(listenCmd(ctx, m.recognizer), m.spinner.Tick)
}

func (m *model) quit() tea.Cmd {
	if m.stopListen != nil {
		m.stopListen()
	}
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	return tea.Quit
}

// do runs fn against the session off the update loop.
func (m model) do(fn func(Asker)) tea.Cmd {
	s := m.session
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		fn(s)
		return nil
	}
}

func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)

	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m *model) setSize() {
	m.viewport.Width = max(0, m.width-boxStyle.GetHorizontalFrameSize())
	m.viewport.Height = max(0, m.height-headerHeight-footerHeight-boxStyle.GetVerticalFrameSize())
	m.input.Width = max(0, m.width-lipgloss.Width(m.input.Prompt)-1)
}

func (m *model) setContent() {
	if m.cfg.Round {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderResponse(m.state.Response(), m.viewport.Width))
	if atBottom && m.state.Streaming {
		m.viewport.GotoBottom()
	}
}

// diameter returns the size of the round face.
func (m model) diameter() int {
	if m.cfg.Diameter > 0 {
		return m.cfg.Diameter
	}
	return max(0, min(m.height-headerHeight-footerHeight, m.width/2))
}

func (m *model) scrollDown() {
	_, next, more := roundView(m.state.Response(), m.diameter(), m.offset)
	if !more || next == m.offset {
		return
	}
	m.offsets = append(m.offsets, m.offset)
	m.offset = next
}

func (m *model) scrollUp() {
	if len(m.offsets) == 0 {
		return
	}
	m.offset = m.offsets[len(m.offsets)-1]
	m.offsets = m.offsets[:len(m.offsets)-1]
}

// COMMANDS

func waitForUpdate(updates <-chan assistant.State) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return stateMsg(s)
	}
}

func listenCmd(ctx context.Context, r stt.Recognizer) tea.Cmd {
	return func() tea.Msg {
		text, err := stt.Listen(ctx, r)
		return heardMsg{text: text, err: err}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func waitForNoticeTimeout(d time.Duration, n int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return noticeTimeoutMsg(n)
	})
}
