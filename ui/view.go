package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/koeck/voicegpt/internal/assistant"
	"github.com/koeck/voicegpt/utils"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

func (m model) View() string {
	var b strings.Builder
	m.headerView(&b)
	fmt.Fprint(&b, m.bodyView()+"\n")
	m.statusBarView(&b)
	fmt.Fprint(&b, "\n"+m.helpView())
	return b.String()
}

func (m model) headerView(b *strings.Builder) {
	header := logoView()
	if m.cfg.ShowRequestID && m.state.ID > 0 {
		header += subtleStyle.Render(fmt.Sprintf(" #%d", m.state.ID))
	}
	fmt.Fprint(b, header+"\n")

	switch {
	case m.input.Focused():
		fmt.Fprint(b, m.input.View())
	case m.state.Prompt != "":
		fmt.Fprint(b, truncate.StringWithTail(promptStyle.Render("“"+m.state.Prompt+"”"), uint(max(0, m.width)), ellipsis)) //nolint:gosec
	}
	fmt.Fprint(b, "\n")
}

func (m model) bodyView() string {
	height := max(0, m.height-headerHeight-footerHeight)

	if m.state.Response() == "" {
		return m.placeholderView(height)
	}

	if m.cfg.Round {
		face, _, _ := roundView(m.state.Response(), m.diameter(), m.offset)
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, face)
	}
	return boxStyle.Render(m.viewport.View())
}

// placeholderView is shown until the first words of a response arrive.
func (m model) placeholderView(height int) string {
	var s string
	switch {
	case m.listening:
		s = m.spinner.View() + " Listening" + ellipsis
	case m.state.Loading:
		s = m.spinner.View() + " Thinking" + ellipsis
	default:
		s = idleStyle.Render("Start asking")
	}

	if m.cfg.Round {
		s = centerInFace(s, m.diameter())
	}
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, s)
}

func (m model) statusBarView(b *strings.Builder) {
	var note string
	render := subtleStyle.Render

	switch {
	case m.state.Notice != assistant.NoticeNone:
		note = m.state.Notice.String()
		render = errorStyle.Render
	case m.statusMessage != "":
		note = m.statusMessage
		render = messageStyle.Render
	case m.state.Streaming:
		note = "Streaming" + ellipsis
	}
	if note == "" {
		return
	}

	note = truncate.StringWithTail(note, uint(max(0, m.width-2)), ellipsis) //nolint:gosec
	fmt.Fprint(b, render(note))
}

func (m model) helpView() string {
	var keys []string
	switch {
	case m.input.Focused():
		keys = []string{"enter send", "esc cancel"}
	case m.listening:
		keys = []string{"x stop listening", "q quit"}
	default:
		ask := "enter type"
		if m.cfg.Listening && m.recognizer != nil {
			ask = "space speak"
		}
		keys = []string{ask}
		if m.state.Response() != "" {
			keys = append(keys, "↑/↓ scroll", "c copy")
		}
		keys = append(keys, "s stop speech")
		if !m.state.Idle() {
			keys = append(keys, "x cancel")
		}
		keys = append(keys, "q quit")
	}

	s := strings.Join(keys, " • ")
	if ansi.PrintableRuneWidth(s) > m.width {
		s = truncate.StringWithTail(s, uint(max(0, m.width)), ellipsis) //nolint:gosec
	}
	return helpStyle.Render(s)
}

// renderResponse formats a response for the box layout.
func (m model) renderResponse(text string, width int) string {
	if text == "" || width <= 0 {
		return text
	}
	if m.cfg.GlamourMaxWidth > 0 {
		width = min(width, int(m.cfg.GlamourMaxWidth)) //nolint:gosec
	}

	if m.cfg.GlamourEnabled {
		out, err := glamourRender(text, m.cfg.GlamourStyle, width)
		if err == nil {
			return out
		}
		m.logger.Debug("error rendering with Glamour", "error", err)
	}
	return wordwrap.String(text, width)
}

func glamourRender(markdown, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		utils.GlamourStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return strings.Trim(out, "\n"), nil
}
