// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/link"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxLogEntries = 100
	barWidth      = 30
)

// Input modes
const (
	inputNone = iota
	inputRGB
	inputSegment
)

// Release keys are the shifted digits on a US layout
var releaseKeys = map[string]int{"!": 0, "@": 1, "#": 2, "$": 3, "%": 4}

// Request keys map to the raw request codes
var requestKeys = map[string]lineproto.RawCode{
	"a": lineproto.NewADCRequest(),
	"t": lineproto.NewTimerRequest(),
	"z": lineproto.NewBuzzerRequest(),
	"x": lineproto.NewResetRequest(),
	"m": lineproto.NewTimeRequest(),
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type commandIssuer interface {
	Issue(cmd lineproto.Command) error
}

type stateResetter interface {
	Reset()
}

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	issuer   commandIssuer
	resetter stateResetter
	connInfo string

	// Latest published snapshot
	snap link.Snapshot

	// Control
	focusedLed int
	inputMode  int
	input      textinput.Model

	// Display
	adcBar      progress.Model
	progressBar progress.Model
	eventLog    []logEntry

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type snapshotMsg link.Snapshot

type resetDoneMsg struct{}

type trafficMsg struct {
	dir  lineproto.Direction
	text string
	at   time.Time
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(issuer commandIssuer, resetter stateResetter, connInfo string, snap link.Snapshot) controlModel {
	ti := textinput.New()
	ti.CharLimit = 11
	ti.Width = 12

	return controlModel{
		issuer:      issuer,
		resetter:    resetter,
		connInfo:    connInfo,
		snap:        snap,
		input:       ti,
		adcBar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		progressBar: progress.New(progress.WithSolidFill("12"), progress.WithWidth(barWidth)),
		eventLog:    make([]logEntry, 0),
		width:       80,
		height:      24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		m.snap.Stats.CalculateRates()
		return m, controlTickCmd()

	case snapshotMsg:
		prev := m.snap.Link
		m.snap = link.Snapshot(msg)
		if m.snap.Link != prev {
			m.addLogEntry(fmt.Sprintf("Link %s", m.snap.Device.StatusText), m.snap.Link == link.Disconnected)
		}

	case resetDoneMsg:
		m.addLogEntry("State and statistics reset", false)

	case trafficMsg:
		if msg.dir == lineproto.Outbound {
			m.addLogEntryAt(msg.at, fmt.Sprintf("tx %s", msg.text), false)
		} else {
			events := lineproto.ParseLine(msg.text)
			_, unknown := events[0].(lineproto.Unrecognized)
			m.addLogEntryAt(msg.at, fmt.Sprintf("rx %q", msg.text), unknown)
		}
	}

	if m.inputMode != inputNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}

	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "1", "2", "3", "4", "5":
		m.issue(lineproto.ButtonPress{Index: int(key[0] - '1')})

	case "left":
		m.focusedLed = (m.focusedLed + lineproto.NumLeds - 1) % lineproto.NumLeds

	case "right":
		m.focusedLed = (m.focusedLed + 1) % lineproto.NumLeds

	case "l", " ":
		m.issue(lineproto.LedSet{Index: m.focusedLed, On: !m.snap.Device.Leds[m.focusedLed]})

	case "r":
		return m.beginInput(inputRGB, "255,255,255")

	case "s":
		return m.beginInput(inputSegment, "1234")

	case "c":
		m.issue(lineproto.NewClockSync(time.Now()))

	case "R":
		// Reset publishes through the store, which delivers back to this
		// program; it must not run on the event loop.
		return m, resetCmd(m.resetter)

	default:
		if idx, ok := releaseKeys[key]; ok {
			m.issue(lineproto.ButtonRelease{Index: idx})
		} else if code, ok := requestKeys[key]; ok {
			m.issue(code)
		}
	}

	return m, nil
}

func resetCmd(r stateResetter) tea.Cmd {
	return func() tea.Msg {
		r.Reset()
		return resetDoneMsg{}
	}
}

func (m controlModel) beginInput(mode int, placeholder string) (tea.Model, tea.Cmd) {
	m.inputMode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue("")
	m.input.Focus()
	return m, textinput.Blink
}

func (m controlModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.endInput()
		return m, nil

	case "enter":
		prefix := "RGB:"
		if m.inputMode == inputSegment {
			prefix = "SEG:"
		}
		cmd, err := lineproto.ParseCommand(prefix + strings.TrimSpace(m.input.Value()))
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		m.issue(cmd)
		m.endInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *controlModel) endInput() {
	m.inputMode = inputNone
	m.input.Blur()
}

// issue queues cmd on the link and logs rejections
func (m *controlModel) issue(cmd lineproto.Command) {
	if err := m.issuer.Issue(cmd); err != nil {
		m.addLogEntry(fmt.Sprintf("Command rejected: %v", err), true)
	}
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.addLogEntryAt(time.Now(), message, isError)
}

func (m *controlModel) addLogEntryAt(at time.Time, message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: at,
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("BOARDLINK CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.snap.Link != link.Connected {
		connStatus = warningStyle.Render(m.snap.Link.String())
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit", connStatus)))
	s.WriteString("\n\n")

	// Board panel | stats panel
	leftWidth := 44
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 20 {
		rightWidth = 20
	}
	board := boxStyle.Width(leftWidth).Render(m.renderBoard(labelStyle, valueStyle, headerStyle))
	stats := boxStyle.Width(rightWidth).Render(m.renderStatistics(labelStyle, valueStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, board, " ", stats))
	s.WriteString("\n")

	// Input line or key help
	if m.inputMode != inputNone {
		label := "RGB (r,g,b): "
		if m.inputMode == inputSegment {
			label = "Segment: "
		}
		s.WriteString(labelStyle.Render(label))
		s.WriteString(m.input.View())
		s.WriteString(headerStyle.Render("  enter=send esc=cancel"))
	} else {
		s.WriteString(headerStyle.Render("1-5 press  !@#$% release  ←/→ LED  l toggle  r RGB  s SEG  a/t/z/x/m request  c clock  R reset"))
	}
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(labelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderBoard(labelStyle, valueStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder
	dev := m.snap.Device

	// LEDs, focused one bracketed
	s.WriteString(labelStyle.Render("LEDs:    "))
	onStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	for i, on := range dev.Leds {
		mark := headerStyle.Render("○")
		if on {
			mark = onStyle.Render("●")
		}
		if i == m.focusedLed {
			s.WriteString(fmt.Sprintf("[%d%s]", i+1, mark))
		} else {
			s.WriteString(fmt.Sprintf(" %d%s ", i+1, mark))
		}
	}
	s.WriteString("\n")

	// RGB swatch
	swatch := lipgloss.NewStyle().
		Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", dev.Color.R, dev.Color.G, dev.Color.B))).
		Render("    ")
	s.WriteString(fmt.Sprintf("%s %s %s\n", labelStyle.Render("RGB:    "), swatch, valueStyle.Render(lineproto.FormatRGB(dev.Color))))

	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Segment:"), valueStyle.Render(dev.Segment)))

	mode := dev.Mode.String()
	if dev.ModeDetail != "" {
		mode += " " + dev.ModeDetail
	}
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Mode:   "), valueStyle.Render(mode)))

	s.WriteString(fmt.Sprintf("%s %s %3d\n", labelStyle.Render("ADC:    "),
		m.adcBar.ViewAs(float64(dev.AdcDisplay)/lineproto.AdcDisplayMax), dev.AdcRaw))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Progress:"),
		m.progressBar.ViewAs(float64(dev.Progress)/100)))

	if dev.FlashInfo != "" {
		s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Flash:  "), valueStyle.Render(dev.FlashInfo)))
	}
	if dev.StatusText != "" {
		s.WriteString(headerStyle.Render(dev.StatusText))
	}

	return s.String()
}

func (m controlModel) renderStatistics(labelStyle, valueStyle lipgloss.Style) string {
	var s strings.Builder
	st := m.snap.Stats

	s.WriteString(labelStyle.Render("STATISTICS"))
	s.WriteString("\n")
	rows := []struct {
		label string
		value string
	}{
		{"Lines:", fmt.Sprintf("%d (%.1f/s)", st.TotalLines, st.LineRate)},
		{"Recognized:", fmt.Sprintf("%d", st.Recognized)},
		{"Unrecognized:", fmt.Sprintf("%d", st.Unrecognized)},
		{"Commands:", fmt.Sprintf("%d", st.CommandsSent)},
		{"Time syncs:", fmt.Sprintf("%d", st.TimeSyncs)},
		{"I/O errors:", fmt.Sprintf("%d read, %d write", st.ReadErrors, st.WriteErrors)},
		{"Reconnects:", fmt.Sprintf("%d", st.Reconnects)},
	}
	for _, row := range rows {
		s.WriteString(fmt.Sprintf("%-14s %s\n", labelStyle.Render(row.label), valueStyle.Render(row.value)))
	}
	if m.snap.LastLine != "" {
		s.WriteString(fmt.Sprintf("%-14s %q", labelStyle.Render("Last line:"), m.snap.LastLine))
	}

	return s.String()
}

func (m controlModel) renderEventLog(labelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	// Fit the log to the remaining height
	logHeight := m.height - 20
	if logHeight < 4 {
		logHeight = 4
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}
