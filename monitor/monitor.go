// Package monitor implements the live bus monitor TUI for thermistor module
// broadcasts using BubbleTea.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/notnil/thermnode/orion"
)

const (
	tickInterval = 250 * time.Millisecond
	// staleAfter marks a module whose broadcasts stopped.
	staleAfter = time.Second
)

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg = lipgloss.Color("17")
	colorTitleFg = lipgloss.Color("51")
	colorDim     = lipgloss.Color("240")
	colorOK      = lipgloss.Color("42")
	colorWarn    = lipgloss.Color("220")
	colorCrit    = lipgloss.Color("196")

	titleStyle  = lipgloss.NewStyle().Bold(true).Background(colorTitleBg).Foreground(colorTitleFg).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorDim)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type broadcastMsg struct {
	b  orion.ModuleBroadcast
	at time.Time
}

type statusMsg struct {
	s  orion.Status
	at time.Time
}

type closedMsg struct{}

// ── Model ────────────────────────────────────────────────────────────

type moduleRow struct {
	last   orion.ModuleBroadcast
	seen   time.Time
	frames int
}

// Model is the BubbleTea model for the bus monitor.
type Model struct {
	broadcasts <-chan orion.ModuleBroadcast
	statuses   <-chan orion.Status

	modules  map[orion.Identifier]*moduleRow
	status   *orion.Status
	statusAt time.Time
	warnTemp int8
	critTemp int8
	now      time.Time
	closed   bool
	width    int
	title    string
}

// Options configures the monitor.
type Options struct {
	Title string
	// Temperatures at or above these are highlighted.
	WarnTemp int8
	CritTemp int8
}

// New creates the model. statuses may be nil.
func New(broadcasts <-chan orion.ModuleBroadcast, statuses <-chan orion.Status, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "thermnode watch"
	}
	if opts.WarnTemp == 0 {
		opts.WarnTemp = 45
	}
	if opts.CritTemp == 0 {
		opts.CritTemp = 55
	}
	return Model{
		broadcasts: broadcasts,
		statuses:   statuses,
		modules:    make(map[orion.Identifier]*moduleRow),
		warnTemp:   opts.WarnTemp,
		critTemp:   opts.CritTemp,
		now:        time.Now(),
		title:      opts.Title,
	}
}

// Run starts the TUI and blocks until the user quits or ctx is done.
func Run(ctx context.Context, broadcasts <-chan orion.ModuleBroadcast, statuses <-chan orion.Status, opts Options) error {
	p := tea.NewProgram(New(broadcasts, statuses, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// ── Commands ─────────────────────────────────────────────────────────

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitBroadcast(ch <-chan orion.ModuleBroadcast) tea.Cmd {
	return func() tea.Msg {
		b, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return broadcastMsg{b: b, at: time.Now()}
	}
}

func waitStatus(ch <-chan orion.Status) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return statusMsg{s: s, at: time.Now()}
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitBroadcast(m.broadcasts), waitStatus(m.statuses), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			m.modules = make(map[orion.Identifier]*moduleRow)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case broadcastMsg:
		row, ok := m.modules[msg.b.ID]
		if !ok {
			row = &moduleRow{}
			m.modules[msg.b.ID] = row
		}
		row.last = msg.b
		row.seen = msg.at
		row.frames++
		return m, waitBroadcast(m.broadcasts)

	case statusMsg:
		s := msg.s
		m.status = &s
		m.statusAt = msg.at
		return m, waitStatus(m.statuses)

	case closedMsg:
		m.closed = true
	}
	return m, nil
}

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	if len(m.modules) == 0 {
		b.WriteString(dimStyle.Render("waiting for module broadcasts..."))
		b.WriteString("\n")
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %6s %6s %6s %6s %7s %8s", "ID", "MODULE", "MIN", "MAX", "AVG", "FRAMES", "AGE")))
		b.WriteString("\n")
		for _, id := range m.sortedIDs() {
			row := m.modules[id]
			age := m.now.Sub(row.seen)
			if age < 0 {
				age = 0
			}
			line := fmt.Sprintf("%-12s %6d %s %s %s %7d %8s",
				id.String(),
				row.last.Module,
				m.temp(row.last.Lowest),
				m.temp(row.last.Highest),
				m.temp(row.last.Average),
				row.frames,
				age.Truncate(time.Millisecond),
			)
			if age > staleAfter {
				line = dimStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.status == nil:
		b.WriteString(dimStyle.Render("R2D: no status received"))
	case m.status.Ready():
		b.WriteString(lipgloss.NewStyle().Foreground(colorOK).Render(fmt.Sprintf("R2D: ready (0x%02X)", m.status.Value)))
	default:
		b.WriteString(lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("R2D: not ready (0x%02X)", m.status.Value)))
	}
	b.WriteString("\n")
	if m.closed {
		b.WriteString(lipgloss.NewStyle().Foreground(colorCrit).Render("bus closed"))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("q quit · c clear"))
	return b.String()
}

func (m Model) temp(t int8) string {
	s := fmt.Sprintf("%6d", t)
	switch {
	case t >= m.critTemp:
		return lipgloss.NewStyle().Foreground(colorCrit).Render(s)
	case t >= m.warnTemp:
		return lipgloss.NewStyle().Foreground(colorWarn).Render(s)
	default:
		return s
	}
}

func (m Model) sortedIDs() []orion.Identifier {
	ids := make([]orion.Identifier, 0, len(m.modules))
	for id := range m.modules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Extended != ids[j].Extended {
			return !ids[i].Extended
		}
		return ids[i].ID < ids[j].ID
	})
	return ids
}
