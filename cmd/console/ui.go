package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/inventory-engine/pkg/layout"
	"github.com/jwebster45206/inventory-engine/pkg/placement"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// Terminal position of the board's top-left cell: the panel padding plus
// the title and the blank line under it.
const (
	boardX = 3
	boardY = 4
)

const glideFrame = time.Second / 60

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	board        *board
	events       *eventLog
	logger       *slog.Logger
	snapshotPath string

	logViewport viewport.Model
	help        help.Model
	keys        keyMap
	ready       bool
	width       int
	height      int

	// cursor glide after a mouse click
	glide    *layout.Snap
	glidePos layout.Vec

	// Quit confirmation state
	showQuitModal bool
}

type glideTickMsg struct{}

// eventLog collects the lines shown in the log panel. The engine observer
// writes to it, so it is shared by pointer across model copies.
type eventLog struct {
	lines []string
}

func (l *eventLog) add(format string, args ...any) {
	l.lines = append(l.lines, time.Now().Format("15:04:05")+" "+fmt.Sprintf(format, args...))
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Next    key.Binding
	Prev    key.Binding
	Place   key.Binding
	Auto    key.Binding
	Release key.Binding
	Save    key.Binding
	Load    key.Binding
	Copy    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		Next:    key.NewBinding(key.WithKeys("tab", "]"), key.WithHelp("tab", "next shape")),
		Prev:    key.NewBinding(key.WithKeys("shift+tab", "["), key.WithHelp("shift+tab", "prev shape")),
		Place:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "place")),
		Auto:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-place")),
		Release: key.NewBinding(key.WithKeys("x", "backspace", "delete"), key.WithHelp("x", "release")),
		Save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Load:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "load")),
		Copy:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy json")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Place, k.Auto, k.Release, k.Next, k.Save, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Next, k.Prev, k.Place, k.Auto, k.Release},
		{k.Save, k.Load, k.Copy, k.Quit},
	}
}

var (
	boardPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	freeCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	disabledCellStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	fitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

// itemColors cycles per item so neighbors stay distinguishable.
var itemColors = []lipgloss.Color{"39", "214", "212", "86", "141", "220", "75", "209"}

// linkGlyphs shade an occupied cell by its visual state: more occupied
// neighbors draw a denser block.
var linkGlyphs = []string{"░░", "▒▒", "▓▓", "██", "██"}

func NewConsoleUI(b *board, events *eventLog, snapshotPath string, logger *slog.Logger) ConsoleUI {
	vp := viewport.New(30, 20)
	vp.MouseWheelEnabled = true

	return ConsoleUI{
		board:        b,
		events:       events,
		logger:       logger,
		snapshotPath: snapshotPath,
		logViewport:  vp,
		help:         help.New(),
		keys:         defaultKeyMap(),
	}
}

// engineObserver reports placement events to the log panel and slog.
func engineObserver(events *eventLog, logger *slog.Logger) placement.Observer {
	return func(ev placement.Event, it *placement.Item, indices []int) {
		name := it.Shape.DisplayName()
		if name == "" {
			name = it.ID.String()[:8]
		}
		events.add("%s %s %v", ev, name, indices)
		logger.Debug("Placement event", "event", ev.String(), "item_id", it.ID, "cells", indices)
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return nil
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logWidth := max(20, m.width-m.boardWidth()-8)
		m.logViewport.Width = logWidth
		m.logViewport.Height = max(5, m.height-4)
		m.help.Width = m.boardWidth() + 20
		m.ready = true
		m.refreshLog()
		return m, nil

	case glideTickMsg:
		if m.glide == nil {
			return m, nil
		}
		pos, done := m.glide.Update(float32(glideFrame.Seconds()))
		m.glidePos = pos
		if done {
			m.glide = nil
			return m, nil
		}
		return m, glideTick()

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			if p, ok := m.board.CellAt(msg.X, msg.Y, boardX, boardY); ok {
				switch msg.Button {
				case tea.MouseButtonLeft:
					return m, m.glideTo(p)
				case tea.MouseButtonRight:
					m.board.cursor = p
					m.release()
					return m, nil
				}
			}
		}
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.showQuitModal = true
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.board.MoveCursor(0, -1)
		case key.Matches(msg, m.keys.Down):
			m.board.MoveCursor(0, 1)
		case key.Matches(msg, m.keys.Left):
			m.board.MoveCursor(-1, 0)
		case key.Matches(msg, m.keys.Right):
			m.board.MoveCursor(1, 0)
		case key.Matches(msg, m.keys.Next):
			m.board.CycleShape(1)
		case key.Matches(msg, m.keys.Prev):
			m.board.CycleShape(-1)
		case key.Matches(msg, m.keys.Place):
			m.place(false)
		case key.Matches(msg, m.keys.Auto):
			m.place(true)
		case key.Matches(msg, m.keys.Release):
			m.release()
		case key.Matches(msg, m.keys.Save):
			m.save()
		case key.Matches(msg, m.keys.Load):
			m.load()
		case key.Matches(msg, m.keys.Copy):
			m.copySnapshot()
		}
		m.glide = nil
		m.refreshLog()
		return m, nil
	}

	return m, nil
}

// glideTo moves the cursor to p at once and animates the highlight there.
func (m *ConsoleUI) glideTo(p shape.Point) tea.Cmd {
	from := m.board.CursorPos()
	if m.glide != nil {
		from = m.glidePos
	}
	snap, ok := layout.NewSnap(from, from, p.X, p.Y, m.board.params, 0, nil)
	m.board.cursor = p
	if !ok {
		m.glide = nil
		return nil
	}
	m.glide = snap
	m.glidePos = from
	return glideTick()
}

func glideTick() tea.Cmd {
	return tea.Tick(glideFrame, func(time.Time) tea.Msg {
		return glideTickMsg{}
	})
}

func (m *ConsoleUI) place(auto bool) {
	var err error
	if auto {
		_, err = m.board.AutoPlace()
	} else {
		_, err = m.board.PlaceAtCursor()
	}
	if err != nil {
		m.events.add("%s", errorStyle.Render("cannot place: "+err.Error()))
		m.logger.Info("Placement rejected", "auto", auto, "cursor", m.board.cursor, "error", err)
	}
	m.refreshLog()
}

func (m *ConsoleUI) release() {
	if it, _ := m.board.ReleaseAtCursor(); it == nil {
		m.events.add("nothing to release at %d,%d", m.board.cursor.X, m.board.cursor.Y)
	}
	m.refreshLog()
}

func (m *ConsoleUI) save() {
	if err := m.board.Save(m.snapshotPath); err != nil {
		m.events.add("%s", errorStyle.Render(err.Error()))
		m.logger.Error("Failed to save snapshot", "path", m.snapshotPath, "error", err)
		return
	}
	m.events.add("saved %d items to %s", len(m.board.items), m.snapshotPath)
	m.logger.Info("Snapshot saved", "path", m.snapshotPath, "inventory_id", m.board.id)
}

func (m *ConsoleUI) load() {
	if err := m.board.Load(m.snapshotPath); err != nil {
		m.events.add("%s", errorStyle.Render("load failed: "+err.Error()))
		m.logger.Error("Failed to load snapshot", "path", m.snapshotPath, "error", err)
		return
	}
	m.events.add("loaded %d items from %s", len(m.board.items), m.snapshotPath)
	m.logger.Info("Snapshot loaded", "path", m.snapshotPath, "inventory_id", m.board.id)
}

func (m *ConsoleUI) copySnapshot() {
	data, err := m.board.SnapshotJSON()
	if err == nil {
		err = clipboard.WriteAll(string(data))
	}
	if err != nil {
		m.events.add("%s", errorStyle.Render("copy failed: "+err.Error()))
		return
	}
	m.events.add("snapshot copied to clipboard (%d bytes)", len(data))
}

func (m *ConsoleUI) refreshLog() {
	width := max(10, m.logViewport.Width-2)
	var content strings.Builder
	content.WriteString(titleStyle.Render("LOG") + "\n\n")
	for _, line := range m.events.lines {
		content.WriteString(wordwrap.String(line, width) + "\n")
	}
	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "y", "Y", "ctrl+c":
			return m, tea.Quit
		case "n", "N", "esc":
			m.showQuitModal = false
		}
	}
	return m, nil
}

func (m ConsoleUI) boardWidth() int {
	return int(m.board.params.Size.X)
}

// renderBoard draws the grid. The cursor cell is reversed and the selected
// shape's footprint at the cursor is drawn as a green or red ghost.
func (m ConsoleUI) renderBoard() string {
	g := m.board.grid
	ghost, fits := m.board.Preview()
	ghostSet := make(map[int]bool, len(ghost))
	for _, idx := range ghost {
		ghostSet[idx] = true
	}
	owners := m.board.ItemIndex()

	cursor := m.board.cursor
	if m.glide != nil {
		if c, ok := layout.MapPointerToCell(m.glidePos, m.board.params); ok {
			cursor = shape.Point{X: c.Col, Y: c.Row}
		}
	}

	var b strings.Builder
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			if x > 0 {
				b.WriteString(" ")
			}
			idx := g.Index(x, y)
			b.WriteString(m.renderCell(idx, owners, ghostSet[idx], fits, cursor.X == x && cursor.Y == y))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m ConsoleUI) renderCell(idx int, owners map[int]int, ghost, fits, cursor bool) string {
	g := m.board.grid
	var style lipgloss.Style
	glyph := "··"
	switch owner, ok := owners[idx]; {
	case ok:
		style = lipgloss.NewStyle().Foreground(itemColors[owner%len(itemColors)])
		glyph = linkGlyphs[min(g.VisualState(idx), len(linkGlyphs)-1)]
	case !g.IsFreeIndex(idx):
		style = disabledCellStyle
		glyph = "  "
	default:
		style = freeCellStyle
	}
	if ghost {
		if fits {
			style = fitStyle
		} else {
			style = blockedStyle
		}
		if _, ok := owners[idx]; !ok {
			glyph = "▒▒"
		}
	}
	if cursor {
		style = style.Reverse(true)
	}
	return style.Render(glyph)
}

func (m ConsoleUI) renderSidebar() string {
	var b strings.Builder
	g := m.board.grid
	b.WriteString(fmt.Sprintf("%dx%d  free %d/%d  items %d\n\n", g.Width(), g.Height(), g.FreeCount(), g.Len(), len(m.board.items)))

	sel := m.board.Selected()
	if sel == nil {
		b.WriteString(errorStyle.Render("No shapes found in the data directory"))
		return b.String()
	}
	name := sel.DisplayName()
	if name == "" {
		name = sel.ID
	}
	b.WriteString(fmt.Sprintf("Shape %d/%d: %s\n", m.board.selected+1, len(m.board.shapes), titleStyle.Render(name)))
	for _, row := range sel.Pattern() {
		b.WriteString("  " + promptStyle.Render(row) + "\n")
	}
	if it := m.board.ItemAt(m.board.cursor); it != nil {
		b.WriteString(fmt.Sprintf("\nUnder cursor: %s %s\n", it.Shape.DisplayName(), it.ID.String()[:8]))
	}
	return b.String()
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Unsaved placements will be lost.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	boardWidth := max(m.boardWidth(), 30)
	boardPanel := boardPanelStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("INVENTORY"),
			"",
			m.renderBoard(),
			"",
			separatorStyle.Render(strings.Repeat("─", boardWidth)),
			m.renderSidebar(),
			m.help.View(m.keys),
		),
	)

	logPanel := logPanelStyle.Render(m.logViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, boardPanel, "    ", logPanel)
}
