package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// Loader produces the preview rows; it runs once, from [Model.Init].
type Loader func() ([]PreviewRow, error)

// Model is the preview TUI state.
type Model struct {
	title       string
	load        Loader
	loaded      bool
	rows        []PreviewRow
	invalidOnly bool
	table       table.Model
	width       int
	height      int
	err         error
	help        help.Model
	keys        keyMap
}

var columnWidths = []int{5, 20, 28, 10, 8, 32}

// NewModel creates a preview model titled title that reads its rows with load.
func NewModel(title string, load Loader) *Model {
	cols := make([]table.Column, len(previewHeaders))
	for i, h := range previewHeaders {
		cols[i] = table.Column{Title: h, Width: columnWidths[i]}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	t.SetStyles(tableStyles())

	return &Model{
		title: title,
		load:  load,
		table: t,
		help:  help.New(),
		keys:  newKeyMap(),
	}
}

// Init loads the rows.
func (m *Model) Init() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		rows, err := load()
		return rowsLoadedMsg(rows, err)
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.invalid):
			m.invalidOnly = !m.invalidOnly
			m.refresh()
			return m, nil
		}

	case Msg:
		if msg.kind == MsgRowsLoaded {
			data := msg.data.(rowsLoaded)
			m.loaded = true
			m.rows = data.rows
			m.err = data.err
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.table.SetRows(tableRows(m.rows, m.invalidOnly))
	m.table.GotoTop()
}

// View renders the current state.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Preview: " + m.title))
	b.WriteString("\n")

	if !m.loaded {
		b.WriteString("Reading rows...\n")
		return b.String()
	}

	if m.err != nil {
		b.WriteString(styles.err.Render("✗ " + m.err.Error()))
		b.WriteString("\n")
	}

	invalid := CountInvalid(m.rows)
	b.WriteString(fmt.Sprintf("%d rows • ", len(m.rows)))
	b.WriteString(styles.ok.Render(fmt.Sprintf("%d valid", len(m.rows)-invalid)))
	b.WriteString(" • ")
	if invalid > 0 {
		b.WriteString(styles.err.Render(fmt.Sprintf("%d invalid", invalid)))
	} else {
		b.WriteString(fmt.Sprintf("%d invalid", invalid))
	}
	if m.invalidOnly {
		b.WriteString(styles.warn.Render("  (showing invalid only)"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n\n")
	b.WriteString(styles.help.Render(m.help.View(m.keys)))
	b.WriteString("\n")

	return b.String()
}

var _ tea.Model = (*Model)(nil)
