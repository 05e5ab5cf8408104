// Package tui implements the interactive terminal search screen.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"kbrag/internal/domain"
)

// DefaultTopK is the number of results fetched per query.
const DefaultTopK = 10

const (
	readyStatus    = "Index ready. Type a question and press enter."
	disabledStatus = "Retrieval disabled: no index loaded. Run 'kbrag build' first."
)

// loadReporter is implemented by searchers that can be without an index.
type loadReporter interface {
	Loaded() bool
}

// Model is the Bubble Tea model of the search screen.
type Model struct {
	searcher domain.Searcher
	topK     int
	summary  string

	keys   keyMap
	help   help.Model
	input  textinput.Model
	detail viewport.Model

	query   string
	terms   map[string]struct{}
	results []domain.ScoredChunk
	cursor  int
	status  string
	ready   bool
}

// New creates the search screen. summary is shown under the title.
func New(searcher domain.Searcher, summary string, topK int) Model {
	if topK <= 0 {
		topK = DefaultTopK
	}
	in := textinput.New()
	in.Prompt = "query> "
	in.Placeholder = "what does the handbook say about..."
	in.Focus()

	return Model{
		searcher: searcher,
		topK:     topK,
		summary:  summary,
		keys:     defaultKeyMap(),
		help:     help.New(),
		input:    in,
		detail:   viewport.New(0, 0),
		status:   readyStatus,
	}.withLoadStatus()
}

// withLoadStatus switches the status line to disabledStatus when the searcher
// reports that no index is loaded.
func (m Model) withLoadStatus() Model {
	if !m.loaded() {
		m.status = disabledStatus
	}
	return m
}

func (m Model) loaded() bool {
	if r, ok := m.searcher.(loadReporter); ok {
		return r.Loaded()
	}
	return true
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles resize and key events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Search):
			m.runQuery(strings.TrimSpace(m.input.Value()))
			return m, nil
		case key.Matches(msg, m.keys.Next):
			m.move(1)
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.move(-1)
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.input.Reset()
			m.query, m.terms, m.results, m.cursor = "", nil, nil, 0
			m.status = "Cleared."
			m.refresh()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) runQuery(q string) {
	if q == "" {
		return
	}
	m.query = q
	m.terms = queryTerms(q)
	m.results = m.searcher.Search(q, m.topK)
	m.cursor = 0
	switch n := len(m.results); {
	case !m.loaded():
		m.status = disabledStatus
	case n == 0:
		m.status = fmt.Sprintf("No passages for %q", q)
	case n == 1:
		m.status = fmt.Sprintf("1 passage for %q", q)
	default:
		m.status = fmt.Sprintf("%d passages for %q", n, q)
	}
	m.refresh()
}

func (m *Model) move(delta int) {
	n := len(m.results)
	if n == 0 {
		return
	}
	m.cursor = ((m.cursor+delta)%n + n) % n
	m.refresh()
}

func (m *Model) resize(width, height int) {
	m.ready = true
	m.help.Width = width
	// title, summary, one list row per result, status and help lines.
	used := 4 + m.topK + detailStyle.GetVerticalFrameSize() + inputStyle.GetVerticalFrameSize() + 1
	m.detail.Width = max(20, width-detailStyle.GetHorizontalFrameSize())
	m.detail.Height = max(3, height-used)
	m.refresh()
}

func (m *Model) refresh() {
	m.detail.SetContent(m.renderDetail())
	m.detail.GotoTop()
}

// Selected returns the result under the cursor.
func (m Model) Selected() (domain.ScoredChunk, bool) {
	if len(m.results) == 0 {
		return domain.ScoredChunk{}, false
	}
	return m.results[m.cursor], true
}
