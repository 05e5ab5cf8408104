package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbrag/internal/domain"
)

type stubSearcher struct {
	results []domain.ScoredChunk
	queries []string
	topKs   []int
}

func (s *stubSearcher) Search(query string, topK int) []domain.ScoredChunk {
	s.queries = append(s.queries, query)
	s.topKs = append(s.topKs, topK)
	return s.results
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func press(m Model, k tea.KeyType) Model {
	next, _ := m.Update(tea.KeyMsg{Type: k})
	return next.(Model)
}

func typeQuery(m Model, q string) Model {
	for _, r := range q {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return press(m, tea.KeyEnter)
}

func twoResults() *stubSearcher {
	return &stubSearcher{results: []domain.ScoredChunk{
		{Chunk: domain.Chunk{Source: "Doc A", Page: 1, Text: "Vacation needs approval. Give two weeks notice."}, Score: 0.8},
		{Chunk: domain.Chunk{Source: "Doc B", Page: 3, Text: "Overtime is paid weekly."}, Score: 0.1},
	}}
}

func TestModel_SearchAndCycle(t *testing.T) {
	stub := twoResults()
	m := typeQuery(sized(New(stub, "summary", 0)), "notice")

	require.Equal(t, []string{"notice"}, stub.queries)
	assert.Equal(t, []int{DefaultTopK}, stub.topKs)
	assert.Equal(t, `2 passages for "notice"`, m.status)
	assert.Contains(t, m.renderDetail(), "Doc A, page 1")

	m = press(m, tea.KeyDown)
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Doc B", sel.Source)

	m = press(m, tea.KeyDown)
	sel, _ = m.Selected()
	assert.Equal(t, "Doc A", sel.Source, "cycling wraps around")

	m = press(m, tea.KeyUp)
	assert.Contains(t, m.renderDetail(), "[2/2]")
}

func TestModel_ListMarksSelection(t *testing.T) {
	m := typeQuery(sized(New(twoResults(), "", 5)), "overtime")

	list := m.renderList()

	assert.Contains(t, list, ">")
	assert.Contains(t, list, "Doc A p.1")
	assert.Contains(t, list, "Doc B p.3")
}

func TestModel_BlankQueryDoesNotSearch(t *testing.T) {
	stub := twoResults()
	m := typeQuery(sized(New(stub, "", 3)), "   ")

	assert.Empty(t, stub.queries)
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestModel_NoResults(t *testing.T) {
	m := typeQuery(sized(New(&stubSearcher{}, "", 3)), "anything")

	assert.Equal(t, `No passages for "anything"`, m.status)
	assert.Equal(t, "No results yet.", m.renderDetail())
}

func TestModel_ClearResetsResults(t *testing.T) {
	m := typeQuery(sized(New(twoResults(), "", 3)), "notice")

	m = press(m, tea.KeyEsc)

	assert.Empty(t, m.input.Value())
	assert.Empty(t, m.results)
	assert.Equal(t, "No results yet.", m.renderDetail())
}

func TestModel_Quit(t *testing.T) {
	_, cmd := New(&stubSearcher{}, "", 3).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_ViewBeforeResize(t *testing.T) {
	assert.Equal(t, "Loading...", New(&stubSearcher{}, "", 3).View())
}

func TestHighlightTerms(t *testing.T) {
	mark := func(s string) string { return "[" + s + "]" }

	tests := []struct {
		name  string
		text  string
		query string
		want  string
	}{
		{name: "case insensitive", text: "Vacation needs notice.", query: "vacation NOTICE", want: "[Vacation] needs [notice]."},
		{name: "whole words only", text: "noticeable notice", query: "notice", want: "noticeable [notice]"},
		{name: "stop words ignored", text: "the notice", query: "the notice", want: "the [notice]"},
		{name: "no terms", text: "plain text", query: "the", want: "plain text"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, highlightTerms(tc.text, queryTerms(tc.query), mark))
		})
	}
}

type unloadedSearcher struct{ stubSearcher }

func (unloadedSearcher) Loaded() bool { return false }

func TestModel_StatusReflectsMissingIndex(t *testing.T) {
	m := sized(New(&unloadedSearcher{}, "", 3))
	assert.Equal(t, disabledStatus, m.status)

	m = typeQuery(m, "vacation")
	assert.Equal(t, disabledStatus, m.status)
}

func TestModel_StatusReadyWhenLoaded(t *testing.T) {
	assert.Equal(t, readyStatus, New(&stubSearcher{}, "", 3).status)
}
