package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pumped-fn/mscan-go/heatmap"
)

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.resize()
		return m, nil

	case MsgRefresh:
		m.pull()
		m.resize()
		m.syncTable()
		return m, m.bridge.Wait()

	case tea.MouseMsg:
		facet, ok := m.facet()
		if !ok {
			return m, nil
		}
		px, py := float64(msg.X), float64(msg.Y-headerLines)
		switch {
		case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
			m.Focus = PanelHeatmap
			m.sess.Heatmap.SelectAt(facet, px, py)
		case msg.Action == tea.MouseActionMotion:
			m.sess.Heatmap.HoverAt(facet, px, py)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.ShowHelp = !m.ShowHelp
			m.Help.ShowAll = m.ShowHelp
			return m, nil
		case key.Matches(msg, keys.Focus):
			if m.Focus == PanelHeatmap {
				m.Focus = PanelListing
			} else {
				m.Focus = PanelHeatmap
			}
			m.syncTable()
			return m, nil
		case key.Matches(msg, keys.NextFacet):
			m.switchFacet(1)
			return m, nil
		case key.Matches(msg, keys.PrevFacet):
			m.switchFacet(-1)
			return m, nil
		case key.Matches(msg, keys.More):
			m.sess.Listing.More()
			return m, nil
		case key.Matches(msg, keys.Clear):
			m.sess.Heatmap.ClearSelection()
			return m, nil
		}

		if m.Focus == PanelHeatmap {
			m.updateHeatmap(msg)
		} else {
			m.updateListing(msg)
		}
	}

	return m, nil
}

func (m *AppModel) updateHeatmap(msg tea.KeyMsg) {
	facet, ok := m.facet()
	if !ok {
		return
	}
	req, ok := m.bridge.DrawRequest(facet)
	if !ok {
		return
	}
	n := len(req.Facet.Calls)

	c := m.Cursor
	switch {
	case key.Matches(msg, keys.Select):
		m.sess.Heatmap.Select(facet, c.X, c.Y)
		return
	case key.Matches(msg, keys.Left):
		c.X--
	case key.Matches(msg, keys.Right):
		c.X++
	case key.Matches(msg, keys.Up):
		c.Y--
	case key.Matches(msg, keys.Down):
		c.Y++
	default:
		return
	}
	if !req.Facet.InGrid(c.X, c.Y) {
		return
	}
	m.Cursor = clampCursor(c, n)
	m.sess.Heatmap.Hover(facet, m.Cursor.X, m.Cursor.Y)
}

func clampCursor(c heatmap.Coord, n int) heatmap.Coord {
	c.X = min(max(c.X, 0), max(n-1, 0))
	c.Y = min(max(c.Y, 0), max(n-1-c.X, 0))
	return c
}

func (m *AppModel) updateListing(msg tea.KeyMsg) {
	rows := m.bridge.Table().Rows
	switch {
	case key.Matches(msg, keys.Up):
		if m.RowIdx > 0 {
			m.RowIdx--
		}
	case key.Matches(msg, keys.Down):
		if m.RowIdx < len(rows)-1 {
			m.RowIdx++
		}
	case key.Matches(msg, keys.Select):
		if m.RowIdx < len(rows) {
			m.sess.Listing.Toggle(rows[m.RowIdx].ID)
		}
		return
	default:
		return
	}
	m.syncTable()
}

func (m *AppModel) switchFacet(step int) {
	if len(m.Facets) == 0 {
		return
	}
	m.FacetIdx = (m.FacetIdx + step + len(m.Facets)) % len(m.Facets)
	m.Cursor = heatmap.Coord{}
	m.resize()
}

// resize fits the listing viewport beside the heatmap.
func (m *AppModel) resize() {
	gridWidth := 0
	if facet, ok := m.facet(); ok {
		if req, ok := m.bridge.DrawRequest(facet); ok {
			w, _ := req.Layout.Size(len(req.Facet.Calls))
			gridWidth = int(w)
		}
	}
	m.Table.Width = max(m.WindowSize.Width-gridWidth-4, 20)
	m.Table.Height = max(m.WindowSize.Height-headerLines-3, 5)
}

func (m *AppModel) syncTable() {
	content, line := renderTable(m.bridge.Table(), m.RowIdx, m.Focus == PanelListing)
	m.Table.SetContent(content)

	switch {
	case line < m.Table.YOffset:
		m.Table.SetYOffset(line)
	case line >= m.Table.YOffset+m.Table.Height:
		m.Table.SetYOffset(line - m.Table.Height + 1)
	}
}
