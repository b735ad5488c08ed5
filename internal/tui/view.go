package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pumped-fn/mscan-go/heatmap"
	"github.com/pumped-fn/mscan-go/listing"
	"github.com/pumped-fn/mscan-go/testcase"
)

var (
	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	emptyCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("236"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	missingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	elidedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	detailStyle = lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(lipgloss.Color("245"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("238"))

	activePanelStyle = panelStyle.
				BorderForeground(lipgloss.Color("63"))
)

// heatPalette runs from no matched records to all records matched.
var heatPalette = []lipgloss.Color{"22", "28", "34", "100", "136", "172", "166", "160", "196"}

func heatColor(fraction float64) lipgloss.Color {
	i := int(fraction * float64(len(heatPalette)-1))
	return heatPalette[min(max(i, 0), len(heatPalette)-1)]
}

func (m AppModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.renderTabs())
	sb.WriteString("\n\n")

	var grid string
	if facet, ok := m.facet(); ok {
		if req, ok := m.bridge.DrawRequest(facet); ok {
			grid = renderFacet(req)
		}
	}
	if grid == "" {
		grid = missingStyle.Render("no records")
	}

	tableStyle := panelStyle
	if m.Focus == PanelListing {
		tableStyle = activePanelStyle
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		grid,
		"  ",
		tableStyle.Render(m.Table.View()),
	))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")
	sb.WriteString(m.Help.View(keys))
	return sb.String()
}

func (m AppModel) renderTabs() string {
	if len(m.Facets) == 0 {
		return tabStyle.Render("(no runs loaded)")
	}
	tabs := make([]string, len(m.Facets))
	for i, label := range m.Facets {
		if label == "" {
			label = "all"
		}
		if i == m.FacetIdx {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m AppModel) renderStatus() string {
	var parts []string
	if m.Status != nil {
		if n := len(m.Status.Pending); n > 0 {
			parts = append(parts, fmt.Sprintf("loading %d source(s)...", n))
		}
		failed := make([]string, 0, len(m.Status.Failed))
		for src := range m.Status.Failed {
			failed = append(failed, src)
		}
		sort.Strings(failed)
		for _, src := range failed {
			parts = append(parts, fmt.Sprintf("%s: %v", src, m.Status.Failed[src]))
		}
	}
	if m.Selection.Valid {
		facet, _ := m.facet()
		if req, ok := m.bridge.DrawRequest(facet); ok && m.Selection.Facet == facet {
			calls := req.Facet.Calls
			parts = append(parts, fmt.Sprintf("selected %s × %s",
				calls[m.Selection.Y], heatmap.ColumnLabel(calls, m.Selection.X)))
		}
	}
	table := m.bridge.Table()
	parts = append(parts, fmt.Sprintf("%d record(s)", table.Total))
	return statusStyle.Render(strings.Join(parts, " · "))
}

// renderFacet draws one facet's triangular grid the way the layout places
// it: column labels read top to bottom above the grid, row labels right
// aligned in the gutter, one two-column glyph per cell.
func renderFacet(req heatmap.DrawRequest) string {
	f := req.Facet
	calls := f.Calls
	n := len(calls)
	if n == 0 {
		return ""
	}

	labelWidth := int(req.Layout.LabelWidth)
	pad := int(req.Layout.Pad)
	cellWidth := max(int(req.Layout.CellWidth), 1)
	gutter := strings.Repeat(" ", labelWidth+pad)

	var sb strings.Builder
	for line := 0; line < labelWidth; line++ {
		sb.WriteString(gutter)
		for x := 0; x < n; x++ {
			label := []rune(heatmap.ColumnLabel(calls, x))
			if len(label) > labelWidth {
				label = label[:labelWidth]
			}
			ch := " "
			if i := line - (labelWidth - len(label)); i >= 0 {
				ch = string(label[i])
			}
			sb.WriteString(labelStyle.Render(ch))
			sb.WriteString(strings.Repeat(" ", cellWidth-1))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Repeat("\n", pad))

	for y := 0; y < n; y++ {
		label := calls[y]
		if lipgloss.Width(label) > labelWidth {
			label = string([]rune(label)[:labelWidth])
		}
		sb.WriteString(labelStyle.Width(labelWidth).Align(lipgloss.Right).Render(label))
		sb.WriteString(strings.Repeat(" ", pad))
		for x := 0; x <= n-1-y; x++ {
			sb.WriteString(renderCell(req, heatmap.Coord{X: x, Y: y}, cellWidth))
		}
		if y < n-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func renderCell(req heatmap.DrawRequest, c heatmap.Coord, width int) string {
	glyph := strings.Repeat("█", width)
	switch {
	case req.Selected != nil && *req.Selected == c:
		glyph = "<" + strings.Repeat("█", max(width-2, 0)) + ">"
	case req.Hover != nil && *req.Hover == c:
		glyph = "[" + strings.Repeat("█", max(width-2, 0)) + "]"
	}
	glyph = string([]rune(glyph)[:width])

	cells := req.Facet.CellsAt(c.X, c.Y)
	if len(cells) == 0 {
		return emptyCellStyle.Render(strings.Map(func(r rune) rune {
			if r == '█' {
				return '·'
			}
			return r
		}, glyph))
	}

	total, matched := 0, 0
	for _, cell := range cells {
		total += cell.Total
		matched += cell.Matched
	}
	style := lipgloss.NewStyle().Foreground(heatColor(float64(matched) / float64(total)))
	return style.Render(glyph)
}

// renderTable renders the listing model and returns the line of the row at
// cursor.
func renderTable(model listing.Model, cursor int, focused bool) (string, int) {
	widths := make([]int, len(model.Columns))
	for i, col := range model.Columns {
		widths[i] = lipgloss.Width(col)
	}
	for _, row := range model.Rows {
		for i, c := range row.Cells {
			widths[i] = max(widths[i], lipgloss.Width(c.Text))
		}
	}

	var sb strings.Builder
	header := make([]string, len(model.Columns))
	for i, col := range model.Columns {
		header[i] = headerStyle.Width(widths[i]).Render(col)
	}
	sb.WriteString(" ")
	sb.WriteString(strings.Join(header, " "))
	sb.WriteString("\n")

	line, cursorLine := 1, 1
	for r, row := range model.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			text := c.Text
			if c.Blank {
				text = ""
			}
			cells[i] = cellStyle(c).Width(widths[i]).Render(text)
		}
		text := strings.Join(cells, " ")
		if r == cursor {
			cursorLine = line
			if focused {
				text = cursorStyle.Render(">") + text
			} else {
				text = " " + text
			}
		} else {
			text = " " + text
		}
		sb.WriteString(text)
		sb.WriteString("\n")
		line++

		if row.Expanded {
			detail := detailStyle.Render(row.Detail)
			sb.WriteString(detail)
			sb.WriteString("\n")
			line += lipgloss.Height(detail)
		}
	}

	if model.More > 0 {
		sb.WriteString(missingStyle.Render(fmt.Sprintf("%d more...", model.More)))
		sb.WriteString("\n")
	}
	return sb.String(), cursorLine
}

func cellStyle(c listing.Cell) lipgloss.Style {
	switch c.Style {
	case listing.StyleMissing:
		return missingStyle
	case listing.StyleAlert:
		return alertStyle
	case listing.StyleElided:
		return elidedStyle
	}
	if c.Text == testcase.NA {
		return missingStyle
	}
	return lipgloss.NewStyle()
}
