package heatmap

import "math"

// Default grid geometry, in surface units.
const (
	CellWidth  = 16
	CellHeight = 16
	Pad        = CellWidth / 2
	// Margin is the extra space a surface adds after the last cell.
	Margin = 5
)

// Layout places a facet's grid on a drawing surface. The grid origin sits
// after a gutter holding the axis labels; every renderer must use the same
// mapping so that pointer positions resolve to the cell that was drawn
// there.
type Layout struct {
	CellWidth  float64
	CellHeight float64
	Pad        float64
	// LabelWidth is the widest axis label as measured by the surface.
	LabelWidth float64
}

// NewLayout returns the default geometry for labels of the given width.
func NewLayout(labelWidth float64) Layout {
	return Layout{
		CellWidth:  CellWidth,
		CellHeight: CellHeight,
		Pad:        Pad,
		LabelWidth: labelWidth,
	}
}

// FitLabels returns a copy of l sized for the widest of calls as measured
// by measure.
func (l Layout) FitLabels(calls []string, measure func(string) float64) Layout {
	widest := 0.0
	for _, c := range calls {
		widest = math.Max(widest, measure(c))
	}
	l.LabelWidth = widest
	return l
}

// Origin returns the surface position of the grid's top-left corner.
func (l Layout) Origin() (x, y float64) {
	return l.LabelWidth + l.Pad, l.LabelWidth + l.Pad
}

// Size returns the surface size needed for a grid of n calls.
func (l Layout) Size(n int) (w, h float64) {
	ox, oy := l.Origin()
	return ox + l.CellWidth*float64(n) + Margin, oy + l.CellHeight*float64(n) + Margin
}

// CoordToCell maps a surface position to a grid coordinate of a grid with
// n calls. Positions left of or above the grid, or past the triangle's
// hypotenuse, map to nothing.
func (l Layout) CoordToCell(n int, px, py float64) (Coord, bool) {
	ox, oy := l.Origin()
	cx := int(math.Floor((px - ox) / l.CellWidth))
	cy := int(math.Floor((py - oy) / l.CellHeight))
	if cx < 0 || cy < 0 || cy > n-cx-1 {
		return Coord{}, false
	}
	return Coord{X: cx, Y: cy}, true
}

// CellOrigin returns the surface position of the top-left corner of the
// cell at c. It is the inverse of CoordToCell.
func (l Layout) CellOrigin(c Coord) (px, py float64) {
	ox, oy := l.Origin()
	return ox + float64(c.X)*l.CellWidth, oy + float64(c.Y)*l.CellHeight
}

// ColumnLabel returns the call labelling column x: columns run from the
// last call to the first.
func ColumnLabel(calls []string, x int) string {
	return calls[len(calls)-x-1]
}
