package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pumped-fn/mscan-go/heatmap"
	"github.com/pumped-fn/mscan-go/listing"
)

// MsgRefresh tells the model the stages have produced new output.
type MsgRefresh struct{}

// Bridge is the drawing surface and listing consumer of a terminal
// session. Stages call it inside their turn; it records what they produced
// and wakes the program without blocking, so the program can pull the new
// state on its own goroutine.
type Bridge struct {
	mu     sync.Mutex
	draws  map[string]heatmap.DrawRequest
	table  listing.Model
	notify chan struct{}
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{
		draws:  make(map[string]heatmap.DrawRequest),
		notify: make(chan struct{}, 1),
	}
}

// Draw records the latest paint request of a facet.
func (b *Bridge) Draw(req heatmap.DrawRequest) {
	b.mu.Lock()
	b.draws[req.Facet.Label] = req
	b.mu.Unlock()
	b.Notify()
}

// Show records the latest listing model.
func (b *Bridge) Show(m listing.Model) {
	b.mu.Lock()
	b.table = m
	b.mu.Unlock()
	b.Notify()
}

// Notify wakes a pending Wait. Notifications coalesce.
func (b *Bridge) Notify() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Wait returns a command delivering MsgRefresh after the next notification.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		<-b.notify
		return MsgRefresh{}
	}
}

// DrawRequest returns the latest request for a facet.
func (b *Bridge) DrawRequest(label string) (heatmap.DrawRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.draws[label]
	return req, ok
}

// Table returns the latest listing model.
func (b *Bridge) Table() listing.Model {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table
}

// Prune forgets facets not in labels.
func (b *Bridge) Prune(labels []string) {
	keep := make(map[string]bool, len(labels))
	for _, l := range labels {
		keep[l] = true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for l := range b.draws {
		if !keep[l] {
			delete(b.draws, l)
		}
	}
}

// GridLayout returns the terminal geometry of a heatmap: two columns and
// one line per cell, axis labels as wide as the widest of calls.
func GridLayout(calls []string) heatmap.Layout {
	l := heatmap.Layout{CellWidth: 2, CellHeight: 1, Pad: 1}
	return l.FitLabels(calls, func(s string) float64 {
		return float64(lipgloss.Width(s))
	})
}
