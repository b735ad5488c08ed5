// Package tui is the terminal front end of a viewer session: the heatmap
// of the selected run beside the listing of the records reaching it.
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	mscan "github.com/pumped-fn/mscan-go"
	"github.com/pumped-fn/mscan-go/dataset"
	"github.com/pumped-fn/mscan-go/heatmap"
	"github.com/pumped-fn/mscan-go/session"
)

// Panel names the panel receiving navigation keys.
type Panel int

const (
	PanelHeatmap Panel = iota
	PanelListing
)

// headerLines is the height of the facet tab line and the blank line under
// it; the grid is drawn right below.
const headerLines = 2

// AppModel holds the TUI state.
type AppModel struct {
	sess   *session.Session
	bridge *Bridge
	stop   func()

	// Data pulled from the session after every refresh
	Facets    []string
	Selection heatmap.Selection
	Status    *dataset.LoadStatus

	// UI State
	Focus      Panel
	FacetIdx   int
	Cursor     heatmap.Coord
	RowIdx     int
	WindowSize tea.WindowSizeMsg
	ShowHelp   bool

	// Components
	Table viewport.Model
	Help  help.Model
}

// New creates the model for a session whose heatmap draws on bridge and
// whose listing shows on bridge.
func New(sess *session.Session, bridge *Bridge) AppModel {
	stop := mscan.Accessor(sess.Scope, sess.Loader.Status()).Watch(func(*dataset.LoadStatus) {
		bridge.Notify()
	})
	return AppModel{
		sess:   sess,
		bridge: bridge,
		stop:   stop,
		Status: &dataset.LoadStatus{},
		Table:  viewport.New(80, 20),
		Help:   help.New(),
	}
}

func (m AppModel) Init() tea.Cmd {
	m.bridge.Notify()
	return m.bridge.Wait()
}

// Close stops listening to load progress.
func (m AppModel) Close() {
	if m.stop != nil {
		m.stop()
	}
}

// facet returns the label of the facet on screen.
func (m AppModel) facet() (string, bool) {
	if len(m.Facets) == 0 {
		return "", false
	}
	return m.Facets[m.FacetIdx], true
}

// pull copies the session state the view needs.
func (m *AppModel) pull() {
	var facets []string
	m.sess.Scope.Turn(func() {
		if res := m.sess.Heatmap.Result(); res != nil {
			for _, f := range res.Facets {
				facets = append(facets, f.Label)
			}
		}
		m.Selection = m.sess.Heatmap.Selection()
		m.Status = m.sess.Loader.Status().Peek()
	})
	m.Facets = facets
	m.bridge.Prune(facets)

	if m.FacetIdx >= len(m.Facets) {
		m.FacetIdx = 0
	}
	if rows := len(m.bridge.Table().Rows); m.RowIdx >= rows {
		m.RowIdx = max(rows-1, 0)
	}
}

// Run drives sess in the terminal until the user quits.
func Run(sess *session.Session, bridge *Bridge) error {
	m := New(sess, bridge)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	_, err := p.Run()
	return err
}
