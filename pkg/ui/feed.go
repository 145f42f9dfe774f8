package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-go-golems/damay/pkg/session"
)

// SnapshotFeed is a session.View that hands the latest snapshot to the TUI.
// Render never blocks: an undelivered snapshot is replaced by the newer one.
type SnapshotFeed struct {
	ch chan session.Snapshot
}

var _ session.View = (*SnapshotFeed)(nil)

func NewSnapshotFeed() *SnapshotFeed {
	return &SnapshotFeed{ch: make(chan session.Snapshot, 1)}
}

func (f *SnapshotFeed) Render(s session.Snapshot) {
	for {
		select {
		case f.ch <- s:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

type snapshotMsg session.Snapshot

func waitForSnapshot(f *SnapshotFeed) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-f.ch)
	}
}
