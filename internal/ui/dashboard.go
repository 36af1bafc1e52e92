package ui

import (
	"context"
	"fmt"

	termui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

// Dashboard is the full-screen view: a status header above a scrolling
// event list. q or Ctrl-C quits.
type Dashboard struct {
	header *widgets.Paragraph
	events *widgets.List
}

func NewDashboard() *Dashboard {
	header := widgets.NewParagraph()
	header.Title = "phoenixd relay"
	header.TextStyle = termui.NewStyle(termui.ColorGreen)

	events := widgets.NewList()
	events.Title = "events"
	events.WrapText = false

	return &Dashboard{header: header, events: events}
}

// Run takes over the terminal until ctx ends or the user quits. Quitting
// returns context.Canceled so the caller can stop its listener.
func (d *Dashboard) Run(ctx context.Context, feed *Feed) error {
	if err := termui.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer termui.Close()

	d.resize(termui.TerminalDimensions())
	d.draw(feed)

	input := termui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-feed.Changed():
			d.draw(feed)
		case e := <-input:
			switch e.ID {
			case "q", "<C-c>":
				return context.Canceled
			case "<Resize>":
				if r, ok := e.Payload.(termui.Resize); ok {
					d.resize(r.Width, r.Height)
					termui.Clear()
					d.draw(feed)
				}
			}
		}
	}
}

func (d *Dashboard) resize(width, height int) {
	d.header.SetRect(0, 0, width, 3)
	d.events.SetRect(0, 3, width, height)
}

func (d *Dashboard) draw(feed *Feed) {
	d.header.Text = feed.Summary()
	d.events.Rows = feed.Lines()
	if len(d.events.Rows) > 0 {
		d.events.ScrollBottom()
	}
	termui.Render(d.header, d.events)
}
