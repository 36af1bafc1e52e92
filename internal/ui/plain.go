package ui

import (
	"context"
	"fmt"
	"io"
)

// Plain prints each new line as it arrives, for terminals without a TTY and
// for piping into other tools.
type Plain struct {
	out io.Writer
}

func NewPlain(out io.Writer) *Plain { return &Plain{out: out} }

// Run blocks until ctx is cancelled.
func (p *Plain) Run(ctx context.Context, feed *Feed) error {
	mark := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-feed.Changed():
		}

		var lines []string
		lines, mark = feed.Since(mark)
		for _, l := range lines {
			if _, err := fmt.Fprintln(p.out, l); err != nil {
				return fmt.Errorf("plain output: %w", err)
			}
		}
	}
}
