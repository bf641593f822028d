// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Segment is one increment of transcript text. Final segments are
// committed; partials are provisional and replaced by the next update.
type Segment struct {
	Text      string
	Final     bool
	StartTime float64
	EndTime   float64
}

// View renders incremental transcripts to a writer. Finals accumulate
// as committed lines; the current partial is rewritten in place.
type View struct {
	w       io.Writer
	finals  []string
	partial string
	lastLen int
	logger  *slog.Logger
}

func NewView(w io.Writer) *View {
	return &View{
		w:      w,
		logger: slog.With("component", "transcript_view"),
	}
}

// Run consumes segments until the channel closes or the context ends.
func (v *View) Run(ctx context.Context, segments <-chan Segment) {
	v.logger.Debug("transcript view started")
	defer v.logger.Debug("transcript view stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-segments:
			if !ok {
				return
			}
			v.Apply(seg)
		}
	}
}

// Apply renders one segment.
func (v *View) Apply(seg Segment) {
	if seg.Final {
		text := strings.TrimSpace(seg.Text)
		v.partial = ""
		if text == "" {
			return
		}
		v.finals = append(v.finals, text)
		v.rewrite(text, true)
		return
	}
	v.partial = strings.TrimSpace(seg.Text)
	v.rewrite(v.partial, false)
}

// rewrite repaints the current line, padding over leftovers from a
// longer previous partial.
func (v *View) rewrite(text string, commit bool) {
	pad := ""
	if n := v.lastLen - len(text); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	if commit {
		fmt.Fprintf(v.w, "\r%s%s\n", text, pad)
		v.lastLen = 0
		return
	}
	fmt.Fprintf(v.w, "\r%s%s", text, pad)
	v.lastLen = len(text)
}

// Transcript returns all committed text joined in order.
func (v *View) Transcript() string {
	return strings.Join(v.finals, " ")
}

// Partial returns the current provisional text.
func (v *View) Partial() string {
	return v.partial
}
