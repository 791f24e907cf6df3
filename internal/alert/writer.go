package alert

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterSink prints alerts as plain text. It is used for dry runs and
// when no webhook is configured.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Send(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s [%s] %s %s (%s)\n  %s\n  why: %s\n  %s  detected %s\n",
		Emoji(r.Priority), r.Priority, r.Company, r.Category, r.AssetLabel,
		r.Summary, r.Rationale, r.URL, r.Timestamp.UTC().Format(timestampLayout))
	return err
}

func (s *WriterSink) SendDigest(_ context.Context, d Digest) error {
	if len(d.Records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "📊 %s: %d change(s)\n", d.Title, len(d.Records)); err != nil {
		return err
	}
	for _, g := range d.Groups() {
		if _, err := fmt.Fprintf(s.w, "%s (%d)\n", g.Company, len(g.Records)); err != nil {
			return err
		}
		for _, r := range g.Records {
			if _, err := fmt.Fprintf(s.w, "  %s %s: %s <%s>\n", Emoji(r.Priority), r.Category, r.Summary, r.URL); err != nil {
				return err
			}
		}
	}
	return nil
}
