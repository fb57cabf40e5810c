package model

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Source is anything that can produce the raw bytes of an input image.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// InputItem pairs a byte source with the slash-separated logical path it
// will have inside the archive. Paths are unique within a batch.
type InputItem struct {
	Source Source
	Path   string
}

// EncodedResult is the watermarked output of a single item.
type EncodedResult struct {
	Path     string
	MIMEType string
	Data     []byte
}

// State is the lifecycle state of a batch run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Progress is an immutable snapshot of a run, published after every item.
// Cancelled is set together with StateFailed when the run was stopped
// by cancellation instead of by failing items.
type Progress struct {
	RunID     string `json:"run_id"`
	State     State  `json:"state"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// Done reports how many items have finished, successfully or not.
func (p Progress) Done() int { return p.Completed + p.Failed }

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d", p.Completed, p.Total)
}

// Report lists the outcome of every item of a run.
type Report struct {
	Succeeded  []string  `json:"succeeded"`
	Failed     []Failure `json:"failed"`
	Duplicates []string  `json:"duplicates,omitempty"`
	Cancelled  bool      `json:"cancelled"`
}

// Partial reports whether some, but not all, items succeeded.
func (r Report) Partial() bool {
	return len(r.Succeeded) > 0 && len(r.Failed) > 0
}

// Summary renders a human-readable account of the run.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d succeeded, %d failed", len(r.Succeeded), len(r.Failed))
	if r.Cancelled {
		b.WriteString(" (cancelled)")
	}
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "\n  %s: %s", f.Path, f.Reason)
	}
	return b.String()
}
