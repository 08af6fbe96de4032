// ABOUTME: Console reporter — one line per completed task plus the final tally
// ABOUTME: Lines stream in completion order; success lines carry a short payload summary

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/2389/tendril-collect/internal/collector"
)

// Reporter writes human-readable progress to a single writer.
type Reporter struct {
	w     io.Writer
	green *color.Color
	red   *color.Color
}

// New creates a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{
		w:     w,
		green: color.New(color.FgGreen),
		red:   color.New(color.FgRed),
	}
}

// Resuming announces how many agents a resumed run already has.
func (r *Reporter) Resuming(already int) {
	fmt.Fprintf(r.w, "Resuming: %d agents already collected\n", already)
}

// Starting announces the batch size and pool width.
func (r *Reporter) Starting(tasks, workers int) {
	fmt.Fprintf(r.w, "Collecting from %d agents (max %d parallel)...\n", tasks, workers)
}

// TaskDone prints one line for a completed task, in arrival order.
func (r *Reporter) TaskDone(res collector.Result, done, total int) {
	if res.OK() {
		r.green.Fprintf(r.w, "  [%d/%d] %s: OK%s\n", done, total, res.Hostname, payloadSummary(res.Payload))
		return
	}
	r.red.Fprintf(r.w, "  [%d/%d] %s: FAILED (%v)\n", done, total, res.Hostname, res.Err)
}

// Summary prints the final tally and the checkpoint location.
func (r *Reporter) Summary(sum collector.Summary, checkpointPath string) {
	fmt.Fprintf(r.w, "\nDone: %d collected, %d failed, %d total\n", sum.Succeeded, sum.Failed, sum.Total)
	fmt.Fprintf(r.w, "Output: %s\n", checkpointPath)
}

// payloadSummary pulls the OS caption and application tag out of a
// collected payload for the progress line. Missing fields just shorten
// the annotation; the payload itself is opaque.
func payloadSummary(payload json.RawMessage) string {
	var fields struct {
		OSCaption      string `json:"os_caption"`
		TagApplication string `json:"tag_application"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}

	caption := fields.OSCaption
	if len(caption) > 30 {
		caption = caption[:30]
	}

	switch {
	case caption != "" && fields.TagApplication != "":
		return fmt.Sprintf(" (%s, %s)", caption, fields.TagApplication)
	case caption != "":
		return fmt.Sprintf(" (%s)", caption)
	case fields.TagApplication != "":
		return fmt.Sprintf(" (%s)", fields.TagApplication)
	default:
		return ""
	}
}
