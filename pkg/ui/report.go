package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/muesli/reflow/indent"
)

const outputIndent = 4

// Reporter prints build outcomes and app lifecycle transitions for the operator.
// It is safe for concurrent use.
type Reporter struct {
	mu    sync.Mutex
	w     io.Writer
	color bool

	ok    lipgloss.Style
	fail  lipgloss.Style
	info  lipgloss.Style
	block lipgloss.Style
}

// NewReporter returns a Reporter writing to w. Styling is applied only when
// ColorEnabled(w) is true.
func NewReporter(w io.Writer) *Reporter {
	r := &Reporter{w: w, color: ColorEnabled(w)}
	if r.color {
		scheme := GetFangScheme()
		r.ok = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
		r.fail = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
		r.info = lipgloss.NewStyle().Foreground(scheme.Flag)
		_, r.block = GetBlockStyles()
	}

	return r
}

func (r *Reporter) render(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func (r *Reporter) println(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.w, line)
}

// BuildSucceeded reports a successful compile of target.
func (r *Reporter) BuildSucceeded(target string, took time.Duration) {
	r.println(fmt.Sprintf("%s %s built in %s",
		r.render(r.ok, "✓"), target, took.Round(time.Millisecond)))
}

// BuildFailed reports a failed compile of target along with whatever the
// build printed.
func (r *Reporter) BuildFailed(target, reason, output string) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s build failed: %s", r.render(r.fail, "✗"), target, reason)
	r.appendOutput(&b, output)
	r.println(b.String())
}

// BuildOutput prints the output of a successful build.
func (r *Reporter) BuildOutput(output string) {
	var b strings.Builder
	r.appendOutput(&b, output)
	if b.Len() > 0 {
		r.println(strings.TrimPrefix(b.String(), "\n"))
	}
}

func (r *Reporter) appendOutput(b *strings.Builder, output string) {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return
	}
	b.WriteString("\n")
	if r.color {
		b.WriteString(r.block.Render(output))
	} else {
		b.WriteString(indent.String(output, outputIndent))
	}
}

// Info reports a lifecycle message.
func (r *Reporter) Info(format string, args ...any) {
	r.println(r.render(r.info, "• ") + fmt.Sprintf(format, args...))
}
