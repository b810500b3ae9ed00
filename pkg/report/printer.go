package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes stage progress to out and diagnostics to errOut. Colors
// are used only when the writer is a terminal.
type Printer struct {
	out    io.Writer
	errOut io.Writer

	stageStyle lipgloss.Style
	labelStyle lipgloss.Style
	okStyle    lipgloss.Style
	warnStyle  lipgloss.Style
	errStyle   lipgloss.Style
}

// NewPrinter creates a printer.
func NewPrinter(out, errOut io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	er := lipgloss.NewRenderer(errOut)
	return &Printer{
		out:        out,
		errOut:     errOut,
		stageStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		labelStyle: r.NewStyle().Faint(true),
		okStyle:    r.NewStyle().Foreground(lipgloss.Color("2")),
		warnStyle:  r.NewStyle().Foreground(lipgloss.Color("214")),
		errStyle:   er.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// Discard returns a printer that drops everything.
func Discard() *Printer {
	return NewPrinter(io.Discard, io.Discard)
}

// Count is a labeled number on a stage line.
type Count struct {
	Label string
	Value int
}

// Stage prints "<stage>: label=value ...".
func (p *Printer) Stage(stage string, counts ...Count) {
	line := p.stageStyle.Render(stage + ":")
	for _, c := range counts {
		line += " " + p.labelStyle.Render(c.Label+"=") + fmt.Sprint(c.Value)
	}
	fmt.Fprintln(p.out, line)
}

// Note prints a free-form line under a stage.
func (p *Printer) Note(stage, format string, args ...any) {
	fmt.Fprintln(p.out, p.stageStyle.Render(stage+":")+" "+fmt.Sprintf(format, args...))
}

// Mirrored prints the outcome of one mirror.
func (p *Printer) Mirrored(number int, outcome, detail string) {
	style := p.okStyle
	if outcome != "created" {
		style = p.warnStyle
	}
	fmt.Fprintf(p.out, "  #%d %s %s\n", number, style.Render(outcome), detail)
}

// Failure prints a prefixed diagnostic to the error writer.
func (p *Printer) Failure(stage string, err error) {
	fmt.Fprintf(p.errOut, "%s %s: %v\n", p.errStyle.Render("error:"), stage, err)
}

// Summary prints the final totals of a completed run.
func (p *Printer) Summary(r *Result) {
	c := r.Counts
	p.Stage("done",
		Count{"mirrored", c.Mirrored},
		Count{"identical", c.Identical},
		Count{"healed", c.Healed},
		Count{"failed", c.Failed},
	)
}
