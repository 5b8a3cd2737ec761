package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Printer renders the status lines of the commands. Colors follow one
// palette: green for success, red for errors, yellow for warnings, white for
// neutral notes, blue/cyan alternating for listings.
type Printer struct {
	w io.Writer

	success   *color.Color
	errorC    *color.Color
	warning   *color.Color
	neutral   *color.Color
	alternate [2]*color.Color
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:       w,
		success: color.New(color.FgGreen),
		errorC:  color.New(color.FgRed),
		warning: color.New(color.FgYellow),
		neutral: color.New(color.FgWhite),
		alternate: [2]*color.Color{
			color.New(color.FgBlue),
			color.New(color.FgCyan),
		},
	}
}

func (p *Printer) Success(format string, args ...any) {
	_, _ = p.success.Fprintln(p.w, fmt.Sprintf(format, args...))
}

func (p *Printer) Error(format string, args ...any) {
	_, _ = p.errorC.Fprintln(p.w, fmt.Sprintf(format, args...))
}

func (p *Printer) Warning(format string, args ...any) {
	_, _ = p.warning.Fprintln(p.w, fmt.Sprintf(format, args...))
}

func (p *Printer) Neutral(format string, args ...any) {
	_, _ = p.neutral.Fprintln(p.w, fmt.Sprintf(format, args...))
}

// Alternate prints one listing line, alternating colors by index.
func (p *Printer) Alternate(index int, text string) {
	_, _ = p.alternate[index%2].Fprintln(p.w, text)
}
