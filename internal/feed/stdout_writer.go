// Writer implementation printing points to STDOUT
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	tsStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	routeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	coordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
)

// StdoutWriter prints each sent feature. On a terminal it prints one
// colourised line per point; otherwise it prints the feature JSON exactly as
// it would be posted to the store.
type StdoutWriter struct {
	out      io.Writer
	colorize bool
}

// NewStdoutWriter creates a StdoutWriter on os.Stdout, colourising when
// STDOUT is a terminal.
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{out: os.Stdout, colorize: term.IsTerminal(int(os.Stdout.Fd()))}
}

// Write outputs a single point.
func (w *StdoutWriter) Write(_ context.Context, p Point) error {
	if !w.colorize {
		data, err := json.Marshal(p.Feature)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w.out, string(data))
		return err
	}
	coords := "-"
	if lon, lat, ok := p.Feature.Point(); ok {
		coords = fmt.Sprintf("%.6f,%.6f", lon, lat)
	}
	_, err := fmt.Fprintf(w.out, "%s %s %s #%d %s\n",
		tsStyle.Render(p.SentAt.Format(time.RFC3339Nano)),
		passStyle.Render(fmt.Sprintf("pass=%d", p.Pass)),
		routeStyle.Render(p.Route),
		p.Index,
		coordStyle.Render(coords),
	)
	return err
}
