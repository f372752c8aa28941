package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorCyan  = "\033[36m"
	colorDim   = "\033[2m"
)

// colorizer adds ANSI colours only when writing to a terminal.
type colorizer struct {
	enabled bool
}

func newColorizer(w io.Writer) colorizer {
	f, ok := w.(*os.File)
	if !ok {
		return colorizer{}
	}
	if os.Getenv("NO_COLOR") != "" {
		return colorizer{}
	}
	return colorizer{enabled: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
}

func (c colorizer) wrap(code, s string) string {
	if !c.enabled {
		return s
	}
	return code + s + colorReset
}

func (c colorizer) header(s string) string { return c.wrap(colorCyan, s) }
func (c colorizer) dim(s string) string    { return c.wrap(colorDim, s) }
