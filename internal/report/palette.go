package report

import (
	"os"

	"github.com/woozymasta/mcpanel/internal/logger"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiCyan   = "\x1b[36m"
)

// Palette wraps text in ANSI colours when enabled.
type Palette struct {
	Enabled bool
}

// PaletteFor enables colours when f is a terminal and NO_COLOR is unset.
func PaletteFor(f *os.File) Palette {
	return Palette{Enabled: os.Getenv("NO_COLOR") == "" && logger.IsTerminal(f)}
}

func (p Palette) wrap(code, s string) string {
	if !p.Enabled || s == "" {
		return s
	}
	return code + s + ansiReset
}

// Bold renders s in bold.
func (p Palette) Bold(s string) string { return p.wrap(ansiBold, s) }

// Red renders s in red.
func (p Palette) Red(s string) string { return p.wrap(ansiRed, s) }

// Green renders s in green.
func (p Palette) Green(s string) string { return p.wrap(ansiGreen, s) }

// Yellow renders s in yellow.
func (p Palette) Yellow(s string) string { return p.wrap(ansiYellow, s) }

// Blue renders s in blue.
func (p Palette) Blue(s string) string { return p.wrap(ansiBlue, s) }

// Cyan renders s in cyan.
func (p Palette) Cyan(s string) string { return p.wrap(ansiCyan, s) }
