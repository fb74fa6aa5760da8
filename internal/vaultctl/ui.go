package vaultctl

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// formatter colours terminal output and falls back to plain decorations
// when colour is off.
type formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

func (f formatter) Sprint(a ...any) string {
	text := fmt.Sprint(a...)
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// noColor honours NO_COLOR (https://no-color.org/) and fatih/color's own
// terminal detection.
func noColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return color.NoColor
}

var (
	uiSuccess   = formatter{color.New(color.FgGreen), "", ""}
	uiError     = formatter{color.New(color.FgRed), "", ""}
	uiWarning   = formatter{color.New(color.FgYellow), "", ""}
	uiInfo      = formatter{color.New(color.FgCyan), "", ""}
	uiHighlight = formatter{color.New(color.FgCyan), "'", "'"}
	uiCode      = formatter{color.New(color.FgYellow), "`", "`"}
)
