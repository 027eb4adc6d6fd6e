package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// Status lines go to stderr so reports and listings on stdout stay
// pipeable (e.g. "duplicates analyze > report.txt").
func statusLine(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { statusLine(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { statusLine(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { statusLine(colorYellow, "⚠", format, args...) }

func printStep(format string, args ...any) { statusLine(colorCyan, "→", format, args...) }
