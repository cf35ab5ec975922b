package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// gaugeBar renders a diversity value as a 20-cell bar, red once any cell is filled.
func gaugeBar(value float64) string {
	const cells = 20
	filled := int(value / 100 * cells)
	filled = max(0, min(cells, filled))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", cells-filled)
	if filled == 0 {
		return colorize(colorDim, bar)
	}
	return colorize(colorRed, bar)
}

// printKeyword writes one keyword line: a marker for completed inserts, the
// label and its phase.
func printKeyword(w io.Writer, label, phase string, completed bool) {
	marker := " "
	if completed {
		marker = colorize(colorGreen, "✓")
	}
	fmt.Fprintf(w, "%s %s  %s\n", marker, label, colorize(colorDim, phase))
}
