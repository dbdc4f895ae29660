// Package ui renders terminal output for the boorudl CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Logo printed by the CLI banner
const Logo = `
  ┌─┐┌─┐┌─┐┬─┐┬ ┬  ┌┬┐┬
  ├┴┐│ ││ │├┬┘│ │   │││
  └─┘└─┘└─┘┴└─└─┘  ─┴┘┴─┘
`

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	orange  = lipgloss.Color("#FF6700")
	red     = lipgloss.Color("#FF0000")
	dim     = lipgloss.Color("#B0B0B0")

	labelStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(yellow)
	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(orange).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)
	accentStyle  = lipgloss.NewStyle().Foreground(magenta)
	dimStyle     = lipgloss.NewStyle().Foreground(dim).Faint(true)
)

// Out is where the Print helpers write
var Out io.Writer = os.Stdout

// Color helpers for inline use
var (
	Cyan    = labelStyle.Render
	Yellow  = valueStyle.Render
	Green   = successStyle.Render
	Red     = errorStyle.Render
	Magenta = accentStyle.Render
	Dim     = dimStyle.Render
)

// PrintLogo prints the banner
func PrintLogo() {
	fmt.Fprint(Out, labelStyle.Render(Logo))
	fmt.Fprintln(Out)
}

// PrintError prints an error message in red
func PrintError(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(Out, errorStyle.Render(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Out, successStyle.Render(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	fmt.Fprintln(Out, warningStyle.Render(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Out, accentStyle.Render(msg))
}
