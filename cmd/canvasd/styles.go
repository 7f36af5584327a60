package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"promptcanvas/internal/scene"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// printStatus writes a one-line summary of a turn result.
func printStatus(w io.Writer, r scene.TurnResult) {
	if r.OK() {
		fmt.Fprintln(w, successStyle.Render("✓ success")+" "+
			mutedStyle.Render(fmt.Sprintf("%d action(s)", len(r.Actions))))
		return
	}
	fmt.Fprintln(w, errorStyle.Render("✗ "+string(r.Error)))
}
