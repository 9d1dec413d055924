package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jonaddams/document-generator/internal/tui/components"
	"github.com/jonaddams/document-generator/internal/wizard"
)

// Step is the screen of one wizard stage.
type Step interface {
	// Title returns the step's display title.
	Title() string
	// Icon returns the step's icon/emoji.
	Icon() string
	// Init runs each time the step becomes the current one.
	Init() tea.Cmd
	// Update handles messages and returns the updated step and command.
	Update(msg tea.Msg) (Step, tea.Cmd)
	// View renders the step content.
	View(width int) string
	// Summary returns a one-line summary for the collapsed view.
	Summary() string
	// Hints returns the step's own keyboard shortcuts.
	Hints() []components.KeyBinding
}

// Capturer is implemented by steps that sometimes need esc for themselves,
// such as while editing a source.
type Capturer interface {
	Capturing() bool
}

// RenderProgress renders the step list: completed steps with a check badge
// and their summary, the active step with a divider, pending steps dimmed.
func RenderProgress(descs []wizard.StepDescriptor, steps []Step, current int, styles *StyleSet, width int) string {
	var out string

	for i, d := range descs {
		title := d.Title
		switch {
		case i == current:
			numStr := fmt.Sprintf(" %d ", i+1)
			badge := styles.StepBadgeActive.Render(numStr)
			dividerLen := width - 10 - lipgloss.Width(numStr) - lipgloss.Width(title)
			if dividerLen < 2 {
				dividerLen = 2
			}
			divider := styles.DimTxt.Render(" " + strings.Repeat("─", dividerLen))
			out += fmt.Sprintf("  %s  %s%s\n", badge, styles.PrimaryTxt.Bold(true).Render(title), divider)
		case d.IsComplete:
			badge := styles.StepBadgeComplete.Render(" ✓ ")
			out += fmt.Sprintf("  %s  %s\n", badge, styles.PrimaryTxt.Render(title))
			if i < len(steps) && i < current {
				if s := steps[i].Summary(); s != "" {
					out += fmt.Sprintf("       %s\n", styles.SecondaryTxt.Render(s))
				}
			}
		default:
			badge := styles.StepBadgePending.Render(fmt.Sprintf(" %d ", i+1))
			out += fmt.Sprintf("  %s  %s\n", badge, styles.DimTxt.Render(title))
		}
	}

	return out
}

// StepIndicator returns the "Step N of M" label.
func StepIndicator(current, total int) string {
	return fmt.Sprintf("Step %d of %d", current+1, total)
}
