// Package screens implements the terminal screen of each wizard step.
package screens

import (
	"context"

	"github.com/jonaddams/document-generator/internal/steps"
	"github.com/jonaddams/document-generator/internal/tui"
	"github.com/jonaddams/document-generator/registry"
)

// All returns the five screens in step order.
func All(ctx context.Context, styles *tui.StyleSet, flow *steps.Flow, templates []registry.Template, outputDir string) []tui.Step {
	return []tui.Step{
		NewTemplateScreen(styles, flow, templates),
		NewCustomizeScreen(ctx, styles, flow),
		NewDataScreen(styles, flow),
		NewPreviewScreen(ctx, styles, flow),
		NewDownloadScreen(ctx, styles, flow, outputDir),
	}
}
