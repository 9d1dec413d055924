// Package pipeline runs document generation as a sequence of stages:
// export the template, populate it with data, import the result and export
// the final PDF.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/logging"
)

// Stage is a single unit of work in a generation pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, gc *GenerationContext) error
}

// Pipeline executes a sequence of stages in order.
type Pipeline struct {
	stages []Stage
	logger logging.Logger
}

// New creates a Pipeline from the given stages.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: logging.Nop()}
}

// Document returns the pipeline that turns a template and data into an
// imported document: export → populate → import.
func Document() *Pipeline {
	return New(&ExportTemplateStage{}, &PopulateStage{}, &ImportStage{})
}

// Full returns Document followed by PDF export.
func Full() *Pipeline {
	return New(&ExportTemplateStage{}, &PopulateStage{}, &ImportStage{}, &ExportPDFStage{})
}

// WithLogger sets the logger used to report stage timings.
func (p *Pipeline) WithLogger(l logging.Logger) *Pipeline {
	if l != nil {
		p.logger = l
	}
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes each stage sequentially. It stops on the first error, which
// is reported as GenerationFailed naming the stage.
func (p *Pipeline) Run(ctx context.Context, gc *GenerationContext) error {
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline cancelled before stage %s: %w", s.Name(), err)
		}
		start := time.Now()
		if err := s.Execute(ctx, gc); err != nil {
			p.logger.Warn("pipeline stage failed", map[string]any{"stage": s.Name(), "error": err})
			return fault.New(fault.GenerationFailed, "pipeline."+s.Name(), err)
		}
		p.logger.Debug("pipeline stage done", map[string]any{
			"stage":    s.Name(),
			"duration": time.Since(start).String(),
		})
	}
	return nil
}
