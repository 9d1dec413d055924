package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ExportTemplateStage exports the template document as DOCX.
type ExportTemplateStage struct{}

func (s *ExportTemplateStage) Name() string { return "export-template" }

func (s *ExportTemplateStage) Execute(ctx context.Context, gc *GenerationContext) error {
	if gc.Template == nil {
		return errors.New("no template document")
	}
	docx, err := gc.Template.ExportDOCX(ctx)
	if err != nil {
		return fmt.Errorf("exporting template: %w", err)
	}
	gc.TemplateDOCX = docx
	return nil
}

// PopulateStage merges the data into the exported template.
type PopulateStage struct{}

func (s *PopulateStage) Name() string { return "populate" }

func (s *PopulateStage) Execute(ctx context.Context, gc *GenerationContext) error {
	if gc.Populator == nil {
		return errors.New("no populator")
	}
	if len(gc.Data) == 0 {
		return errors.New("no data")
	}
	docx, err := gc.Populator.Populate(ctx, gc.TemplateDOCX, gc.Data)
	if err != nil {
		return err
	}
	gc.PopulatedDOCX = docx
	return nil
}

// ImportStage loads the populated DOCX into the session.
type ImportStage struct{}

func (s *ImportStage) Name() string { return "import" }

func (s *ImportStage) Execute(ctx context.Context, gc *GenerationContext) error {
	if gc.Session == nil {
		return errors.New("no engine session")
	}
	doc, err := gc.Session.ImportDOCX(ctx, gc.PopulatedDOCX)
	if err != nil {
		return fmt.Errorf("importing populated document: %w", err)
	}
	gc.Document = doc
	return nil
}

// ExportPDFStage exports the imported document as PDF.
type ExportPDFStage struct{}

func (s *ExportPDFStage) Name() string { return "export-pdf" }

func (s *ExportPDFStage) Execute(ctx context.Context, gc *GenerationContext) error {
	if gc.Document == nil {
		return errors.New("no generated document")
	}
	pdf, err := gc.Document.ExportPDF(ctx)
	if err != nil {
		return fmt.Errorf("exporting pdf: %w", err)
	}
	gc.PDF = pdf
	return nil
}
