package port

import (
	"context"

	"convertflow/internal/domain"
)

// ConvertInput carries the data needed to run a conversion.
type ConvertInput struct {
	FileBytes    []byte
	DocumentName string
	Format       domain.OutputFormat
	PageCount    int
}

// ConvertOutput is what an engine hands back after a successful conversion.
type ConvertOutput struct {
	PagesProcessed int
	Artifact       []byte
	ContentType    string
	Extension      string
	Layouts        []domain.RenderedLayout
}

// ConversionEngine abstracts one external conversion backend.
type ConversionEngine interface {
	Name() domain.Engine
	Convert(ctx context.Context, input ConvertInput) (*ConvertOutput, error)
}
