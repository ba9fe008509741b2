package analyzer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"convertflow/internal/domain"
)

// Inspection is what can be learned about a PDF without any external service.
type Inspection struct {
	PageCount int
	HasText   bool
}

// Inspector reads the local structure of a PDF.
type Inspector interface {
	Inspect(doc []byte) (*Inspection, error)
}

// InspectorFunc adapts a function to the Inspector interface.
type InspectorFunc func(doc []byte) (*Inspection, error)

func (f InspectorFunc) Inspect(doc []byte) (*Inspection, error) {
	return f(doc)
}

// textScanPages bounds how many pages are scanned for text operators.
const textScanPages = 5

// PDFInspector inspects documents with pdfcpu.
type PDFInspector struct{}

// Inspect validates the document, counts its pages and looks for text-showing
// operators in the first pages' content streams. Any read or validation
// failure is reported as domain.ErrDocumentUnreadable.
func (PDFInspector) Inspect(doc []byte) (*Inspection, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("analyzer.Inspect: empty document: %w", domain.ErrDocumentUnreadable)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(doc), conf)
	if err != nil {
		return nil, fmt.Errorf("analyzer.Inspect: %v: %w", err, domain.ErrDocumentUnreadable)
	}
	if ctx.PageCount < 1 {
		return nil, fmt.Errorf("analyzer.Inspect: document has no pages: %w", domain.ErrDocumentUnreadable)
	}

	insp := &Inspection{PageCount: ctx.PageCount}
	limit := ctx.PageCount
	if limit > textScanPages {
		limit = textScanPages
	}
	for i := 1; i <= limit; i++ {
		r, err := pdfcpu.ExtractPageContent(ctx, i)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if hasTextOperators(content) {
			insp.HasText = true
			break
		}
	}
	return insp, nil
}

// hasTextOperators reports whether a content stream contains a text object
// that actually shows glyphs.
func hasTextOperators(content []byte) bool {
	if !bytes.Contains(content, []byte("BT")) {
		return false
	}
	for _, op := range [][]byte{[]byte("Tj"), []byte("TJ"), []byte("'"), []byte("\"")} {
		if bytes.Contains(content, op) {
			return true
		}
	}
	return false
}
