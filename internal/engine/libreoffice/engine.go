// Package libreoffice converts text-based PDFs with a local headless soffice.
package libreoffice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/engine"
	"convertflow/internal/port"
	"convertflow/internal/render"
)

// Engine implements port.ConversionEngine by shelling out to soffice.
type Engine struct {
	binary string
}

// NewEngine creates a LibreOffice engine from config.
func NewEngine(cfg *config.EngineConfig) *Engine {
	bin := cfg.Binary
	if bin == "" {
		bin = "soffice"
	}
	return &Engine{binary: bin}
}

func (e *Engine) Name() domain.Engine {
	return domain.EngineLibreOffice
}

// Convert imports the PDF with Writer's PDF filter and exports .docx. The
// cheap engine has no table extraction, so Excel requests also produce .docx.
func (e *Engine) Convert(ctx context.Context, input port.ConvertInput) (*port.ConvertOutput, error) {
	dir, err := os.MkdirTemp("", "convertflow-lo-*")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	inPath := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(inPath, input.FileBytes, 0o600); err != nil {
		return nil, fmt.Errorf("writing input: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.binary,
		"--headless",
		"--infilter=writer_pdf_import",
		"--convert-to", "docx",
		"--outdir", dir,
		inPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("soffice failed: %v: %s", err, engine.Truncate(strings.TrimSpace(stderr.String()), 500))
	}

	out, err := os.ReadFile(filepath.Join(dir, "input.docx"))
	if err != nil {
		return nil, fmt.Errorf("reading soffice output: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("soffice produced an empty file")
	}

	return &port.ConvertOutput{
		PagesProcessed: input.PageCount,
		Artifact:       out,
		ContentType:    render.ContentTypeDOCX,
		Extension:      ".docx",
	}, nil
}
