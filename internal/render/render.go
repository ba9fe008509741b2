// Package render writes extracted document content into Word and Excel files.
package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"convertflow/internal/domain"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Table is one extracted table, row-major.
type Table struct {
	PageNumber int
	Rows       [][]string
}

// Columns returns the widest row length.
func (t Table) Columns() int {
	n := 0
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// Layouts summarizes tables for quality checks.
func Layouts(tables []Table) []domain.RenderedLayout {
	out := make([]domain.RenderedLayout, 0, len(tables))
	for _, t := range tables {
		out = append(out, domain.RenderedLayout{PageNumber: t.PageNumber, Rows: len(t.Rows), Columns: t.Columns()})
	}
	return out
}

// Workbook writes one sheet per table. A document without tables gets a
// single sheet holding its text, one line per row.
func Workbook(tables []Table, text string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const defaultSheet = "Sheet1"
	if len(tables) == 0 {
		for i, line := range strings.Split(strings.TrimSpace(text), "\n") {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return nil, fmt.Errorf("render.Workbook: %w", err)
			}
			if err := f.SetCellStr(defaultSheet, cell, line); err != nil {
				return nil, fmt.Errorf("render.Workbook: %w", err)
			}
		}
		return writeWorkbook(f)
	}

	for i, t := range tables {
		sheet := fmt.Sprintf("Table %d (p%d)", i+1, t.PageNumber)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return nil, fmt.Errorf("render.Workbook: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("render.Workbook: %w", err)
		}
		for r, row := range t.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, fmt.Errorf("render.Workbook: %w", err)
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return nil, fmt.Errorf("render.Workbook: %w", err)
			}
		}
	}
	return writeWorkbook(f)
}

func writeWorkbook(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render.Workbook: write: %w", err)
	}
	return buf.Bytes(), nil
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// Document writes text as a minimal .docx, one paragraph per line.
func Document(text string) ([]byte, error) {
	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, line := range strings.Split(text, "\n") {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		if err := xml.EscapeText(&body, []byte(line)); err != nil {
			return nil, fmt.Errorf("render.Document: %w", err)
		}
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(relsXML)},
		{"word/document.xml", body.Bytes()},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("render.Document: %w", err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("render.Document: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("render.Document: %w", err)
	}
	return out.Bytes(), nil
}

// Output renders tables and text into the requested format.
func Output(format domain.OutputFormat, tables []Table, text string) (data []byte, contentType, ext string, err error) {
	if format == domain.OutputExcel {
		data, err = Workbook(tables, text)
		return data, ContentTypeXLSX, ".xlsx", err
	}
	data, err = Document(text)
	return data, ContentTypeDOCX, ".docx", err
}
