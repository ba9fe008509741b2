package render_test

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"convertflow/internal/domain"
	"convertflow/internal/render"
)

func TestWorkbook_OneSheetPerTable(t *testing.T) {
	tables := []render.Table{
		{PageNumber: 1, Rows: [][]string{{"Item", "Qty"}, {"Bolt", "4"}}},
		{PageNumber: 2, Rows: [][]string{{"Total", "4"}}},
	}

	data, err := render.Workbook(tables, "")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Table 1 (p1)", "Table 2 (p2)"}, f.GetSheetList())
	v, err := f.GetCellValue("Table 1 (p1)", "B2")
	require.NoError(t, err)
	assert.Equal(t, "4", v)
}

func TestWorkbook_TextOnly(t *testing.T) {
	data, err := render.Workbook(nil, "first\nsecond")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	v, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestDocument_IsZipWithEscapedText(t *testing.T) {
	data, err := render.Document("a < b & c")
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var body []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			body, err = io.ReadAll(rc)
			require.NoError(t, err)
			_ = rc.Close()
		}
	}
	assert.Contains(t, string(body), "a &lt; b &amp; c")
}

func TestLayouts(t *testing.T) {
	layouts := render.Layouts([]render.Table{
		{PageNumber: 3, Rows: [][]string{{"a"}, {"b", "c", "d"}}},
	})
	assert.Equal(t, []domain.RenderedLayout{{PageNumber: 3, Rows: 2, Columns: 3}}, layouts)
}

func TestOutput_PicksFormat(t *testing.T) {
	_, ct, ext, err := render.Output(domain.OutputExcel, nil, "x")
	require.NoError(t, err)
	assert.Equal(t, render.ContentTypeXLSX, ct)
	assert.Equal(t, ".xlsx", ext)

	_, ct, ext, err = render.Output(domain.OutputWord, nil, "x")
	require.NoError(t, err)
	assert.Equal(t, render.ContentTypeDOCX, ct)
	assert.Equal(t, ".docx", ext)
}
