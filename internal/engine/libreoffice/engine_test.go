package libreoffice_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/engine/libreoffice"
	"convertflow/internal/port"
)

// fakeSoffice writes a shell script that mimics soffice's --convert-to output naming.
func fakeSoffice(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "soffice")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

const convertScript = `
while [ $# -gt 0 ]; do
  case "$1" in
    --outdir) shift; out="$1" ;;
    *.pdf) in="$1" ;;
  esac
  shift
done
name=$(basename "$in" .pdf)
printf 'docx-bytes' > "$out/$name.docx"
`

func TestConvert_Success(t *testing.T) {
	bin := fakeSoffice(t, convertScript)
	e := libreoffice.NewEngine(&config.EngineConfig{Binary: bin})

	out, err := e.Convert(context.Background(), port.ConvertInput{
		FileBytes: []byte("%PDF-1.4"), DocumentName: "a.pdf", Format: domain.OutputWord, PageCount: 3,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.EngineLibreOffice, e.Name())
	assert.Equal(t, []byte("docx-bytes"), out.Artifact)
	assert.Equal(t, 3, out.PagesProcessed)
	assert.Equal(t, ".docx", out.Extension)
}

func TestConvert_ProcessFailure(t *testing.T) {
	bin := fakeSoffice(t, "echo 'source file could not be loaded' >&2\nexit 1\n")
	e := libreoffice.NewEngine(&config.EngineConfig{Binary: bin})

	_, err := e.Convert(context.Background(), port.ConvertInput{FileBytes: []byte("%PDF"), PageCount: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be loaded")
}

func TestConvert_MissingOutput(t *testing.T) {
	bin := fakeSoffice(t, "exit 0\n")
	e := libreoffice.NewEngine(&config.EngineConfig{Binary: bin})

	_, err := e.Convert(context.Background(), port.ConvertInput{FileBytes: []byte("%PDF"), PageCount: 1})
	assert.Error(t, err)
}
