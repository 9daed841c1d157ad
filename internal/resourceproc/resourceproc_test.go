package resourceproc

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestSanitizedJoinRejectsEscape(t *testing.T) {
	dest := t.TempDir()
	_, err := sanitizedJoin(dest, "../../etc/passwd")
	assert.Error(t, err)
}

func TestSanitizedJoinAllowsNested(t *testing.T) {
	dest := t.TempDir()
	out, err := sanitizedJoin(dest, "sub/dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "sub", "dir", "file.txt"), out)
}

func TestUnzipAllExtractsArchive(t *testing.T) {
	resourcesDir := t.TempDir()
	writeZip(t, filepath.Join(resourcesDir, "slides.zip"), map[string]string{
		"lecture1.pdf": "pdf-bytes",
		"notes.txt":    "plain text",
	})

	require.NoError(t, UnzipAll(resourcesDir))

	extracted := filepath.Join(resourcesDir, "extracted", "slides")
	data, err := os.ReadFile(filepath.Join(extracted, "lecture1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
}

func TestUnzipAllSkipsNonZipFiles(t *testing.T) {
	resourcesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(resourcesDir, "readme.txt"), []byte("hi"), 0o644))

	require.NoError(t, UnzipAll(resourcesDir))

	_, err := os.Stat(filepath.Join(resourcesDir, "extracted"))
	assert.True(t, os.IsNotExist(err))
}

func TestUnzipAllMissingDirIsNotAnError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	assert.NoError(t, UnzipAll(missing))
}

func TestProcessResourcesMissingSubjectPathReturnsNil(t *testing.T) {
	docs, err := ProcessResources(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, docs)
}
