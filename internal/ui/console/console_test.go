package console

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressAndLog(t *testing.T) {
	var out bytes.Buffer
	h := New(strings.NewReader(""), &out)

	h.ReportProgress("Archiving 1/2", 0.5)
	h.AppendLog("halfway")
	h.ReportProgress("Archiving 2/2", 1)
	h.AppendLog("done")

	text := out.String()
	assert.Contains(t, text, "Archiving 1/2")
	assert.Contains(t, text, " 50%\nhalfway\n")
	assert.Contains(t, text, "100%\ndone\n")
}

func TestPromptPassword(t *testing.T) {
	var out bytes.Buffer

	pw, ok := New(strings.NewReader("hunter2\n"), &out).PromptPassword()
	assert.True(t, ok)
	assert.Equal(t, "hunter2", pw)
	assert.Contains(t, out.String(), "Archive password:")

	_, ok = New(strings.NewReader("\n"), &out).PromptPassword()
	assert.False(t, ok)

	_, ok = New(strings.NewReader(""), &out).PromptPassword()
	assert.False(t, ok)
}

func TestSelectPaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secret.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0644))

	var out bytes.Buffer

	got, ok := New(strings.NewReader("  "+dir+"  \n"), &out).SelectDirectory()
	assert.True(t, ok)
	assert.Equal(t, dir, got)

	_, ok = New(strings.NewReader(file+"\n"), &out).SelectDirectory()
	assert.False(t, ok)
	assert.Contains(t, out.String(), "is not a folder")

	got, ok = New(strings.NewReader(file), &out).SelectFile()
	assert.True(t, ok)
	assert.Equal(t, file, got)

	_, ok = New(strings.NewReader(filepath.Join(dir, "missing.json")+"\n"), &out).SelectFile()
	assert.False(t, ok)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/docs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "docs"), got)

	got, err = expandHome("rel")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
