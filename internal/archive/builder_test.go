package archive

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under root; keys are slash-separated relative paths.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func entryNames(t *testing.T, archivePath string) []string {
	t.Helper()

	infos, err := List(archivePath)
	require.NoError(t, err)

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

func TestBuild_ConcreteScenario(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt": "0123456789",
		"b.tmp": "01234",
	})
	dst := filepath.Join(t.TempDir(), "backup.zip")

	res, err := NewBuilder().Build(context.Background(), Options{
		Source:      src,
		Destination: dst,
		Level:       LevelMedium,
		ExcludeTemp: true,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, dst, res.Path)
	assert.Positive(t, res.Bytes)
	assert.Equal(t, []string{"a.txt"}, entryNames(t, dst))
}

func TestBuild_EveryRegularFileWithoutExclusion(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"a.txt":               "alpha",
		"b.tmp":               "temp",
		"logs/app.LOG":        "log line",
		"deep/er/still/c.bin": "\x00\x01\x02",
		"deep/empty.txt":      "",
	}
	writeTree(t, src, files)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty-dir"), 0755))

	dst := filepath.Join(t.TempDir(), "out.zip")
	res, err := NewBuilder().Build(context.Background(), Options{
		Source:      src,
		Destination: dst,
		Level:       LevelLow,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, len(files), res.Files)

	want := make([]string, 0, len(files))
	for rel := range files {
		want = append(want, rel)
	}
	sort.Strings(want)

	names := entryNames(t, dst)
	assert.Equal(t, want, names)
	for _, name := range names {
		assert.False(t, strings.HasSuffix(name, "/"), "directory entry %s", name)
	}
}

func TestBuild_ExcludesTempExtensionsCaseInsensitive(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"keep.txt":      "k",
		"x.TMP":         "t",
		"sub/y.Log":     "l",
		"sub/disk.iso":  "i",
		"sub/tmp.notes": "n",
	})
	dst := filepath.Join(t.TempDir(), "out.zip")

	res, err := NewBuilder().Build(context.Background(), Options{
		Source:      src,
		Destination: dst,
		ExcludeTemp: true,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Files)
	assert.Equal(t, []string{"keep.txt", "sub/tmp.notes"}, entryNames(t, dst))
}

func TestBuild_CustomTempExtensions(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.bak": "b",
		"b.tmp": "t",
	})
	dst := filepath.Join(t.TempDir(), "out.zip")

	_, err := NewBuilder().Build(context.Background(), Options{
		Source:         src,
		Destination:    dst,
		ExcludeTemp:    true,
		TempExtensions: []string{"BAK"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.tmp"}, entryNames(t, dst))
}

func TestBuild_NoFilesAfterFiltering(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"only.tmp":  "t",
		"sub/x.log": "l",
	})
	dst := filepath.Join(t.TempDir(), "out.zip")

	_, err := NewBuilder().Build(context.Background(), Options{
		Source:      src,
		Destination: dst,
		ExcludeTemp: true,
	}, nil)
	require.ErrorIs(t, err, ErrNoFiles)
	assert.NoFileExists(t, dst)
}

func TestBuild_EmptyPasswordWithEncryption(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "secret"})
	dst := filepath.Join(t.TempDir(), "out.zip")

	_, err := NewBuilder().Build(context.Background(), Options{
		Source:      src,
		Destination: dst,
		Encrypt:     true,
		Password:    "",
	}, nil)
	require.ErrorIs(t, err, ErrMissingPassword)
	assert.NoFileExists(t, dst)
}

func TestBuild_ProgressStepsByOne(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{}
	for i := range 7 {
		files[filepath.ToSlash(filepath.Join("d", string(rune('a'+i))+".txt"))] = strings.Repeat("x", i)
	}
	writeTree(t, src, files)

	type step struct{ completed, total int }
	var steps []step

	res, err := NewBuilder().Build(context.Background(), Options{
		Source:      src,
		Destination: filepath.Join(t.TempDir(), "out.zip"),
	}, func(completed, total int) {
		steps = append(steps, step{completed, total})
	})
	require.NoError(t, err)

	require.Len(t, steps, 7)
	for i, s := range steps {
		assert.Equal(t, i+1, s.completed)
		assert.Equal(t, 7, s.total)
	}
	assert.Equal(t, step{7, 7}, steps[len(steps)-1])
	assert.Equal(t, 7, res.Files)
}

func TestBuild_SkipsDestinationInsideSource(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})
	dst := filepath.Join(src, "backup.zip")

	for range 2 {
		res, err := NewBuilder().Build(context.Background(), Options{
			Source:      src,
			Destination: dst,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Files)
	}

	assert.Equal(t, []string{"a.txt"}, entryNames(t, dst))
}

func TestBuild_SkipsSymlinks(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"real.txt": "r"})
	if err := os.Symlink(filepath.Join(src, "real.txt"), filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "out.zip")

	_, err := NewBuilder().Build(context.Background(), Options{Source: src, Destination: dst}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"real.txt"}, entryNames(t, dst))
}

func TestBuild_CancelledContextLeavesNoArchive(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a", "b.txt": "b"})
	dst := filepath.Join(t.TempDir(), "out.zip")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder().Build(ctx, Options{Source: src, Destination: dst}, nil)
	require.True(t, errors.Is(err, context.Canceled))
	assert.NoFileExists(t, dst)
	assert.NoFileExists(t, dst+".partial")
}

func TestBuild_HigherLevelCompressesSmaller(t *testing.T) {
	words := []string{"backup", "archive", "folder", "upload", "drive", "token", "level", "entry"}
	rng := rand.New(rand.NewPCG(1, 2))

	var sb strings.Builder
	for sb.Len() < 512<<10 {
		sb.WriteString(words[rng.IntN(len(words))])
		sb.WriteByte(' ')
	}

	src := t.TempDir()
	writeTree(t, src, map[string]string{"words.txt": sb.String()})

	build := func(level Level) Result {
		res, err := NewBuilder().Build(context.Background(), Options{
			Source:      src,
			Destination: filepath.Join(t.TempDir(), level.String()+".zip"),
			Level:       level,
		}, nil)
		require.NoError(t, err)
		return res
	}

	low := build(LevelLow)
	high := build(LevelHigh)
	assert.Less(t, high.Bytes, low.Bytes)

	dir := t.TempDir()
	_, err := Extract(context.Background(), high.Path, dir, "")
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "words.txt"))
	require.NoError(t, err)
	assert.Equal(t, sb.String(), string(got))
}

func TestBuild_MissingSource(t *testing.T) {
	_, err := NewBuilder().Build(context.Background(), Options{
		Source:      filepath.Join(t.TempDir(), "nope"),
		Destination: filepath.Join(t.TempDir(), "out.zip"),
	}, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoFiles))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"low", LevelLow},
		{"Medium", LevelMedium},
		{" HIGH ", LevelHigh},
		{"", LevelMedium},
		{"Alto (ZIP)", LevelMedium},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}

	assert.Equal(t, 1, int(LevelLow))
	assert.Equal(t, 5, int(LevelMedium))
	assert.Equal(t, 9, int(LevelHigh))
	assert.Equal(t, "high", LevelHigh.String())
}
