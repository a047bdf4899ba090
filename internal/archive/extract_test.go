package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) string {
	t.Helper()

	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return string(b)
}

func assertSameTree(t *testing.T, files map[string]string, root string) {
	t.Helper()

	for rel, want := range files {
		got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.True(t, bytes.Equal([]byte(want), got), "content mismatch for %s", rel)
	}
}

func TestRoundTrip(t *testing.T) {
	files := map[string]string{
		"a.txt":             "hello",
		"nested/b.bin":      randomBytes(t, 64<<10),
		"nested/deep/c.csv": "x,y\n1,2\n",
		"empty":             "",
	}

	tests := []struct {
		name     string
		level    Level
		encrypt  bool
		password string
	}{
		{name: "plain low", level: LevelLow},
		{name: "plain high", level: LevelHigh},
		{name: "aes-256", level: LevelMedium, encrypt: true, password: "correct horse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := t.TempDir()
			writeTree(t, src, files)
			dst := filepath.Join(t.TempDir(), "backup.zip")

			res, err := NewBuilder().Build(context.Background(), Options{
				Source:      src,
				Destination: dst,
				Level:       tt.level,
				Encrypt:     tt.encrypt,
				Password:    tt.password,
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, len(files), res.Files)

			infos, err := List(dst)
			require.NoError(t, err)
			for _, info := range infos {
				assert.Equal(t, tt.encrypt, info.Encrypted, info.Name)
			}

			out := t.TempDir()
			n, err := Extract(context.Background(), dst, out, tt.password)
			require.NoError(t, err)
			assert.Equal(t, len(files), n)
			assertSameTree(t, files, out)
		})
	}
}

func TestExtract_EncryptedNeedsPassword(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"secret.txt": "classified"})
	dst := filepath.Join(t.TempDir(), "backup.zip")

	_, err := NewBuilder().Build(context.Background(), Options{
		Source:      src,
		Destination: dst,
		Encrypt:     true,
		Password:    "pw",
	}, nil)
	require.NoError(t, err)

	_, err = Extract(context.Background(), dst, t.TempDir(), "")
	require.ErrorIs(t, err, ErrMissingPassword)

	_, err = Extract(context.Background(), dst, t.TempDir(), "wrong")
	require.Error(t, err)
}

func TestEncryptedArchiveHidesPlaintext(t *testing.T) {
	src := t.TempDir()
	marker := "PLAINTEXT-MARKER-PLAINTEXT-MARKER"
	writeTree(t, src, map[string]string{"note.txt": marker})
	dst := filepath.Join(t.TempDir(), "backup.zip")

	_, err := NewBuilder().Build(context.Background(), Options{
		Source:      src,
		Destination: dst,
		Level:       LevelLow,
		Encrypt:     true,
		Password:    "pw",
	}, nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte(marker)))
}
