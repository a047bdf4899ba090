package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"backtomatic/internal/logger"
	"backtomatic/internal/util"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	yzip "github.com/yeka/zip"
	"go.uber.org/zap"
)

// ProgressFunc is called once per written file.
type ProgressFunc func(completed, total int)

type Options struct {
	Source         string
	Destination    string
	Level          Level
	ExcludeTemp    bool
	TempExtensions []string
	Encrypt        bool
	Password       string
}

type Result struct {
	Path  string
	Files int
	Bytes int64
}

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Build(ctx context.Context, opts Options, progress ProgressFunc) (Result, error) {
	if opts.Encrypt && opts.Password == "" {
		return Result{}, ErrMissingPassword
	}

	src, err := filepath.Abs(opts.Source)
	if err != nil {
		return Result{}, fmt.Errorf("invalid source path: %w", err)
	}

	dst, err := filepath.Abs(opts.Destination)
	if err != nil {
		return Result{}, fmt.Errorf("invalid destination path: %w", err)
	}

	tempExts := opts.TempExtensions
	if tempExts == nil {
		tempExts = DefaultTempExtensions
	}

	entries, err := collect(src, opts.ExcludeTemp, tempExts, dst, dst+util.PartialSuffix)
	if err != nil {
		return Result{}, err
	}

	if len(entries) == 0 {
		return Result{}, ErrNoFiles
	}

	if progress == nil {
		progress = func(int, int) {}
	}

	logger.Log.Debug("archiving",
		zap.String("src", src),
		zap.String("dst", dst),
		zap.Int("files", len(entries)),
		zap.Stringer("level", opts.Level),
		zap.Bool("encrypt", opts.Encrypt))

	err = util.AtomicCreate(dst, 0644, func(w io.Writer) error {
		return writeArchive(ctx, w, entries, opts, progress)
	})
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat archive: %w", err)
	}

	return Result{
		Path:  dst,
		Files: len(entries),
		Bytes: info.Size(),
	}, nil
}

// entryWriter opens the next archive entry for writing.
type entryWriter func(entry Entry, f *os.File) (io.Writer, error)

func writeArchive(ctx context.Context, w io.Writer, entries []Entry, opts Options, progress ProgressFunc) error {
	if opts.Encrypt {
		zw := yzip.NewWriter(w)
		return writeEntries(ctx, zw, entries, progress, func(entry Entry, _ *os.File) (io.Writer, error) {
			return zw.Encrypt(entry.Rel, opts.Password, yzip.AES256Encryption)
		})
	}

	// Plain archives honour the requested deflate level; yeka only knows the
	// package-wide default compressor, so AES entries use that one.
	zw := zip.NewWriter(w)
	level := int(opts.Level)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	return writeEntries(ctx, zw, entries, progress, func(entry Entry, f *os.File) (io.Writer, error) {
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}

		fh, err := zip.FileInfoHeader(info)
		if err != nil {
			return nil, err
		}

		fh.Name = entry.Rel
		fh.Method = zip.Deflate

		return zw.CreateHeader(fh)
	})
}

func writeEntries(ctx context.Context, zw io.Closer, entries []Entry, progress ProgressFunc, create entryWriter) error {
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return err
		}

		if err := addEntry(entry, create); err != nil {
			_ = zw.Close()
			return err
		}

		progress(i+1, len(entries))
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	return nil
}

func addEntry(entry Entry, create entryWriter) error {
	f, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	ew, err := create(entry, f)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", entry.Rel, err)
	}

	if _, err := io.Copy(ew, f); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", entry.Rel, err)
	}

	return nil
}
