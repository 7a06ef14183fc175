// Package backup copies a store file to and from a zstd-compressed archive.
// Restored files are byte-identical to the source.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"kvlog/internal/logging"
)

var logger = logging.For("backup")

// Create compresses src into dst. The archive is written to a temporary file
// next to dst and renamed into place, so dst is either complete or untouched.
// It returns the number of uncompressed bytes copied.
func Create(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, fmt.Errorf("creating encoder: %w", err)
	}
	n, err := io.Copy(zw, in)
	if err != nil {
		_ = zw.Close()
		return 0, fmt.Errorf("compressing: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("flushing encoder: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("syncing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, fmt.Errorf("renaming archive: %w", err)
	}
	committed = true

	logger.Info("backup written", "src", src, "dst", dst, "bytes", n)
	return n, nil
}

// Restore decompresses the archive src into a new file dst. It refuses to
// overwrite: an existing dst fails with an error matching fs.ErrExist.
func Restore(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer in.Close()

	zr, err := zstd.NewReader(in)
	if err != nil {
		return 0, fmt.Errorf("creating decoder: %w", err)
	}
	defer zr.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, fmt.Errorf("creating destination: %w", err)
	}
	n, err := io.Copy(out, zr)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("restoring: %w", err)
	}

	logger.Info("backup restored", "src", src, "dst", dst, "bytes", n)
	return n, nil
}
