package visualizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Export renders snap and writes it to path. Paths ending in ".gz" are gzip
// compressed and paths ending in ".zst" are zstd compressed.
func Export(snap statemachine.Snapshot, opts Options, path string) (err error) {
	out, err := Generate(snap, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path) //nolint:gosec // Caller chooses the output path
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	w, err := compressor(f, path)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, out)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}

	return w.Close()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func compressor(w io.Writer, path string) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return gzip.NewWriter(w), nil
	case strings.HasSuffix(path, ".zst"):
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}

		return enc, nil
	default:
		return nopWriteCloser{Writer: w}, nil
	}
}
