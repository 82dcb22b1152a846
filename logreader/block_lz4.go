package logreader

import (
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

// Lz4 is streaming-only like bzip2: the frame header's content-size field
// is optional and not trustworthy as a contract, so the same
// drain-once-then-reopen strategy applies.
func (br *BlockReader) openLz4() error {
	fi, err := os.Stat(br.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	br.mtime = fi.ModTime()

	probe, err := os.Open(br.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	n, err := io.Copy(io.Discard, lz4.NewReader(probe))
	probe.Close()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecompressFailed, br.path, err)
	}

	f, err := os.Open(br.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}

	br.fileSize = n
	br.stream = &streamSource{rc: nopCloser{Reader: lz4.NewReader(f), f: f}}
	return nil
}
