package logreader

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// plainSource is the random-access strategy: read_block(b) seeks to
// b*BlockSz and reads up to BlockSz bytes. No prior-block state is
// required.
type plainSource struct {
	file *os.File
}

func (br *BlockReader) openPlain() error {
	f, err := os.Open(br.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	br.fileSize = fi.Size()
	br.mtime = fi.ModTime()
	br.plain = &plainSource{file: f}
	return nil
}

func (br *BlockReader) readPlainBlock(b BlockOffset) (*Block, error) {
	start := BlockOffsetToFileOffset(b, 0, br.blockSz)
	if start >= br.fileSize {
		return nil, Done
	}
	want := int64(br.blockSz)
	if start+want > br.fileSize {
		want = br.fileSize - start
	}
	buf := make([]byte, want)
	n, err := br.plain.file.ReadAt(buf, start)
	if n < len(buf) {
		return nil, br.setFatal(fmt.Errorf("%w: %s: short read at block %d (file offset %d): got %d want %d",
			ErrTruncatedContainer, br.path, b, start, n, len(buf)))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, br.setFatal(fmt.Errorf("%w: %s: %v", ErrTruncatedContainer, br.path, err))
	}
	blk := &Block{Offset: b, Data: buf}
	return br.storeBlock(blk), nil
}
