package logreader

import (
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"
)

// wholeBufferSource holds an entire decoded stream in memory and serves
// blocks by slicing it. Used by xz; its slicing helper,
// readFromWholeBuffer, is shared with the tar/7z member readers since
// they have the identical shape once the member's bytes are fully
// materialized.
type wholeBufferSource struct {
	data []byte
}

func (br *BlockReader) openXz() error {
	fi, err := os.Stat(br.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	br.mtime = fi.ModTime()

	f, err := os.Open(br.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	defer f.Close()

	// ulikunitz/xz.NewReader validates the stream header and first block
	// header as part of construction; it exposes no seek/chunked-decode
	// API.
	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecompressFailed, br.path, err)
	}

	data, err := io.ReadAll(xr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecompressFailed, br.path, err)
	}

	br.fileSize = int64(len(data))
	br.wholeBuf = &wholeBufferSource{data: data}
	return nil
}

func (br *BlockReader) readWholeBufferBlock(b BlockOffset) (*Block, error) {
	return readFromWholeBuffer(br, br.wholeBuf.data, b)
}

// readFromWholeBuffer slices data into the block at offset b, shared by
// the xz, tar, and 7z strategies once they have a fully materialized
// buffer.
func readFromWholeBuffer(br *BlockReader, data []byte, b BlockOffset) (*Block, error) {
	start := BlockOffsetToFileOffset(b, 0, br.blockSz)
	if start >= int64(len(data)) {
		return nil, Done
	}
	end := start + int64(br.blockSz)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	blk := &Block{Offset: b, Data: data[start:end]}
	return br.storeBlock(blk), nil
}
