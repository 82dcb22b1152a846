package logreader

import (
	"fmt"
	"io"
)

// streamSource is the shared sequential-fill strategy for every container
// that forbids random access: gzip, bzip2, lz4. A fresh
// io.ReadCloser is held open for the file's lifetime; read_block(b)
// decodes forward from the highest already-materialized block through b,
// storing each block as it is produced.
type streamSource struct {
	rc        io.ReadCloser
	nextBlock BlockOffset // lowest block offset not yet materialized
	eof       bool
}

// streamReadBufSz bounds intermediate reads so a single call cannot stall
// on an arbitrarily large decode.
const streamReadBufSz = 2 * 1024

// readStreamBlockUpTo decodes sequentially until block b has been
// materialized (or the stream ends), honoring the drop policy in between.
func (br *BlockReader) readStreamBlockUpTo(b BlockOffset) (*Block, error) {
	var last *Block
	for {
		br.mu.Lock()
		next := br.stream.nextBlock
		eof := br.stream.eof
		br.mu.Unlock()

		if eof {
			if b >= next {
				return nil, Done
			}
		}
		if next > b {
			break
		}

		blk, err := br.decodeOneBlock()
		if err != nil {
			if err == io.EOF {
				br.mu.Lock()
				br.stream.eof = true
				br.mu.Unlock()
				if b >= next {
					return nil, Done
				}
				continue
			}
			return nil, br.setFatal(err)
		}
		last = br.storeBlock(blk)

		br.mu.Lock()
		br.stream.nextBlock++
		dropsOn := br.dropsEnabled
		br.mu.Unlock()

		// Drop policy: once block k has been materialized, block k-1 is
		// no longer needed to extend the decode and may be released.
		if dropsOn && blk.Offset > 0 {
			br.DropBlock(blk.Offset - 1)
		}
	}

	br.mu.Lock()
	entry, ok := br.blocks[b]
	br.mu.Unlock()
	if ok {
		return entry.block, nil
	}
	if last != nil && last.Offset == b {
		return last, nil
	}
	return nil, fmt.Errorf("%w: block %d", ErrBlockUnavailable, b)
}

// decodeOneBlock reads exactly one block's worth of bytes (or the final
// short block) from the underlying decoder using bounded-size reads.
func (br *BlockReader) decodeOneBlock() (*Block, error) {
	sz := int(br.blockSz)
	buf := make([]byte, 0, sz)
	small := make([]byte, streamReadBufSz)

	for len(buf) < sz {
		want := sz - len(buf)
		if want > len(small) {
			want = len(small)
		}
		n, err := br.stream.rc.Read(small[:want])
		if n == 0 && err == nil {
			// A zero-byte read with no error is a decoder stall, not
			// EOF.
			return nil, fmt.Errorf("%w: %s", ErrDecoderStall, br.path)
		}
		if n > 0 {
			buf = append(buf, small[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				if len(buf) == 0 {
					return nil, io.EOF
				}
				break
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrDecompressFailed, br.path, err)
		}
	}

	nextOffset := br.stream.nextBlock
	return &Block{Offset: nextOffset, Data: buf}, nil
}
