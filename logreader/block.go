package logreader

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Block is an immutable byte buffer of length <= BlockSz read from a
// container. It is shared by reference: every Line
// that spans it holds the same *Block.
type Block struct {
	Offset BlockOffset
	Data   []byte
}

func (b *Block) Len() int { return len(b.Data) }

// blockEntry is BlockReader's private bookkeeping for one materialized
// Block: the data plus a live-reference count. A Block may only be
// dropped when refCount reaches zero.
type blockEntry struct {
	block    *Block
	refCount int32
}

// BlockReaderStats are the block-layer counters folded into Summary.
type BlockReaderStats struct {
	BytesRead    int64
	BlocksRead   int64
	CacheHits    int64
	CacheMisses  int64
	CachePuts    int64
	DropsOk      int64
	DropsErr     int64
	RereadsAfterDrop int64
}

// BlockReader presents any supported container as an array of fixed-size
// byte blocks addressable by block index. The container choice is a
// tagged variant rather than a set of implementations behind an
// interface: ReadBlock is the hottest call in the stack, and dispatching
// via a field switch avoids a virtual call on every block read.
type BlockReader struct {
	path    string
	ft      FileType
	blockSz uint32

	fileSize int64 // logical (decompressed/unarchived) size; -1 until known
	mtime    time.Time

	mu       sync.Mutex
	blocks   map[BlockOffset]*blockEntry
	everRead map[BlockOffset]bool
	cache    *lru.Cache[BlockOffset, *Block]

	dropsEnabled  bool // disabled during year reconstruction, re-enabled after
	cachesEnabled bool // LRU block cache; AddRef/Release bookkeeping always runs regardless
	done          bool // true once the streaming source has hit EOF
	fatalErr      error

	stats BlockReaderStats

	// exactly one of the following is populated, selected by ft.Archive
	plain    *plainSource
	stream   *streamSource // gzip, bzip2, lz4
	wholeBuf *wholeBufferSource // xz
	member   *memberSource // tar, 7z
}

// cacheSize is the small LRU capacity used to keep recently touched
// blocks around (~4 entries).
const cacheSize = 4

// New constructs a BlockReader for ft, dispatching to the container
// strategy named by ft.Archive. blockSz must already satisfy
// [BlockSzMin, BlockSzMax]; callers enforce the probe-stage floor
// (blockSzMinProbe) themselves.
func New(ft FileType, blockSz uint32) (*BlockReader, error) {
	if blockSz < BlockSzMin || blockSz > BlockSzMax {
		return nil, fmt.Errorf("logreader: blocksz %d out of range [%d, %d]", blockSz, BlockSzMin, BlockSzMax)
	}

	cache, err := lru.New[BlockOffset, *Block](cacheSize)
	if err != nil {
		return nil, err
	}

	br := &BlockReader{
		path:          ft.Path,
		ft:            ft,
		blockSz:       blockSz,
		fileSize:      -1,
		blocks:        make(map[BlockOffset]*blockEntry),
		everRead:      make(map[BlockOffset]bool),
		cache:         cache,
		dropsEnabled:  true,
		cachesEnabled: true,
	}

	switch ft.Archive {
	case ArchivePlain:
		err = br.openPlain()
	case ArchiveGzip:
		err = br.openGzip()
	case ArchiveBzip2:
		err = br.openBzip2()
	case ArchiveLz4:
		err = br.openLz4()
	case ArchiveXz:
		err = br.openXz()
	case ArchiveTar:
		err = br.openTarMember()
	case ArchiveSevenZip:
		err = br.openSevenZipMember()
	default:
		err = fmt.Errorf("%w: unrecognized archive kind %v", ErrWrongType, ft.Archive)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ft.Path, err)
	}

	return br, nil
}

// IsStreaming reports whether the container mandates strictly forward
// block access.
func (br *BlockReader) IsStreaming() bool {
	switch br.ft.Archive {
	case ArchiveGzip, ArchiveBzip2, ArchiveLz4:
		return true
	default:
		return false
	}
}

func (br *BlockReader) FileSize() int64    { return br.fileSize }
func (br *BlockReader) BlockSize() uint32  { return br.blockSz }
func (br *BlockReader) Path() string       { return br.path }
func (br *BlockReader) ModTime() time.Time { return br.mtime }
func (br *BlockReader) Stats() BlockReaderStats {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.stats
}

// BlockCount returns ceil(file_size / block_size).
func (br *BlockReader) BlockCount() BlockOffset {
	if br.fileSize <= 0 {
		return 0
	}
	return BlockOffset((br.fileSize + int64(br.blockSz) - 1) / int64(br.blockSz))
}

// OffsetToBlockOffset returns floor(file_offset / block_size).
func OffsetToBlockOffset(fileOffset Offset, blockSz uint32) BlockOffset {
	return BlockOffset(fileOffset / int64(blockSz))
}

// OffsetToBlockIndex returns the byte index of file_offset within its block.
func OffsetToBlockIndex(fileOffset Offset, blockSz uint32) int {
	return int(fileOffset % int64(blockSz))
}

// BlockOffsetToFileOffset is the inverse of OffsetToBlockOffset/Index.
func BlockOffsetToFileOffset(b BlockOffset, index int, blockSz uint32) Offset {
	return Offset(b)*Offset(blockSz) + Offset(index)
}

// ReadBlock returns the Block at offset b, or Done if b is beyond the
// last block, or a wrapped error if the container is unreadable.
func (br *BlockReader) ReadBlock(b BlockOffset) (*Block, error) {
	br.mu.Lock()
	if br.fatalErr != nil {
		err := br.fatalErr
		br.mu.Unlock()
		return nil, err
	}
	if br.fileSize >= 0 && b >= br.BlockCount() {
		br.mu.Unlock()
		return nil, Done
	}
	if br.cachesEnabled {
		if blk, ok := br.cache.Get(b); ok {
			br.stats.CacheHits++
			br.mu.Unlock()
			return blk, nil
		}
	}
	if entry, ok := br.blocks[b]; ok {
		br.stats.CacheMisses++
		if br.cachesEnabled {
			br.cache.Add(b, entry.block)
			br.stats.CachePuts++
		}
		br.mu.Unlock()
		return entry.block, nil
	}
	wasRead := br.everRead[b]
	br.mu.Unlock()

	if wasRead {
		br.mu.Lock()
		br.stats.RereadsAfterDrop++
		br.mu.Unlock()
	}

	blk, err := br.materialize(b)
	if err != nil {
		return nil, err
	}
	return blk, nil
}

// materialize dispatches to the container-specific strategy to produce
// the Block at offset b (and, for streaming containers, every
// not-yet-seen block up to and including b).
func (br *BlockReader) materialize(b BlockOffset) (*Block, error) {
	switch br.ft.Archive {
	case ArchivePlain:
		return br.readPlainBlock(b)
	case ArchiveGzip, ArchiveBzip2, ArchiveLz4:
		return br.readStreamBlockUpTo(b)
	case ArchiveXz:
		return br.readWholeBufferBlock(b)
	case ArchiveTar, ArchiveSevenZip:
		return br.readMemberBlock(b)
	default:
		return nil, fmt.Errorf("%w: %v", ErrWrongType, br.ft.Archive)
	}
}

// storeBlock records a freshly materialized block and returns it. The
// entry's refCount starts at zero: AddRef (called by LineReader.buildLine
// once a LinePart actually references the block) is the only thing that
// makes it non-zero. Caller must not hold br.mu.
func (br *BlockReader) storeBlock(blk *Block) *Block {
	br.mu.Lock()
	defer br.mu.Unlock()
	entry := &blockEntry{block: blk}
	br.blocks[blk.Offset] = entry
	br.everRead[blk.Offset] = true
	if br.cachesEnabled {
		br.cache.Add(blk.Offset, blk)
		br.stats.CachePuts++
	}
	br.stats.BlocksRead++
	br.stats.BytesRead += int64(len(blk.Data))
	return blk
}

func (br *BlockReader) incRefLocked(b BlockOffset) {
	if e, ok := br.blocks[b]; ok {
		atomic.AddInt32(&e.refCount, 1)
	}
}

// AddRef is called by the LineReader layer whenever a new Line begins
// referencing block b.
func (br *BlockReader) AddRef(b BlockOffset) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.incRefLocked(b)
}

// Release drops one reference to block b, held previously by a Line that
// is being dropped or reassigned.
func (br *BlockReader) Release(b BlockOffset) {
	br.mu.Lock()
	defer br.mu.Unlock()
	if e, ok := br.blocks[b]; ok {
		atomic.AddInt32(&e.refCount, -1)
	}
}

// DropBlock releases the block at b if it is uniquely held (refCount ==
// 0, i.e. no Line currently references it). Returns false and bumps
// DropsErr if the block is still referenced; returns false without
// counting if the block is absent. Never invalidates a live reference.
func (br *BlockReader) DropBlock(b BlockOffset) bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	e, ok := br.blocks[b]
	if !ok {
		return false
	}
	if atomic.LoadInt32(&e.refCount) > 0 {
		br.stats.DropsErr++
		return false
	}
	delete(br.blocks, b)
	br.cache.Remove(b)
	br.stats.DropsOk++
	return true
}

// SetDropsEnabled toggles the drop policy. SyslogProcessor disables drops
// during year reconstruction so the reverse walk never forces
// re-decompression of an already-dropped streaming block.
func (br *BlockReader) SetDropsEnabled(v bool) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.dropsEnabled = v
}

// SetCachesEnabled toggles the block LRU. Disabling it does not discard
// already-materialized blocks (those still live in br.blocks until
// dropped); it only stops ReadBlock/storeBlock from consulting or
// populating the LRU, so every read past the first falls through to the
// blocks map instead of the cache.
func (br *BlockReader) SetCachesEnabled(v bool) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.cachesEnabled = v
}

func (br *BlockReader) dropsAllowed() bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.dropsEnabled
}

func (br *BlockReader) setFatal(err error) error {
	br.mu.Lock()
	br.fatalErr = err
	br.mu.Unlock()
	return err
}
