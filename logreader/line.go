package logreader

import (
	"bytes"
	"fmt"
	"sort"
)

const newlineByte byte = '\n'

// LinePart is a contiguous view of one Block.
// Invariants: Begin < End, End <= len(Block.Data), and
// FileOffsetBegin == BlockOffset*BlockSz + Begin.
type LinePart struct {
	Block           *Block
	Begin           int // inclusive index into Block.Data
	End             int // exclusive index into Block.Data
	FileOffsetBegin Offset
	BlockOffset     BlockOffset
}

func (lp LinePart) Len() int { return lp.End - lp.Begin }
func (lp LinePart) Bytes() []byte { return lp.Block.Data[lp.Begin:lp.End] }

// Line is an ordered, non-empty sequence of LineParts contiguous in file
// space. A Line may span multiple blocks.
type Line struct {
	Parts []LinePart
}

func (l *Line) FileOffsetBegin() Offset { return l.Parts[0].FileOffsetBegin }

func (l *Line) FileOffsetEnd() Offset {
	last := l.Parts[len(l.Parts)-1]
	return last.FileOffsetBegin + Offset(last.Len()) - 1
}

// Bytes copies every part into one contiguous slice. Used only where the
// caller genuinely needs a flattened view (e.g. the datetime recognizer's
// multi-block case, or emitting a Sysline's bytes to stdout); callers on
// the hot single-block path should prefer iterating Parts directly.
func (l *Line) Bytes() []byte {
	if len(l.Parts) == 1 {
		return l.Parts[0].Bytes()
	}
	n := 0
	for _, p := range l.Parts {
		n += p.Len()
	}
	buf := make([]byte, 0, n)
	for _, p := range l.Parts {
		buf = append(buf, p.Bytes()...)
	}
	return buf
}

func (l *Line) EndsWithNewline() bool {
	last := l.Parts[len(l.Parts)-1]
	data := last.Bytes()
	return len(data) > 0 && data[len(data)-1] == newlineByte
}

// lineIndex keeps a map from file_offset to Line plus a sorted key slice
// so repeated queries near a known line resolve in O(log n). No ordered-map
// library appears anywhere in the reference corpus as an importable
// dependency, so this is a plain map plus a sorted key slice,
// binary-searched — justified in DESIGN.md.
type lineIndex struct {
	byBegin map[Offset]*Line
	// sortedBegins is kept sorted ascending; a line's end offset maps
	// back to its begin via endToBegin.
	sortedBegins []Offset
	endToBegin   map[Offset]Offset
}

func newLineIndex() *lineIndex {
	return &lineIndex{
		byBegin:    make(map[Offset]*Line),
		endToBegin: make(map[Offset]Offset),
	}
}

func (idx *lineIndex) insert(l *Line) {
	begin := l.FileOffsetBegin()
	if _, exists := idx.byBegin[begin]; exists {
		return
	}
	idx.byBegin[begin] = l
	idx.endToBegin[l.FileOffsetEnd()] = begin

	i := sort.Search(len(idx.sortedBegins), func(i int) bool { return idx.sortedBegins[i] >= begin })
	idx.sortedBegins = append(idx.sortedBegins, 0)
	copy(idx.sortedBegins[i+1:], idx.sortedBegins[i:])
	idx.sortedBegins[i] = begin
}

func (idx *lineIndex) remove(begin Offset) {
	l, ok := idx.byBegin[begin]
	if !ok {
		return
	}
	delete(idx.byBegin, begin)
	delete(idx.endToBegin, l.FileOffsetEnd())
	i := sort.Search(len(idx.sortedBegins), func(i int) bool { return idx.sortedBegins[i] >= begin })
	if i < len(idx.sortedBegins) && idx.sortedBegins[i] == begin {
		idx.sortedBegins = append(idx.sortedBegins[:i], idx.sortedBegins[i+1:]...)
	}
}

// containing finds the Line whose range covers fileOffset, if already
// known, via O(log n) search over sortedBegins.
func (idx *lineIndex) containing(fileOffset Offset) *Line {
	i := sort.Search(len(idx.sortedBegins), func(i int) bool { return idx.sortedBegins[i] > fileOffset }) - 1
	if i < 0 {
		return nil
	}
	begin := idx.sortedBegins[i]
	l := idx.byBegin[begin]
	if l != nil && fileOffset <= l.FileOffsetEnd() {
		return l
	}
	return nil
}

// LineReader walks bytes across block boundaries to locate
// newline-terminated lines.
type LineReader struct {
	br  *BlockReader
	idx *lineIndex
}

func NewLineReader(br *BlockReader) *LineReader {
	return &LineReader{br: br, idx: newLineIndex()}
}

// FindLine returns the Line containing fileOffset and the file offset of
// the line after it, or Done at/after EOF.
func (lr *LineReader) FindLine(fileOffset Offset) (Offset, *Line, error) {
	if fileOffset < 0 {
		return 0, nil, fmt.Errorf("logreader: negative file offset %d", fileOffset)
	}
	if l := lr.idx.containing(fileOffset); l != nil {
		return l.FileOffsetEnd() + 1, l, nil
	}

	line, err := lr.assembleLine(fileOffset, false)
	if err != nil {
		return 0, nil, err
	}
	if line == nil {
		return 0, nil, Done
	}
	lr.idx.insert(line)
	lr.br.stats.BlocksRead += 0 // bytes already counted by BlockReader itself
	return line.FileOffsetEnd() + 1, line, nil
}

// FindLineInBlock is FindLine's block-local variant: it fails with Done
// whenever completing the line would require a block other than the one
// containing fileOffset. When a partial line was assembled within that
// block, it is returned as the second value so callers (the datetime
// recognizer, in particular) can still attempt timestamp recognition
// without committing an incomplete record to the index.
func (lr *LineReader) FindLineInBlock(fileOffset Offset) (Offset, *Line, *Line, error) {
	if l := lr.idx.containing(fileOffset); l != nil {
		return l.FileOffsetEnd() + 1, l, nil, nil
	}
	line, err := lr.assembleLine(fileOffset, true)
	if err != nil {
		if err == Done && line != nil {
			return 0, nil, line, Done
		}
		return 0, nil, nil, err
	}
	if line == nil {
		return 0, nil, nil, Done
	}
	lr.idx.insert(line)
	return line.FileOffsetEnd() + 1, line, nil, nil
}

// assembleLine locates a line's boundaries in two passes: search forward
// from fileOffset for the terminating newline, search backward from
// fileOffset-1 for the preceding newline, then emit a Line spanning
// [firstByte, lastByte]. When blockLocal is true, either search refusing
// to cross outside the starting block returns the partial line
// assembled so far alongside the Done sentinel.
func (lr *LineReader) assembleLine(fileOffset Offset, blockLocal bool) (*Line, error) {
	startBlockOff := OffsetToBlockOffset(fileOffset, lr.br.BlockSize())

	// Forward search for the terminating newline.
	endOffset, lastBlockSeen, crossedBlockFwd, err := lr.searchForwardNewline(fileOffset, blockLocal, startBlockOff)
	if err != nil {
		return nil, err
	}
	if blockLocal && crossedBlockFwd {
		partial, perr := lr.buildLine(fileOffset, startBlockOff, BlockOffsetToFileOffset(BlockOffset(lastBlockSeen)+1, 0, lr.br.BlockSize())-1)
		_ = perr
		return partial, Done
	}

	// Backward search for the byte after the preceding newline (or 0).
	beginOffset, err := lr.searchBackwardLineStart(fileOffset, blockLocal, startBlockOff)
	if err != nil {
		return nil, err
	}
	if beginOffset < 0 {
		// blockLocal refused to cross backward out of the block.
		partial, _ := lr.buildLine(fileOffset, startBlockOff, endOffset)
		return partial, Done
	}

	return lr.buildLine(beginOffset, startBlockOff, endOffset)
}

// searchForwardNewline returns the file offset of the line's last byte
// (inclusive of the newline, or EOF) by scanning forward from
// fileOffset. lastBlockSeen is the highest block offset scanned.
func (lr *LineReader) searchForwardNewline(fileOffset Offset, blockLocal bool, startBlockOff BlockOffset) (Offset, Offset, bool, error) {
	blockSz := lr.br.BlockSize()
	curBlockOff := startBlockOff
	curFileOff := fileOffset

	for {
		blk, err := lr.br.ReadBlock(curBlockOff)
		if err == Done {
			// fileOffset was at/after EOF of a block-ended file.
			if curFileOff == fileOffset {
				return 0, 0, false, Done
			}
			return curFileOff - 1, Offset(curBlockOff), false, nil
		}
		if err != nil {
			return 0, 0, false, fmt.Errorf("%s: %w", lr.br.Path(), err)
		}

		idxInBlock := OffsetToBlockIndex(curFileOff, blockSz)
		rel := bytes.IndexByte(blk.Data[idxInBlock:], newlineByte)
		if rel >= 0 {
			return curFileOff + Offset(rel), Offset(curBlockOff), false, nil
		}

		// No newline in the remainder of this block.
		isLastBlock := BlockOffset(blk.Offset) == lr.br.BlockCount()-1
		if isLastBlock {
			if idxInBlock >= blk.Len() {
				// fileOffset is at EOF of a file whose last block is short.
				return 0, 0, false, Done
			}
			return BlockOffsetToFileOffset(curBlockOff, blk.Len(), blockSz) - 1, Offset(curBlockOff), false, nil
		}
		if blockLocal {
			return 0, Offset(curBlockOff), true, nil
		}
		curBlockOff++
		curFileOff = BlockOffsetToFileOffset(curBlockOff, 0, blockSz)
	}
}

// searchBackwardLineStart returns the file offset of the line's first
// byte by scanning backward from fileOffset-1 for a newline. Returns -1
// if blockLocal refused to cross a block boundary.
func (lr *LineReader) searchBackwardLineStart(fileOffset Offset, blockLocal bool, startBlockOff BlockOffset) (Offset, error) {
	blockSz := lr.br.BlockSize()
	if fileOffset == 0 {
		return 0, nil
	}

	curBlockOff := startBlockOff
	searchEnd := fileOffset // exclusive

	for {
		blk, err := lr.br.ReadBlock(curBlockOff)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", lr.br.Path(), err)
		}
		blockStart := BlockOffsetToFileOffset(curBlockOff, 0, blockSz)
		localEnd := int(searchEnd - blockStart)
		if localEnd > blk.Len() {
			localEnd = blk.Len()
		}
		rel := bytes.LastIndexByte(blk.Data[:localEnd], newlineByte)
		if rel >= 0 {
			return blockStart + Offset(rel) + 1, nil
		}
		if curBlockOff == 0 {
			return 0, nil
		}
		if blockLocal {
			return -1, nil
		}
		curBlockOff--
		searchEnd = BlockOffsetToFileOffset(curBlockOff+1, 0, blockSz)
	}
}

// buildLine materializes the LineParts spanning [beginOffset, endOffset]
// inclusive.
func (lr *LineReader) buildLine(beginOffset Offset, _ BlockOffset, endOffset Offset) (*Line, error) {
	blockSz := lr.br.BlockSize()
	var parts []LinePart

	cur := beginOffset
	for cur <= endOffset {
		bOff := OffsetToBlockOffset(cur, blockSz)
		blk, err := lr.br.ReadBlock(bOff)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", lr.br.Path(), err)
		}
		idx := OffsetToBlockIndex(cur, blockSz)
		blockFileEnd := BlockOffsetToFileOffset(bOff, blk.Len()-1, blockSz)
		partEndFile := endOffset
		if blockFileEnd < partEndFile {
			partEndFile = blockFileEnd
		}
		partEndIdx := OffsetToBlockIndex(partEndFile, blockSz) + 1

		parts = append(parts, LinePart{
			Block:           blk,
			Begin:           idx,
			End:             partEndIdx,
			FileOffsetBegin: cur,
			BlockOffset:     bOff,
		})
		lr.br.AddRef(bOff)

		cur = blockFileEnd + 1
	}

	if len(parts) == 0 {
		return nil, Done
	}
	return &Line{Parts: parts}, nil
}

// DropLine releases block references held by all but the last LinePart,
// preserving the tail so callers may still inspect the record until the
// next line is committed.
func (lr *LineReader) DropLine(l *Line) {
	for i := 0; i < len(l.Parts)-1; i++ {
		lr.br.Release(l.Parts[i].BlockOffset)
		lr.br.DropBlock(l.Parts[i].BlockOffset)
	}
}

// DropLinesThrough drops every stored line whose last block offset is <=
// blockOff, releasing their block references.
func (lr *LineReader) DropLinesThrough(blockOff BlockOffset) {
	for _, begin := range append([]Offset(nil), lr.idx.sortedBegins...) {
		l := lr.idx.byBegin[begin]
		if l == nil {
			continue
		}
		lastPart := l.Parts[len(l.Parts)-1]
		if lastPart.BlockOffset > blockOff {
			continue
		}
		for _, p := range l.Parts {
			lr.br.Release(p.BlockOffset)
			lr.br.DropBlock(p.BlockOffset)
		}
		lr.idx.remove(begin)
	}
}
