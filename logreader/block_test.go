package logreader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return p
}

func TestBlockArithmetic(t *testing.T) {
	const blockSz = 16
	cases := []struct {
		fileOffset  Offset
		wantBlock   BlockOffset
		wantIndex   int
	}{
		{0, 0, 0},
		{15, 0, 15},
		{16, 1, 0},
		{31, 1, 15},
		{32, 2, 0},
		{100, 6, 4},
	}
	for _, c := range cases {
		gotBlock := OffsetToBlockOffset(c.fileOffset, blockSz)
		gotIndex := OffsetToBlockIndex(c.fileOffset, blockSz)
		if gotBlock != c.wantBlock || gotIndex != c.wantIndex {
			t.Errorf("offset %d: got (block=%d, index=%d), want (block=%d, index=%d)",
				c.fileOffset, gotBlock, gotIndex, c.wantBlock, c.wantIndex)
		}
		back := BlockOffsetToFileOffset(gotBlock, gotIndex, blockSz)
		if back != c.fileOffset {
			t.Errorf("round-trip offset %d: got back %d", c.fileOffset, back)
		}
	}
}

func TestPlainBlockReaderReadsExactBlocks(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	path := writeTempFile(t, "plain.log", data)

	br, err := New(FileType{Path: path, Archive: ArchivePlain}, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := br.BlockCount(); got != 3 {
		t.Fatalf("BlockCount() = %d, want 3", got)
	}

	blk0, err := br.ReadBlock(0)
	if err != nil {
		t.Fatalf("ReadBlock(0): %v", err)
	}
	if len(blk0.Data) != 16 {
		t.Errorf("block 0 len = %d, want 16", len(blk0.Data))
	}

	blk2, err := br.ReadBlock(2)
	if err != nil {
		t.Fatalf("ReadBlock(2): %v", err)
	}
	if len(blk2.Data) != 8 {
		t.Errorf("last block len = %d, want 8 (40 - 2*16)", len(blk2.Data))
	}

	if _, err := br.ReadBlock(3); err != Done {
		t.Errorf("ReadBlock(3) = %v, want Done", err)
	}
}

func TestDropBlockRefusesWhileReferenced(t *testing.T) {
	path := writeTempFile(t, "plain.log", []byte("0123456789abcdef0123456789abcdef"))
	br, err := New(FileType{Path: path, Archive: ArchivePlain}, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	blk, err := br.ReadBlock(0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	_ = blk
	br.AddRef(0) // simulate a Line referencing this block

	if br.DropBlock(0) {
		t.Fatalf("DropBlock succeeded while referenced")
	}
	br.Release(0)
	if !br.DropBlock(0) {
		t.Fatalf("DropBlock failed once unreferenced")
	}
}
