package logreader

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"time"
)

// memberSource is the shared shape for archive-member containers (tar,
// 7z): at construction, locate the named member and record its
// header-reported size/mtime; on first read, extract the full member
// into a single in-memory buffer and serve blocks from it.
type memberSource struct {
	size  int64
	mtime time.Time
	data  []byte // populated lazily on first ReadBlock
}

func (br *BlockReader) openTarMember() error {
	f, err := os.Open(br.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	defer f.Close()

	archiveInfo, _ := f.Stat()
	archiveMtime := time.Time{}
	if archiveInfo != nil {
		archiveMtime = archiveInfo.ModTime()
	}

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("%w: %s in %s", ErrMemberNotFound, br.ft.Subpath, br.path)
		}
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrTruncatedContainer, br.path, err)
		}
		if hdr.Name != br.ft.Subpath {
			continue
		}
		if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != tar.TypeRegA {
			return fmt.Errorf("%w: %s in %s is not a regular file", ErrWrongType, br.ft.Subpath, br.path)
		}
		mtime := hdr.ModTime
		if mtime.IsZero() {
			// Fall back to the enclosing archive's mtime when the
			// member's own mtime is absent.
			mtime = archiveMtime
		}
		br.fileSize = hdr.Size
		br.mtime = mtime
		br.member = &memberSource{size: hdr.Size, mtime: mtime}
		return nil
	}
}

// materializeTarMember re-opens the tar, seeks to the named entry, and
// reads it fully into br.member.data.
func (br *BlockReader) materializeTarMember() error {
	f, err := os.Open(br.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("%w: %s in %s", ErrMemberNotFound, br.ft.Subpath, br.path)
		}
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrTruncatedContainer, br.path, err)
		}
		if hdr.Name != br.ft.Subpath {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("%w: reading member %s in %s: %v", ErrTruncatedContainer, br.ft.Subpath, br.path, err)
		}
		br.member.data = data
		return nil
	}
}

func (br *BlockReader) readMemberBlock(b BlockOffset) (*Block, error) {
	if br.member.data == nil {
		var err error
		if br.ft.Archive == ArchiveTar {
			err = br.materializeTarMember()
		} else {
			err = br.materializeSevenZipMember()
		}
		if err != nil {
			return nil, br.setFatal(err)
		}
	}
	return readFromWholeBuffer(br, br.member.data, b)
}
