package logreader

import (
	"fmt"
	"io"
	"os"

	"github.com/bodgit/sevenzip"
)

// 7z archive members are read the same way tar members are: no random
// access into the compressed stream, materialize the member fully on
// first touch. github.com/bodgit/sevenzip does the container parsing.
func (br *BlockReader) openSevenZipMember() error {
	zr, err := sevenzip.OpenReader(br.path)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrTruncatedContainer, br.path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != br.ft.Subpath {
			continue
		}
		br.fileSize = int64(f.UncompressedSize)
		br.mtime = f.Modified
		if br.mtime.IsZero() {
			// Fall back to the enclosing archive's mtime when the
			// member's own mtime is absent.
			if fi, err := os.Stat(br.path); err == nil {
				br.mtime = fi.ModTime()
			}
		}
		br.member = &memberSource{size: br.fileSize, mtime: br.mtime}
		return nil
	}
	return fmt.Errorf("%w: %s in %s", ErrMemberNotFound, br.ft.Subpath, br.path)
}

func (br *BlockReader) materializeSevenZipMember() error {
	zr, err := sevenzip.OpenReader(br.path)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrTruncatedContainer, br.path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != br.ft.Subpath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: opening member %s in %s: %v", ErrTruncatedContainer, br.ft.Subpath, br.path, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("%w: reading member %s in %s: %v", ErrTruncatedContainer, br.ft.Subpath, br.path, err)
		}
		br.member.data = data
		return nil
	}
	return fmt.Errorf("%w: %s in %s", ErrMemberNotFound, br.ft.Subpath, br.path)
}
