package logreader

import (
	"archive/tar"
	"fmt"
	"io"
	"os"

	"github.com/bodgit/sevenzip"
)

// ListMembers enumerates the regular-file members of a tar or 7z archive
// at path, in archive order. Used by file discovery to expand one
// archive argument into one FileType per log file it contains.
func ListMembers(path string, archive FileTypeArchive) ([]string, error) {
	switch archive {
	case ArchiveTar:
		return listTarMembers(path)
	case ArchiveSevenZip:
		return listSevenZipMembers(path)
	default:
		return nil, fmt.Errorf("%w: cannot list members of %v", ErrWrongType, archive)
	}
}

func listTarMembers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	defer f.Close()

	var names []string
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrTruncatedContainer, path, err)
		}
		if hdr.Typeflag == tar.TypeReg || hdr.Typeflag == tar.TypeRegA {
			names = append(names, hdr.Name)
		}
	}
	return names, nil
}

func listSevenZipMembers(path string) ([]string, error) {
	zr, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrTruncatedContainer, path, err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}
