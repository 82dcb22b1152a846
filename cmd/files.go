package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jtmoon79/s4/logreader"
)

// collectFiles gathers all candidate log files from the provided
// arguments. Each argument can be an individual file, a glob pattern, or
// a directory (scanned non-recursively for supported log files).
func collectFiles(args []string) []string {
	var files []string

	for _, arg := range args {
		if arg == "-" {
			files = append(files, arg)
			continue
		}

		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			dirFiles, err := gatherLogFiles(arg)
			if err != nil {
				log.Printf("[WARN] failed to read directory %s: %v", arg, err)
				continue
			}
			files = append(files, dirFiles...)
			continue
		}

		matches, err := filepath.Glob(arg)
		if err != nil {
			log.Printf("[WARN] invalid pattern %s: %v", arg, err)
			continue
		}
		if len(matches) == 0 {
			log.Printf("[WARN] no files match pattern: %s", arg)
			continue
		}
		files = append(files, matches...)
	}

	return files
}

// gatherLogFiles scans a directory for supported log files, non-recursive.
func gatherLogFiles(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.Readdir(-1)
	if err != nil {
		return nil, err
	}

	var logFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isSupportedLogFile(entry.Name()) {
			logFiles = append(logFiles, filepath.Join(dir, entry.Name()))
		}
	}
	return logFiles, nil
}

// supportedExtensions lists the extensions collectFiles will treat as log
// input when scanning a directory. Individually-named arguments are not
// filtered against this list (the user asked for them by name).
var supportedExtensions = []string{
	".log", ".txt", ".syslog", ".messages",
	".log.gz", ".txt.gz", ".gz",
	".log.bz2", ".bz2",
	".log.xz", ".xz",
	".log.lz4", ".lz4",
	".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz",
	".7z",
}

func isSupportedLogFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// archiveExtensions maps a lowercase filename suffix to the container
// strategy BlockReader must use, checked longest-suffix-first so
// ".tar.gz" matches before the bare ".gz" entry.
var archiveExtensions = []struct {
	suffix  string
	archive logreader.FileTypeArchive
}{
	{".tar.gz", logreader.ArchiveTar},
	{".tgz", logreader.ArchiveTar},
	{".tar.bz2", logreader.ArchiveTar},
	{".tar.xz", logreader.ArchiveTar},
	{".tar", logreader.ArchiveTar},
	{".7z", logreader.ArchiveSevenZip},
	{".gz", logreader.ArchiveGzip},
	{".bz2", logreader.ArchiveBzip2},
	{".xz", logreader.ArchiveXz},
	{".lz4", logreader.ArchiveLz4},
}

// detectContainer infers the outer container format from a file's
// extension. A tar archive compressed with gzip/bzip2/xz (.tar.gz,
// .tar.bz2, .tar.xz, .tgz) is still reported as ArchiveTar. The tar
// readers open the file with archive/tar directly and do not decompress
// it first, so only uncompressed tar archives can be read.
func detectContainer(path string) logreader.FileTypeArchive {
	lower := strings.ToLower(path)
	for _, e := range archiveExtensions {
		if strings.HasSuffix(lower, e.suffix) {
			return e.archive
		}
	}
	return logreader.ArchivePlain
}

// buildFileTypes expands each collected path into one or more FileType
// values, enumerating archive members for Tar and SevenZip containers so
// that each log file embedded in an archive is processed independently.
func buildFileTypes(paths []string) ([]logreader.FileType, error) {
	var out []logreader.FileType

	for _, path := range paths {
		if path == "-" {
			out = append(out, logreader.FileType{Path: path, Archive: logreader.ArchivePlain})
			continue
		}

		archive := detectContainer(path)
		if archive != logreader.ArchiveTar && archive != logreader.ArchiveSevenZip {
			out = append(out, logreader.FileType{Path: path, Archive: archive})
			continue
		}

		members, err := logreader.ListMembers(path, archive)
		if err != nil {
			return nil, fmt.Errorf("cmd: listing members of %s: %w", path, err)
		}
		if len(members) == 0 {
			log.Printf("[WARN] %s contains no regular-file members", path)
			continue
		}
		for _, m := range members {
			if !isSupportedLogFile(m) {
				continue
			}
			out = append(out, logreader.FileType{Path: path, Archive: archive, Subpath: m})
		}
	}

	return out, nil
}
