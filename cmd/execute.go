package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jtmoon79/s4/logreader"
	"github.com/jtmoon79/s4/merger"
)

// archiveNames maps the --type / "path:type" tag vocabulary to
// FileTypeArchive, the inverse of FileTypeArchive.String.
var archiveNames = map[string]logreader.FileTypeArchive{
	"plain": logreader.ArchivePlain,
	"gzip":  logreader.ArchiveGzip,
	"gz":    logreader.ArchiveGzip,
	"bzip2": logreader.ArchiveBzip2,
	"bz2":   logreader.ArchiveBzip2,
	"xz":    logreader.ArchiveXz,
	"lz4":   logreader.ArchiveLz4,
	"tar":   logreader.ArchiveTar,
	"7z":    logreader.ArchiveSevenZip,
}

// splitTypeTag splits an argument of the form "path:type" into its path
// and archive, when the suffix after the last colon names a known
// archive type. Arguments with no such suffix are returned unchanged
// with ok=false, left to directory/glob expansion and extension-based
// autodetection.
func splitTypeTag(arg string) (path string, archive logreader.FileTypeArchive, ok bool) {
	i := strings.LastIndex(arg, ":")
	if i < 0 {
		return arg, 0, false
	}
	if a, known := archiveNames[strings.ToLower(arg[i+1:])]; known {
		return arg[:i], a, true
	}
	return arg, 0, false
}

func executeSearch(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	after, before, defaultOffset, blockSz, err := parseFlags()
	if err != nil {
		return err
	}

	var tagged []string
	fileTypes := make([]logreader.FileType, 0, len(args))
	for _, arg := range args {
		if path, archive, ok := splitTypeTag(arg); ok {
			fileTypes = append(fileTypes, logreader.FileType{Path: path, Archive: archive})
			continue
		}
		tagged = append(tagged, arg)
	}

	collected := collectFiles(tagged)
	if len(collected) == 0 && len(fileTypes) == 0 {
		fmt.Fprintln(os.Stderr, "[INFO] no log files found")
		return nil
	}

	discovered, err := buildFileTypes(collected)
	if err != nil {
		return err
	}
	nExplicit := len(fileTypes)
	fileTypes = append(fileTypes, discovered...)

	if fileTypeFlag != "" {
		if a, known := archiveNames[strings.ToLower(fileTypeFlag)]; known {
			for i := nExplicit; i < len(fileTypes); i++ {
				if fileTypes[i].Archive == logreader.ArchivePlain {
					fileTypes[i].Archive = a
				}
			}
		} else {
			log.Printf("[WARN] unknown --type %q, ignoring", fileTypeFlag)
		}
	}

	tasks := make([]merger.Task, len(fileTypes))
	for i, ft := range fileTypes {
		tasks[i] = merger.Task{
			FT:            ft,
			BlockSz:       blockSz,
			After:         after,
			Before:        before,
			DefaultOffset: defaultOffset,
			NoCache:       noCacheFlag,
		}
	}

	prefix := buildPrefixFunc(fileTypes)
	summaries := merger.Merge(tasks, os.Stdout, prefix)

	if summaryFlag {
		printSummaries(summaries, fileTypes, time.Since(startTime))
	}
	return nil
}

// parseFlags validates and converts the root command's string flags
// into the typed values Processor and merger.Task need.
func parseFlags() (after, before *time.Time, defaultOffset *time.Location, blockSz uint32, err error) {
	defaultOffset, err = parseTzOffset(tzOffsetFlag)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	if dtAfterFlag != "" {
		t, err := parseDatetimeArg(dtAfterFlag, defaultOffset)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("cmd: --dt-after: %w", err)
		}
		after = &t
	}
	if dtBeforeFlag != "" {
		t, err := parseDatetimeArg(dtBeforeFlag, defaultOffset)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("cmd: --dt-before: %w", err)
		}
		before = &t
	}

	blockSz = logreader.BlockSzDefault
	if blockszFlag != "" {
		blockSz, err = parseBlockSz(blockszFlag)
		if err != nil {
			return nil, nil, nil, 0, err
		}
	}

	return after, before, defaultOffset, blockSz, nil
}

const (
	ansiReset = "\x1b[0m"
	ansiDim   = "\x1b[2m"
)

// buildPrefixFunc returns the per-sysline prefix writer matching
// --prepend-filename/--prepend-utc/--color, or nil when neither
// --prepend-filename nor --prepend-utc is set.
func buildPrefixFunc(fileTypes []logreader.FileType) func(*logreader.Sysline, int) []byte {
	if !prependFilenameFlag && !prependUTCFlag {
		return nil
	}
	useColor := colorFlag && !noColorFlag

	return func(s *logreader.Sysline, taskIdx int) []byte {
		var b strings.Builder
		if useColor {
			b.WriteString(ansiDim)
		}
		if prependFilenameFlag {
			ft := fileTypes[taskIdx]
			if ft.Subpath != "" {
				fmt.Fprintf(&b, "%s:%s: ", ft.Path, ft.Subpath)
			} else {
				fmt.Fprintf(&b, "%s: ", ft.Path)
			}
		}
		if prependUTCFlag {
			fmt.Fprintf(&b, "%s: ", s.DateTime.UTC().Format(time.RFC3339))
		}
		if useColor {
			b.WriteString(ansiReset)
		}
		return []byte(b.String())
	}
}

func printSummaries(summaries []logreader.Summary, fileTypes []logreader.FileType, elapsed time.Duration) {
	var totalLines, totalSyslines, totalBytes int64
	for i, s := range summaries {
		label := fileTypes[i].Path
		if fileTypes[i].Subpath != "" {
			label = fmt.Sprintf("%s:%s", label, fileTypes[i].Subpath)
		}
		if s.Err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %s: %v\n", label, s.Err)
		} else if s.Warning != "" {
			fmt.Fprintf(os.Stderr, "[WARN] %s: %s\n", label, s.Warning)
		} else {
			fmt.Fprintf(os.Stderr, "[INFO] %s: %d syslines, %d lines, %s (%s)\n",
				label, s.SyslinesProcessed, s.LinesProcessed, formatBytes(s.BytesRead), s.PatternName)
		}
		totalLines += s.LinesProcessed
		totalSyslines += s.SyslinesProcessed
		totalBytes += s.BytesRead
	}
	fmt.Fprintf(os.Stderr, "[INFO] %d files, %d syslines, %d lines, %s in %.2fs\n",
		len(summaries), totalSyslines, totalLines, formatBytes(totalBytes), elapsed.Seconds())
}

// formatBytes converts a byte count to a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(b)/float64(div), "kMGTPE"[exp])
}
