package merger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jtmoon79/s4/logreader"
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

func TestMergeInterleavesTwoFilesByTimestamp(t *testing.T) {
	pathA := writeTempFile(t, "a.log", []byte(
		"2022-01-01T00:00:01 a-first\n"+
			"2022-01-01T00:00:03 a-second\n"+
			"2022-01-01T00:00:05 a-third\n"))
	pathB := writeTempFile(t, "b.log", []byte(
		"2022-01-01T00:00:02 b-first\n"+
			"2022-01-01T00:00:04 b-second\n"))

	tasks := []Task{
		{FT: logreader.FileType{Path: pathA, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault},
		{FT: logreader.FileType{Path: pathB, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault},
	}

	var buf bytes.Buffer
	summaries := Merge(tasks, &buf, nil)

	want := "2022-01-01T00:00:01 a-first\n" +
		"2022-01-01T00:00:02 b-first\n" +
		"2022-01-01T00:00:03 a-second\n" +
		"2022-01-01T00:00:04 b-second\n" +
		"2022-01-01T00:00:05 a-third\n"
	if got := buf.String(); got != want {
		t.Errorf("merged output =\n%q\nwant\n%q", got, want)
	}

	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].SyslinesProcessed != 3 {
		t.Errorf("task 0 SyslinesProcessed = %d, want 3", summaries[0].SyslinesProcessed)
	}
	if summaries[1].SyslinesProcessed != 2 {
		t.Errorf("task 1 SyslinesProcessed = %d, want 2", summaries[1].SyslinesProcessed)
	}
}

func TestMergeTiesBreakByTaskOrder(t *testing.T) {
	pathA := writeTempFile(t, "a.log", []byte("2022-01-01T00:00:01 from-a\n"))
	pathB := writeTempFile(t, "b.log", []byte("2022-01-01T00:00:01 from-b\n"))

	tasks := []Task{
		{FT: logreader.FileType{Path: pathA, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault},
		{FT: logreader.FileType{Path: pathB, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault},
	}

	var buf bytes.Buffer
	Merge(tasks, &buf, nil)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "from-a") || !strings.Contains(lines[1], "from-b") {
		t.Errorf("tie-break order = %v, want [from-a, from-b]", lines)
	}
}

func TestMergeWithPrefix(t *testing.T) {
	path := writeTempFile(t, "a.log", []byte("2022-01-01T00:00:01 hello\n"))
	tasks := []Task{
		{FT: logreader.FileType{Path: path, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault},
	}

	var buf bytes.Buffer
	prefix := func(s *logreader.Sysline, taskIdx int) []byte {
		return []byte("[0] ")
	}
	Merge(tasks, &buf, prefix)

	want := "[0] 2022-01-01T00:00:01 hello\n"
	if got := buf.String(); got != want {
		t.Errorf("prefixed output = %q, want %q", got, want)
	}
}

func TestMergeAppendsMissingTrailingNewline(t *testing.T) {
	pathA := writeTempFile(t, "a.log", []byte("2022-01-01T00:00:01 a-first\n"))
	// b.log's last line has no trailing newline.
	pathB := writeTempFile(t, "b.log", []byte("2022-01-01T00:00:02 b-first"))

	tasks := []Task{
		{FT: logreader.FileType{Path: pathA, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault},
		{FT: logreader.FileType{Path: pathB, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault},
	}

	var buf bytes.Buffer
	Merge(tasks, &buf, nil)

	want := "2022-01-01T00:00:01 a-first\n2022-01-01T00:00:02 b-first\n"
	if got := buf.String(); got != want {
		t.Errorf("merged output = %q, want %q", got, want)
	}
}

func TestMergeNoCacheMatchesCachedOutput(t *testing.T) {
	path := writeTempFile(t, "a.log", []byte(
		"2022-01-01T00:00:01 first\n"+
			"2022-01-01T00:00:02 second\n"))

	cached := []Task{{FT: logreader.FileType{Path: path, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault}}
	uncached := []Task{{FT: logreader.FileType{Path: path, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault, NoCache: true}}

	var bufCached, bufUncached bytes.Buffer
	Merge(cached, &bufCached, nil)
	Merge(uncached, &bufUncached, nil)

	if bufCached.String() != bufUncached.String() {
		t.Errorf("cached output = %q, uncached output = %q", bufCached.String(), bufUncached.String())
	}
}

func TestMergeEmptyFileProducesWarningSummary(t *testing.T) {
	path := writeTempFile(t, "empty.log", []byte{})
	tasks := []Task{
		{FT: logreader.FileType{Path: path, Archive: logreader.ArchivePlain}, BlockSz: logreader.BlockSzDefault},
	}

	var buf bytes.Buffer
	summaries := Merge(tasks, &buf, nil)

	if buf.Len() != 0 {
		t.Errorf("expected no output for empty file, got %q", buf.String())
	}
	if summaries[0].Warning == "" {
		t.Errorf("expected a warning summary for an empty file")
	}
}
