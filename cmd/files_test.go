package cmd

import (
	"testing"

	"github.com/jtmoon79/s4/logreader"
)

func TestIsSupportedLogFile(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"syslog.log", true},
		{"messages.log.gz", true},
		{"archive.tar.gz", true},
		{"backup.7z", true},
		{"notes.txt", true},
		{"README.md", false},
		{"binary.exe", false},
	}
	for _, c := range cases {
		if got := isSupportedLogFile(c.name); got != c.want {
			t.Errorf("isSupportedLogFile(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDetectContainer(t *testing.T) {
	cases := []struct {
		path string
		want logreader.FileTypeArchive
	}{
		{"/var/log/syslog", logreader.ArchivePlain},
		{"/var/log/syslog.gz", logreader.ArchiveGzip},
		{"/var/log/syslog.bz2", logreader.ArchiveBzip2},
		{"/var/log/syslog.xz", logreader.ArchiveXz},
		{"/var/log/syslog.lz4", logreader.ArchiveLz4},
		{"/backups/logs.tar", logreader.ArchiveTar},
		{"/backups/logs.tar.gz", logreader.ArchiveTar},
		{"/backups/logs.tgz", logreader.ArchiveTar},
		{"/backups/logs.7z", logreader.ArchiveSevenZip},
	}
	for _, c := range cases {
		if got := detectContainer(c.path); got != c.want {
			t.Errorf("detectContainer(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestSplitTypeTag(t *testing.T) {
	path, archive, ok := splitTypeTag("/var/log/custom.dat:gzip")
	if !ok {
		t.Fatalf("splitTypeTag: expected ok=true for a recognized type suffix")
	}
	if path != "/var/log/custom.dat" || archive != logreader.ArchiveGzip {
		t.Errorf("splitTypeTag = (%q, %v), want (/var/log/custom.dat, ArchiveGzip)", path, archive)
	}

	if _, _, ok := splitTypeTag("/var/log/plain.log"); ok {
		t.Errorf("splitTypeTag: expected ok=false with no type suffix")
	}
}
