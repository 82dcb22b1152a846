package cmd

import (
	"testing"
	"time"
)

func TestParseDatetimeArgFormats(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2022-01-02T03:04:05", time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2022-01-02 03:04:05", time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2022-01-02", time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"1641092645", time.Unix(1641092645, 0).UTC()},
	}
	for _, c := range cases {
		got, err := parseDatetimeArg(c.in, time.UTC)
		if err != nil {
			t.Errorf("parseDatetimeArg(%q): %v", c.in, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("parseDatetimeArg(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseDatetimeArgRejectsGarbage(t *testing.T) {
	if _, err := parseDatetimeArg("not-a-date", time.UTC); err == nil {
		t.Error("expected an error for an unparseable datetime argument")
	}
}

func TestParseTzOffset(t *testing.T) {
	cases := []struct {
		in         string
		wantOffset int
	}{
		{"", 0},
		{"+0500", 5 * 3600},
		{"-0830", -(8*3600 + 30*60)},
		{"+05:00", 5 * 3600},
	}
	for _, c := range cases {
		loc, err := parseTzOffset(c.in)
		if err != nil {
			t.Errorf("parseTzOffset(%q): %v", c.in, err)
			continue
		}
		_, offset := time.Now().In(loc).Zone()
		if offset != c.wantOffset {
			t.Errorf("parseTzOffset(%q) offset = %d, want %d", c.in, offset, c.wantOffset)
		}
	}
}

func TestParseTzOffsetRejectsInvalid(t *testing.T) {
	for _, in := range []string{"+25:00", "bogus", "+5:00"} {
		if _, err := parseTzOffset(in); err == nil {
			t.Errorf("parseTzOffset(%q): expected error", in)
		}
	}
}

func TestParseBlockSz(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"65536", 65536},
		{"0x10000", 0x10000},
		{"0o200", 0o200},
		{"0b1000", 0b1000},
	}
	for _, c := range cases {
		got, err := parseBlockSz(c.in)
		if err != nil {
			t.Errorf("parseBlockSz(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseBlockSz(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseBlockSzRejectsOutOfRange(t *testing.T) {
	for _, in := range []string{"0", "0xFFFFFFFF", "not-a-number"} {
		if _, err := parseBlockSz(in); err == nil {
			t.Errorf("parseBlockSz(%q): expected error", in)
		}
	}
}
