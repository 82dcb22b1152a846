package logreader

import (
	"testing"
	"time"
)

func TestProcessorPlainFileInRangeOrder(t *testing.T) {
	data := "2022-01-01T00:00:01 first\n" +
		"2022-01-01T00:00:02 second\n" +
		"2022-01-01T00:00:03 third\n"
	path := writeTempFile(t, "plain.log", []byte(data))

	p := NewProcessor(FileType{Path: path, Archive: ArchivePlain}, BlockSzDefault, nil, nil, time.UTC)
	var got []*Sysline
	summary := p.Run(func(s *Sysline) { got = append(got, s) })

	if summary.Err != nil {
		t.Fatalf("Run() summary.Err = %v", summary.Err)
	}
	if summary.Warning != "" {
		t.Fatalf("Run() summary.Warning = %q, want none", summary.Warning)
	}
	if len(got) != 3 {
		t.Fatalf("got %d syslines, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].DateTime.After(got[i-1].DateTime) {
			t.Errorf("sysline %d DateTime %v not after %d's %v", i, got[i].DateTime, i-1, got[i-1].DateTime)
		}
	}
	if summary.SyslinesProcessed != 3 {
		t.Errorf("SyslinesProcessed = %d, want 3", summary.SyslinesProcessed)
	}
}

func TestProcessorEmptyFileWarning(t *testing.T) {
	path := writeTempFile(t, "empty.log", []byte{})
	p := NewProcessor(FileType{Path: path, Archive: ArchivePlain}, BlockSzDefault, nil, nil, time.UTC)
	summary := p.Run(nil)
	if summary.Warning != ErrEmptyFile.Error() {
		t.Errorf("Warning = %q, want %q", summary.Warning, ErrEmptyFile.Error())
	}
}

func TestProcessorNoSyslinesFound(t *testing.T) {
	path := writeTempFile(t, "noTimestamps.log", []byte("just some text\nwith no dates at all\n"))
	p := NewProcessor(FileType{Path: path, Archive: ArchivePlain}, BlockSzDefault, nil, nil, time.UTC)
	summary := p.Run(nil)
	if summary.Warning != ErrNoSyslinesFound.Error() {
		t.Errorf("Warning = %q, want %q", summary.Warning, ErrNoSyslinesFound.Error())
	}
}

func TestProcessorAfterFilterExcludesEarlier(t *testing.T) {
	data := "2022-01-01T00:00:01 first\n" +
		"2022-01-01T00:00:02 second\n" +
		"2022-01-01T00:00:03 third\n"
	path := writeTempFile(t, "plain.log", []byte(data))

	after := time.Date(2022, 1, 1, 0, 0, 2, 0, time.UTC)
	p := NewProcessor(FileType{Path: path, Archive: ArchivePlain}, BlockSzDefault, &after, nil, time.UTC)
	var got []*Sysline
	summary := p.Run(func(s *Sysline) { got = append(got, s) })

	if summary.Err != nil {
		t.Fatalf("Run() summary.Err = %v", summary.Err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d syslines, want 2", len(got))
	}
	for _, s := range got {
		if s.DateTime.Before(after) {
			t.Errorf("sysline %v before after-filter %v", s.DateTime, after)
		}
	}
}

func TestProcessorYearReconstructionAssignsDecreasingYears(t *testing.T) {
	// Dec 31 of the prior year, then Jan 1 of the mtime's year: a
	// backward jump greater than yearJumpThreshold should decrement the
	// year for the earlier (first in file) record.
	data := "Dec 31 23:00:00 old-year\n" +
		"Jan 1 00:30:00 new-year\n"
	path := writeTempFile(t, "noyear.log", []byte(data))

	p := NewProcessor(FileType{Path: path, Archive: ArchivePlain}, BlockSzDefault, nil, nil, time.UTC)
	var got []*Sysline
	summary := p.Run(func(s *Sysline) { got = append(got, s) })

	if summary.Err != nil {
		t.Fatalf("Run() summary.Err = %v", summary.Err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d syslines, want 2", len(got))
	}
	if got[0].DateTime.Year() == got[1].DateTime.Year() {
		t.Errorf("expected a year rollover between %v and %v", got[0].DateTime, got[1].DateTime)
	}
	if got[1].DateTime.Before(got[0].DateTime) {
		t.Errorf("global order violated after reconstruction: %v before %v", got[1].DateTime, got[0].DateTime)
	}
}

// TestProcessorCachesEnabledVsDisabledIdenticalOutput is a property test:
// the block and sysline LRUs are a performance optimization, not part of
// the record-extraction algorithm, so a file run with caches on and off
// must emit byte-identical records in the same order.
func TestProcessorCachesEnabledVsDisabledIdenticalOutput(t *testing.T) {
	var data string
	for i := 0; i < 40; i++ {
		data += time.Date(2022, 1, 1, 0, 0, i, 0, time.UTC).Format("2006-01-02T15:04:05") +
			" line " + string(rune('a'+i%26)) + "\n" +
			" a continuation line with no timestamp\n"
	}
	path := writeTempFile(t, "repeated.log", []byte(data))

	run := func(cachesEnabled bool) ([]time.Time, [][]byte, Summary) {
		p := NewProcessor(FileType{Path: path, Archive: ArchivePlain}, 64, nil, nil, time.UTC)
		p.SetCachesEnabled(cachesEnabled)
		var dts []time.Time
		var bodies [][]byte
		summary := p.Run(func(s *Sysline) {
			dts = append(dts, s.DateTime)
			bodies = append(bodies, s.Bytes())
		})
		return dts, bodies, summary
	}

	dtsOn, bodiesOn, summaryOn := run(true)
	dtsOff, bodiesOff, summaryOff := run(false)

	if summaryOn.Err != nil || summaryOff.Err != nil {
		t.Fatalf("Run() errs: cached=%v uncached=%v", summaryOn.Err, summaryOff.Err)
	}
	if len(dtsOn) != len(dtsOff) {
		t.Fatalf("got %d syslines cached, %d uncached", len(dtsOn), len(dtsOff))
	}
	for i := range dtsOn {
		if !dtsOn[i].Equal(dtsOff[i]) {
			t.Errorf("sysline %d: DateTime cached=%v uncached=%v", i, dtsOn[i], dtsOff[i])
		}
		if string(bodiesOn[i]) != string(bodiesOff[i]) {
			t.Errorf("sysline %d: bytes differ between cached and uncached runs", i)
		}
	}
	if summaryOn.CacheHitsBlock == 0 && summaryOn.CacheHitsSysline == 0 {
		t.Error("cached run recorded zero cache hits of any kind; test fixture may not be exercising the caches")
	}
}
