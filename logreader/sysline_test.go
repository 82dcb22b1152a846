package logreader

import (
	"testing"
	"time"
)

func newTestSyslineReader(t *testing.T, data []byte) (*SyslineReader, *BlockReader) {
	t.Helper()
	path := writeTempFile(t, "sysline.log", data)
	br, err := New(FileType{Path: path, Archive: ArchivePlain}, BlockSzDefault)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	lr := NewLineReader(br)
	sr := NewSyslineReader(lr, time.UTC)
	sr.SetYear(time.Now().Year())
	return sr, br
}

func TestFindSyslineAssemblesContinuationLines(t *testing.T) {
	data := "2022-01-01T00:00:01 first line\n" +
		"  continuation one\n" +
		"  continuation two\n" +
		"2022-01-01T00:00:02 second\n"
	sr, _ := newTestSyslineReader(t, []byte(data))

	next, s, err := sr.FindSysline(0)
	if err != nil {
		t.Fatalf("FindSysline(0): %v", err)
	}
	if len(s.Lines) != 3 {
		t.Errorf("got %d lines in first sysline, want 3 (1 timestamped + 2 continuation)", len(s.Lines))
	}
	if s.DateTime.Hour() != 0 || s.DateTime.Minute() != 0 || s.DateTime.Second() != 1 {
		t.Errorf("first sysline DateTime = %v, want 00:00:01", s.DateTime)
	}

	_, s2, err := sr.FindSysline(next)
	if err != nil {
		t.Fatalf("FindSysline(next): %v", err)
	}
	if len(s2.Lines) != 1 {
		t.Errorf("got %d lines in second sysline, want 1", len(s2.Lines))
	}
}

func TestFindSyslineNoTimestampReturnsDone(t *testing.T) {
	sr, _ := newTestSyslineReader(t, []byte("no timestamp here\nor here either\n"))
	_, _, err := sr.FindSysline(0)
	if err != Done {
		t.Errorf("FindSysline() err = %v, want Done", err)
	}
}

func TestFindSyslineRepeatedCallsReturnSameSysline(t *testing.T) {
	data := "2022-01-01T00:00:01 only line\n"
	sr, _ := newTestSyslineReader(t, []byte(data))

	_, s1, err := sr.FindSysline(0)
	if err != nil {
		t.Fatalf("FindSysline(0): %v", err)
	}
	_, s2, err := sr.FindSysline(0)
	if err != nil {
		t.Fatalf("FindSysline(0) second call: %v", err)
	}
	if s1 != s2 {
		t.Errorf("repeated FindSysline(0) returned different Sysline pointers")
	}
}

func TestLockPatternFixesWinner(t *testing.T) {
	data := "2022-01-01T00:00:01 a\n" +
		"2022-01-01T00:00:02 b\n" +
		"2022-01-01T00:00:03 c\n"
	sr, _ := newTestSyslineReader(t, []byte(data))

	cur := Offset(0)
	for {
		next, _, err := sr.FindSysline(cur)
		if err == Done {
			break
		}
		if err != nil {
			t.Fatalf("FindSysline: %v", err)
		}
		cur = next
	}

	if sr.PatternLocked() {
		t.Fatalf("pattern should not be locked before LockPattern()")
	}
	sr.LockPattern()
	if !sr.PatternLocked() {
		t.Fatalf("pattern should be locked after LockPattern()")
	}
	if sr.WinningPatternID() < 0 {
		t.Errorf("WinningPatternID() = %d, want >= 0 once locked", sr.WinningPatternID())
	}
}

func TestDropDataReleasesOldSyslines(t *testing.T) {
	data := "2022-01-01T00:00:01 first\n" +
		"2022-01-01T00:00:02 second\n"
	sr, _ := newTestSyslineReader(t, []byte(data))

	cur := Offset(0)
	for {
		next, _, err := sr.FindSysline(cur)
		if err == Done {
			break
		}
		if err != nil {
			t.Fatalf("FindSysline: %v", err)
		}
		cur = next
	}

	if len(sr.byBeginSysline) != 2 {
		t.Fatalf("got %d stored syslines, want 2", len(sr.byBeginSysline))
	}

	sr.DropData(^BlockOffset(0))
	if len(sr.byBeginSysline) != 0 {
		t.Errorf("got %d stored syslines after DropData(max), want 0", len(sr.byBeginSysline))
	}
}

func TestForgetProbeSyslinesClearsState(t *testing.T) {
	data := "2022-01-01T00:00:01 first\n"
	sr, _ := newTestSyslineReader(t, []byte(data))

	if _, _, err := sr.FindSysline(0); err != nil {
		t.Fatalf("FindSysline: %v", err)
	}
	if len(sr.byBeginSysline) == 0 {
		t.Fatalf("expected at least one stored sysline before forgetting")
	}

	sr.ForgetProbeSyslines()
	if len(sr.byBeginSysline) != 0 {
		t.Errorf("got %d stored syslines after ForgetProbeSyslines, want 0", len(sr.byBeginSysline))
	}
	first, last := sr.FirstLastTimestamps()
	if !first.IsZero() || !last.IsZero() {
		t.Errorf("FirstLastTimestamps() = (%v, %v), want both zero after forgetting", first, last)
	}
}

func TestReassignUpdatesStoredTimestamp(t *testing.T) {
	data := "Dec 31 23:00:00 rollover\n"
	sr, _ := newTestSyslineReader(t, []byte(data))

	_, s, err := sr.FindSysline(0)
	if err != nil {
		t.Fatalf("FindSysline: %v", err)
	}
	begin := s.FileOffsetBegin()

	corrected := time.Date(2021, time.December, 31, 23, 0, 0, 0, time.UTC)
	sr.Reassign(begin, corrected)

	if !sr.byBeginSysline[begin].DateTime.Equal(corrected) {
		t.Errorf("Reassign did not update stored DateTime: got %v, want %v", sr.byBeginSysline[begin].DateTime, corrected)
	}
}
