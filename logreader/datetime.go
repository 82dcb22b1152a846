package logreader

import (
	"regexp"
	"time"
)

// DtFlags describes which components a DateTimeParseInstr's capture
// groups produce.
type DtFlags struct {
	HasYear        bool
	HasTimezone    bool
	RequiresTwoDigitRun bool // the EZCHECKD2 fast-reject filter applies
	HasFourDigitYear    bool // the EZCHECK12 fast-reject filter applies
}

// DateTimeParseInstr is a static catalog entry: a byte-range window, a
// compiled regex with named capture groups, flags, and the entry's
// catalog index.
type DateTimeParseInstr struct {
	ID        int
	Name      string
	WindowMin int // minimum line length required even to try this window
	Start     int // byte offset the regex window begins at
	End       int // byte offset the regex window ends at (0 = to line end)
	Regex     *regexp.Regexp
	Flags     DtFlags
	// Convert builds a time.Time from the regex submatches, applying
	// defaultOffset when the format has no timezone of its own. year is
	// the placeholder used when
	// Flags.HasYear is false; the caller overwrites it during year
	// reconstruction.
	Convert func(m []string, names []string, year int, defaultOffset *time.Location) (time.Time, error)
}

// minLineLen is the fixed minimum line length (8 bytes) below which
// Recognize fails fast.
const minLineLen = 8

// Recognizer scores/extracts a timestamp from a line's bytes using an
// ordered subset of the catalog.
type Recognizer struct {
	catalog []*DateTimeParseInstr

	// ezCheck12 / ezCheckD2 memoize the longest window already confirmed
	// to contain a qualifying byte, so shorter later windows can skip
	// rescanning.
	ezCheck12Longest int
	ezCheck12Found   bool
	ezCheckD2Longest int
	ezCheckD2Found   bool
}

func NewRecognizer() *Recognizer {
	return &Recognizer{catalog: append([]*DateTimeParseInstr(nil), catalog...)}
}

// ResetMemo clears the fast-reject memoization; called once per line.
func (r *Recognizer) ResetMemo() {
	r.ezCheck12Longest, r.ezCheck12Found = 0, false
	r.ezCheckD2Longest, r.ezCheckD2Found = 0, false
}

// DateTimeMatch is the result of a successful Recognize call.
type DateTimeMatch struct {
	Begin, End int
	DateTime   time.Time
	PatternID  int
}

// Recognize searches line using the ordered candidate indices (a caller
// supplied subset of the catalog), returning the first match or Done.
func (r *Recognizer) Recognize(line []byte, candidates []int, year int, defaultOffset *time.Location) (DateTimeMatch, error) {
	if len(line) < minLineLen {
		return DateTimeMatch{}, Done
	}
	r.ResetMemo()

	for _, idx := range candidates {
		if idx < 0 || idx >= len(r.catalog) {
			continue
		}
		instr := r.catalog[idx]
		if len(line) < instr.WindowMin || len(line) < instr.Start {
			continue
		}

		end := instr.End
		if end == 0 || end > len(line) {
			end = len(line)
		}
		if instr.Start >= end {
			continue
		}
		window := line[instr.Start:end]

		if instr.Flags.HasFourDigitYear && !r.checkEZ12(window) {
			continue
		}
		if instr.Flags.RequiresTwoDigitRun && !r.checkEZD2(window) {
			continue
		}

		m := instr.Regex.FindSubmatch(window)
		if m == nil {
			continue
		}
		names := instr.Regex.SubexpNames()
		strs := make([]string, len(m))
		for i, b := range m {
			strs[i] = string(b)
		}
		dt, err := instr.Convert(strs, names, year, defaultOffset)
		if err != nil {
			continue
		}
		loc := instr.Regex.FindSubmatchIndex(window)
		begin := instr.Start + loc[0]
		endIdx := instr.Start + loc[1]
		return DateTimeMatch{Begin: begin, End: endIdx, DateTime: dt, PatternID: instr.ID}, nil
	}
	return DateTimeMatch{}, Done
}

// checkEZ12 is the EZCHECK12 fast-reject filter: the window must contain
// at least one '1' or '2' byte, required for any 4-digit-Gregorian-year
// pattern.
func (r *Recognizer) checkEZ12(window []byte) bool {
	if r.ezCheck12Found && len(window) <= r.ezCheck12Longest {
		return true
	}
	for _, b := range window {
		if b == '1' || b == '2' {
			r.ezCheck12Found = true
			if len(window) > r.ezCheck12Longest {
				r.ezCheck12Longest = len(window)
			}
			return true
		}
	}
	if len(window) > r.ezCheck12Longest {
		r.ezCheck12Longest = len(window)
	}
	return false
}

// checkEZD2 is the EZCHECKD2 fast-reject filter: the window must contain
// two adjacent ASCII digits.
func (r *Recognizer) checkEZD2(window []byte) bool {
	if r.ezCheckD2Found && len(window) <= r.ezCheckD2Longest {
		return true
	}
	for i := 0; i+1 < len(window); i++ {
		if isDigit(window[i]) && isDigit(window[i+1]) {
			r.ezCheckD2Found = true
			if len(window) > r.ezCheckD2Longest {
				r.ezCheckD2Longest = len(window)
			}
			return true
		}
	}
	if len(window) > r.ezCheckD2Longest {
		r.ezCheckD2Longest = len(window)
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// CatalogLen reports how many entries the catalog holds, for callers
// seeding the initial "full catalog" candidate order.
func CatalogLen() int { return len(catalog) }
