package logreader

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Sysline is an ordered, non-empty sequence of Lines whose first line
// contains a recognized timestamp.
type Sysline struct {
	Lines       []*Line
	DtBegin     int // byte index within the first line's flattened bytes
	DtEnd       int
	DateTime    time.Time
	PatternID   int
}

func (s *Sysline) FileOffsetBegin() Offset { return s.Lines[0].FileOffsetBegin() }
func (s *Sysline) FileOffsetEnd() Offset   { return s.Lines[len(s.Lines)-1].FileOffsetEnd() }

// IsSyslineLast reports whether s's last line reached EOF without a
// trailing newline — true only for a file's final record.
func (s *Sysline) IsSyslineLast() bool {
	last := s.Lines[len(s.Lines)-1]
	return !last.EndsWithNewline()
}

// LastBlockOffset is the highest block offset any constituent Line
// touches; used by drop_data.
func (s *Sysline) LastBlockOffset() BlockOffset {
	last := s.Lines[len(s.Lines)-1]
	return last.Parts[len(last.Parts)-1].BlockOffset
}

// Bytes concatenates every Line's bytes in file order — the raw bytes
// emitted to stdout for each record.
func (s *Sysline) Bytes() []byte {
	n := 0
	for _, l := range s.Lines {
		for _, p := range l.Parts {
			n += p.Len()
		}
	}
	buf := make([]byte, 0, n)
	for _, l := range s.Lines {
		for _, p := range l.Parts {
			buf = append(buf, p.Bytes()...)
		}
	}
	return buf
}

// patternCounter tracks per-catalog-entry usage while the winning
// pattern has not yet been learned.
type patternCounter struct {
	counts []int64
	locked bool
	winner int
}

func newPatternCounter() *patternCounter {
	return &patternCounter{counts: make([]int64, CatalogLen())}
}

// candidates returns the catalog-index order to offer the recognizer:
// the single winner once learned, otherwise the full catalog ordered by
// descending usage (ties broken by ascending catalog index).
func (pc *patternCounter) candidates() []int {
	if pc.locked {
		return []int{pc.winner}
	}
	order := make([]int, len(pc.counts))
	for i := range order {
		order[i] = i
	}
	// simple stable insertion sort by descending count; catalogs are
	// small (single digits of entries) so this stays O(n^2) in practice.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && pc.counts[order[j]] > pc.counts[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order
}

func (pc *patternCounter) record(id int) {
	if id >= 0 && id < len(pc.counts) {
		pc.counts[id]++
	}
}

// analyze performs the one-time "keep only the single highest-counted
// entry" transition.
func (pc *patternCounter) analyze() {
	if pc.locked {
		return
	}
	best := 0
	for i := 1; i < len(pc.counts); i++ {
		if pc.counts[i] > pc.counts[best] {
			best = i
		}
	}
	pc.winner = best
	pc.locked = true
}

// syslineCacheSize is a modest LRU capacity, enough to cover a
// reasonable working set of recently visited records without tracking
// the whole file.
const syslineCacheSize = 64

// SyslineReader aggregates Lines into Syslines and discovers the file's
// timestamp format.
type SyslineReader struct {
	lr  *LineReader
	rec *Recognizer
	pc  *patternCounter

	defaultOffset *time.Location
	year          int // current year assumption, set/maintained by SyslogProcessor

	byBeginSysline map[Offset]*Sysline

	findCache   *lru.Cache[Offset, Offset]        // file_offset -> next_file_offset
	lineDtCache *lru.Cache[Offset, DateTimeMatch] // line begin-offset -> recognizer result

	cachesEnabled bool

	firstDt, lastDt time.Time

	cacheHits, cacheMisses, cachePuts int64
}

// CacheStats reports the SyslineReader's two LRUs' hit/miss/put counters
// for Summary.
func (sr *SyslineReader) CacheStats() (hits, misses, puts int64) {
	return sr.cacheHits, sr.cacheMisses, sr.cachePuts
}

func NewSyslineReader(lr *LineReader, defaultOffset *time.Location) *SyslineReader {
	findCache, _ := lru.New[Offset, Offset](syslineCacheSize)
	lineDtCache, _ := lru.New[Offset, DateTimeMatch](syslineCacheSize)
	return &SyslineReader{
		lr:             lr,
		rec:            NewRecognizer(),
		pc:             newPatternCounter(),
		defaultOffset:  defaultOffset,
		byBeginSysline: make(map[Offset]*Sysline),
		findCache:      findCache,
		lineDtCache:    lineDtCache,
		cachesEnabled:  true,
	}
}

func (sr *SyslineReader) SetYear(y int) { sr.year = y }

// SetCachesEnabled toggles both of SyslineReader's LRUs (findCache and
// lineDtCache). byBeginSysline, the durable sysline-by-offset map, is
// unaffected — disabling caches only removes the fast-path lookups, not
// the underlying bookkeeping, so output is identical either way.
func (sr *SyslineReader) SetCachesEnabled(v bool) { sr.cachesEnabled = v }

// LockPattern forces pattern learning's analyze() step early (used by
// Processor after the probe stage).
func (sr *SyslineReader) LockPattern() { sr.pc.analyze() }

func (sr *SyslineReader) PatternLocked() bool { return sr.pc.locked }
func (sr *SyslineReader) WinningPatternID() int {
	if !sr.pc.locked {
		return -1
	}
	return catalog[sr.pc.winner].ID
}
func (sr *SyslineReader) WinningPatternName() string {
	if !sr.pc.locked {
		return ""
	}
	return catalog[sr.pc.winner].Name
}
func (sr *SyslineReader) WinningPatternHasYear() bool {
	if !sr.pc.locked {
		return true
	}
	return catalog[sr.pc.winner].Flags.HasYear
}

func (sr *SyslineReader) FirstLastTimestamps() (time.Time, time.Time) { return sr.firstDt, sr.lastDt }

func (sr *SyslineReader) recordTimestamp(dt time.Time) {
	if sr.firstDt.IsZero() || dt.Before(sr.firstDt) {
		sr.firstDt = dt
	}
	if sr.lastDt.IsZero() || dt.After(sr.lastDt) {
		sr.lastDt = dt
	}
}

// recognizeLine attempts to recognize a timestamp at the start of line's
// bytes, using and updating the pattern-learning counters.
func (sr *SyslineReader) recognizeLine(l *Line) (DateTimeMatch, bool) {
	begin := l.FileOffsetBegin()
	if sr.cachesEnabled {
		if m, ok := sr.lineDtCache.Get(begin); ok {
			sr.cacheHits++
			return m, m.PatternID != -1
		}
	}
	sr.cacheMisses++
	data := l.Bytes()
	m, err := sr.rec.Recognize(data, sr.pc.candidates(), sr.year, sr.defaultOffset)
	if err != nil {
		if sr.cachesEnabled {
			sr.lineDtCache.Add(begin, DateTimeMatch{PatternID: -1})
			sr.cachePuts++
		}
		return DateTimeMatch{}, false
	}
	sr.pc.record(indexOfPatternID(m.PatternID))
	if sr.cachesEnabled {
		sr.lineDtCache.Add(begin, m)
		sr.cachePuts++
	}
	return m, true
}

func indexOfPatternID(id int) int {
	for i, c := range catalog {
		if c.ID == id {
			return i
		}
	}
	return 0
}

// FindSysline returns the Sysline covering fileOffset and the next
// record's starting offset: advance line by line until a recognized
// timestamp starts a record, then keep appending untimestamped
// continuation lines until the next timestamped line or EOF.
func (sr *SyslineReader) FindSysline(fileOffset Offset) (Offset, *Sysline, error) {
	if sr.cachesEnabled {
		if next, ok := sr.findCache.Get(fileOffset); ok {
			if s, ok := sr.byBeginSysline[fileOffset]; ok {
				sr.cacheHits++
				return next, s, nil
			}
		}
	}
	sr.cacheMisses++
	if s, ok := sr.byBeginSysline[fileOffset]; ok {
		if sr.cachesEnabled {
			sr.findCache.Add(fileOffset, s.FileOffsetEnd()+1)
			sr.cachePuts++
		}
		return s.FileOffsetEnd() + 1, s, nil
	}
	if s := sr.containingSysline(fileOffset); s != nil {
		return s.FileOffsetEnd() + 1, s, nil
	}

	cur := fileOffset
	var firstLine *Line
	var dtMatch DateTimeMatch

	// Step 1: advance until a line with a timestamp is found.
	for firstLine == nil {
		next, line, err := sr.lr.FindLine(cur)
		if err != nil {
			return 0, nil, err
		}
		if m, ok := sr.recognizeLine(line); ok {
			firstLine = line
			dtMatch = m
		} else {
			cur = next
		}
	}

	sys := &Sysline{Lines: []*Line{firstLine}, DtBegin: dtMatch.Begin, DtEnd: dtMatch.End, DateTime: dtMatch.DateTime, PatternID: dtMatch.PatternID}
	next := firstLine.FileOffsetEnd() + 1
	sr.recordTimestamp(dtMatch.DateTime)

	// Step 2: keep appending lines without a timestamp; the next
	// timestamped line starts the following sysline.
	for {
		lineNext, line, err := sr.lr.FindLine(next)
		if err == Done {
			break
		}
		if err != nil {
			return 0, nil, err
		}
		if _, ok := sr.recognizeLine(line); ok {
			break
		}
		sys.Lines = append(sys.Lines, line)
		next = lineNext
	}

	sr.byBeginSysline[sys.FileOffsetBegin()] = sys
	if sr.cachesEnabled {
		sr.findCache.Add(sys.FileOffsetBegin(), sys.FileOffsetEnd()+1)
		sr.cachePuts++
	}
	return sys.FileOffsetEnd() + 1, sys, nil
}

// containingSysline performs a linear scan fallback for an fileOffset
// that falls inside an already-formed sysline rather than exactly on
// its begin offset. Kept intentionally simple: Processor always calls
// FindSysline with monotonically advancing offsets during streaming and
// only needs exact-begin lookups in the hot path above.
func (sr *SyslineReader) containingSysline(fileOffset Offset) *Sysline {
	for _, s := range sr.byBeginSysline {
		if fileOffset >= s.FileOffsetBegin() && fileOffset <= s.FileOffsetEnd() {
			return s
		}
	}
	return nil
}

// FindSyslineAtDatetimeFilter binary-searches the file for the first
// record whose timestamp is >= after.
func (sr *SyslineReader) FindSyslineAtDatetimeFilter(fileSize int64, after time.Time) (Offset, *Sysline, error) {
	lo, hi := int64(0), fileSize
	var result *Sysline
	var resultOff Offset

	for lo < hi {
		mid := lo + (hi-lo)/2
		next, s, err := sr.findSyslineAtOrAfter(mid)
		if err == Done {
			hi = mid
			continue
		}
		if err != nil {
			return 0, nil, err
		}
		if !s.DateTime.Before(after) {
			result = s
			resultOff = s.FileOffsetBegin()
			hi = s.FileOffsetBegin()
			if hi <= lo {
				break
			}
		} else {
			lo = next
		}
	}

	if result == nil {
		next, s, err := sr.findSyslineAtOrAfter(lo)
		if err != nil {
			return 0, nil, err
		}
		if s.DateTime.Before(after) {
			return 0, nil, Done
		}
		return next, s, nil
	}
	return sr.FindSysline(resultOff)
}

// findSyslineAtOrAfter locates the first sysline beginning at or after a
// byte offset (used internally by the binary search to align an
// arbitrary midpoint to a real record boundary).
func (sr *SyslineReader) findSyslineAtOrAfter(fileOffset Offset) (Offset, *Sysline, error) {
	next, s, err := sr.FindSysline(fileOffset)
	if err != nil {
		return 0, nil, err
	}
	return next, s, nil
}

// FindSyslineBetweenDatetimeFilters classifies the sysline at fileOffset
// against [after, before].
func (sr *SyslineReader) FindSyslineBetweenDatetimeFilters(fileOffset Offset, after, before *time.Time) (Offset, *Sysline, DtResult, error) {
	next, s, err := sr.FindSysline(fileOffset)
	if err != nil {
		return 0, nil, InRange, err
	}
	if after != nil && s.DateTime.Before(*after) {
		return next, s, BeforeRange, nil
	}
	if before != nil && s.DateTime.After(*before) {
		return next, s, AfterRange, nil
	}
	return next, s, InRange, nil
}

// DropData releases every stored sysline whose last block offset is <= b,
// cascading the release through each sysline's constituent Lines and the
// underlying LineReader before dropping the blocks themselves.
func (sr *SyslineReader) DropData(b BlockOffset) {
	for begin, s := range sr.byBeginSysline {
		if s.LastBlockOffset() > b {
			continue
		}
		for _, l := range s.Lines {
			sr.lr.DropLine(l)
		}
		delete(sr.byBeginSysline, begin)
	}
	sr.lr.DropLinesThrough(b)
}

// ForgetProbeSyslines discards every sysline learned so far — used by
// SyslogProcessor before year reconstruction, since probe-stage syslines
// carry placeholder years.
func (sr *SyslineReader) ForgetProbeSyslines() {
	sr.byBeginSysline = make(map[Offset]*Sysline)
	sr.firstDt, sr.lastDt = time.Time{}, time.Time{}
}

// AllBeginOffsetsSorted returns every currently-stored sysline's begin
// offset in ascending order, used by the year-reconstruction reverse
// walk.
func (sr *SyslineReader) AllBeginOffsetsSorted() []Offset {
	out := make([]Offset, 0, len(sr.byBeginSysline))
	for b := range sr.byBeginSysline {
		out = append(out, b)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Reassign overwrites a stored sysline's timestamp in place, used by
// year reconstruction once a record's real year has been determined.
func (sr *SyslineReader) Reassign(begin Offset, dt time.Time) {
	if s, ok := sr.byBeginSysline[begin]; ok {
		s.DateTime = dt
		sr.recordTimestamp(dt)
	}
}
