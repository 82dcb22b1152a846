package logreader

import (
	"fmt"
	"os"
	"time"
)

// yearJumpThreshold is the year-reconstruction heuristic's 25-hour
// backward-jump threshold for year change. Documented as a heuristic and
// exposed as a constant rather than a user-facing knob.
const yearJumpThreshold = 25 * time.Hour

// ProcessorStage names the stages a file goes through, executed in
// strict order.
type ProcessorStage int

const (
	StageValidate ProcessorStage = iota
	StageProbe
	StageLocate
	StageStream
	StageSummarize
)

// ProbeResult is the tagged outcome of the probe stage.
type ProbeResult int

const (
	ProbeOk ProbeResult = iota
	ProbeNoLinesFound
	ProbeNoSyslinesFound
	ProbeNoSyslinesInDtRange
	ProbeEmpty
	ProbeIo
	ProbeWrongType
	ProbeDecompressFailed
)

// Processor orchestrates one file's BlockReader/LineReader/SyslineReader
// stack through validate/probe/locate/stream/summarize.
type Processor struct {
	ft      FileType
	blockSz uint32

	br *BlockReader
	lr *LineReader
	sr *SyslineReader

	after, before *time.Time
	defaultOffset *time.Location

	stage ProcessorStage

	emit func(*Sysline)

	summary Summary

	cachesEnabled bool
}

// NewProcessor builds a Processor for one input file. blockSz is raised
// to blockSzMinProbe if the caller-supplied value is smaller, giving the
// recognizer enough material to work with on small files.
func NewProcessor(ft FileType, blockSz uint32, after, before *time.Time, defaultOffset *time.Location) *Processor {
	if blockSz < blockSzMinProbe {
		blockSz = blockSzMinProbe
	}
	return &Processor{
		ft:            ft,
		blockSz:       blockSz,
		after:         after,
		before:        before,
		defaultOffset: defaultOffset,
		summary:       Summary{Path: ft.Path},
		cachesEnabled: true,
	}
}

// SetCachesEnabled toggles the block and sysline LRUs for this file.
// Must be called before Run; property tests use it to verify cached and
// uncached runs emit identical records.
func (p *Processor) SetCachesEnabled(v bool) { p.cachesEnabled = v }

// Run executes every stage in order and invokes emit for each in-range
// Sysline, finally returning the completed Summary. Stage transitions are
// strict: a non-Ok probe result, or an error at any stage, short-circuits
// straight to Summarize.
func (p *Processor) Run(emit func(*Sysline)) Summary {
	p.emit = emit

	p.stage = StageValidate
	if err := p.validate(); err != nil {
		if err == ErrEmptyFile {
			return p.summarizeWarning(err.Error())
		}
		return p.summarizeErr(err)
	}

	p.stage = StageProbe
	probeResult, err := p.probe()
	if err != nil {
		return p.summarizeErr(err)
	}
	if probeResult != ProbeOk {
		return p.summarizeWarning(probeResultWarning(probeResult))
	}

	p.stage = StageLocate
	startOffset, err := p.locate()
	if err != nil {
		return p.summarizeErr(err)
	}

	p.stage = StageStream
	if err := p.stream(startOffset); err != nil {
		return p.summarizeErr(err)
	}

	p.stage = StageSummarize
	return p.summarize()
}

func probeResultWarning(r ProbeResult) string {
	switch r {
	case ProbeEmpty:
		return ErrEmptyFile.Error()
	case ProbeNoLinesFound:
		return ErrNoLinesFound.Error()
	case ProbeNoSyslinesFound:
		return ErrNoSyslinesFound.Error()
	case ProbeNoSyslinesInDtRange:
		return ErrNoSyslinesInDtRange.Error()
	default:
		return "unknown probe result"
	}
}

// validate rejects empty files.
func (p *Processor) validate() error {
	fi, err := statPath(p.ft)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncatedContainer, err)
	}
	if fi == 0 && p.ft.Archive == ArchivePlain {
		return ErrEmptyFile
	}
	return nil
}

// probeThresholds picks how many lines/syslines the probe stage looks
// for: at block sizes >= SyslogSzMax, 2 of each; otherwise 1.
func (p *Processor) probeThresholds() (lines, syslines int) {
	if p.blockSz >= SyslogSzMax {
		return 2, 2
	}
	return 1, 1
}

// probe reads forward from the start of the file, counting lines and
// syslines up to the threshold number (see probeThresholds). The file is
// rejected only when it has no line or no sysline at all; a file with
// fewer than the threshold but at least one of each is accepted.
func (p *Processor) probe() (ProbeResult, error) {
	br, err := New(p.ft, p.blockSz)
	if err != nil {
		return ProbeIo, err
	}
	p.br = br
	p.br.SetCachesEnabled(p.cachesEnabled)
	p.lr = NewLineReader(br)
	p.sr = NewSyslineReader(p.lr, p.defaultOffset)
	p.sr.SetCachesEnabled(p.cachesEnabled)
	p.sr.SetYear(time.Now().Year())

	needLines, needSyslines := p.probeThresholds()

	lineCount := 0
	var cur Offset
	for lineCount < needLines {
		next, _, err := p.lr.FindLine(cur)
		if err == Done {
			break
		}
		if err != nil {
			return ProbeIo, err
		}
		lineCount++
		cur = next
	}
	if lineCount == 0 {
		return ProbeNoLinesFound, nil
	}

	syslineCount := 0
	cur = 0
	for syslineCount < needSyslines {
		next, _, err := p.sr.FindSysline(cur)
		if err == Done {
			break
		}
		if err != nil {
			return ProbeIo, err
		}
		syslineCount++
		cur = next
	}
	if syslineCount == 0 {
		return ProbeNoSyslinesFound, nil
	}

	if p.after != nil || p.before != nil {
		found := false
		cur = 0
		for {
			next, s, err := p.sr.FindSysline(cur)
			if err == Done {
				break
			}
			if err != nil {
				return ProbeIo, err
			}
			if inWindow(s.DateTime, p.after, p.before) {
				found = true
				break
			}
			cur = next
		}
		if !found {
			return ProbeNoSyslinesInDtRange, nil
		}
	}

	return ProbeOk, nil
}

func inWindow(dt time.Time, after, before *time.Time) bool {
	if after != nil && dt.Before(*after) {
		return false
	}
	if before != nil && dt.After(*before) {
		return false
	}
	return true
}

// locate runs year reconstruction (stage 3, if the winning pattern omits
// year) and then, if an after filter was supplied, binary-searches for
// the first in-range record.
func (p *Processor) locate() (Offset, error) {
	p.sr.LockPattern()

	if !p.sr.WinningPatternHasYear() {
		if err := p.reconstructYears(); err != nil {
			return 0, err
		}
	}

	if p.after == nil {
		return 0, nil
	}
	next, _, err := p.sr.FindSyslineAtDatetimeFilter(p.br.FileSize(), *p.after)
	if err == Done {
		return p.br.FileSize(), nil
	}
	if err != nil {
		return 0, err
	}
	// FindSyslineAtDatetimeFilter returns the offset *after* the found
	// record; the stream stage must re-enter at the record's own begin.
	_ = next
	return p.lastFoundBegin(), nil
}

func (p *Processor) lastFoundBegin() Offset {
	begins := p.sr.AllBeginOffsetsSorted()
	for _, b := range begins {
		s, _ := p.sr.byBeginSysline[b]
		if s != nil && (p.after == nil || !s.DateTime.Before(*p.after)) {
			return b
		}
	}
	if len(begins) > 0 {
		return begins[0]
	}
	return 0
}

// mtimeYear extracts the year component of the container's (or, for
// archive members with no mtime, the enclosing archive's) modification
// time, used as the anchor year for the most-recent record when the
// winning timestamp pattern carries no year of its own.
func (p *Processor) mtimeYear() int {
	mt := p.br.ModTime()
	if mt.IsZero() {
		return time.Now().Year()
	}
	return mt.Year()
}

// reconstructYears discards probe-learned syslines (placeholder years),
// then walks the file backwards from the last record, assigning the
// current year to each, decrementing when a >25h forward jump is seen
// scanning in reverse.
func (p *Processor) reconstructYears() error {
	p.sr.ForgetProbeSyslines()
	p.br.SetDropsEnabled(false)
	defer p.br.SetDropsEnabled(true)

	year := p.mtimeYear()
	p.sr.SetYear(year)

	// Walk forward once to materialize every sysline with the initial
	// year guess, then correct years by scanning the materialized set in
	// reverse: every sysline's raw timestamp components, sans year, are
	// already fixed by the pattern, so only the year needs reassigning.
	var cur Offset
	for {
		next, s, err := p.sr.FindSysline(cur)
		if err == Done {
			break
		}
		if err != nil {
			return err
		}
		_ = s
		cur = next
	}

	begins := p.sr.AllBeginOffsetsSorted()
	if len(begins) == 0 {
		return nil
	}

	curYear := year
	// Reverse walk: later-stored (earlier-parsed-in-reverse) record first.
	prevDt := p.sr.byBeginSysline[begins[len(begins)-1]].DateTime
	p.sr.Reassign(begins[len(begins)-1], withYear(prevDt, curYear))
	prevDt = withYear(prevDt, curYear)

	for i := len(begins) - 2; i >= 0; i-- {
		dt := p.sr.byBeginSysline[begins[i]].DateTime
		candidate := withYear(dt, curYear)
		// Scanning backward through the file, timestamps should be
		// non-increasing once assigned a consistent year. A candidate
		// that lands *after* the previously resolved (later-in-file)
		// timestamp by more than the threshold means a year boundary
		// was crossed going backward, so this record belongs to the
		// prior year.
		if candidate.Sub(prevDt) > yearJumpThreshold {
			curYear--
			candidate = withYear(dt, curYear)
		}
		p.sr.Reassign(begins[i], candidate)
		prevDt = candidate

		if p.after != nil && candidate.Before(*p.after) {
			break
		}
	}

	return nil
}

func withYear(t time.Time, year int) time.Time {
	return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// dropMarginBlocks is the trailing margin kept before hinting a block
// drop: the block two before a record's first block, so the next
// record's backward newline search still has the back-reference it
// needs.
const dropMarginBlocks = 2

// stream repeatedly calls FindSyslineBetweenDatetimeFilters, classifying
// and emitting each in-range record, and hints a block drop once a
// record's first block is more than dropMarginBlocks behind.
func (p *Processor) stream(startOffset Offset) error {
	cur := startOffset
	var lastOffset Offset = -1

	for {
		next, s, result, err := p.sr.FindSyslineBetweenDatetimeFilters(cur, p.after, p.before)
		if err == Done {
			break
		}
		if err != nil {
			return err
		}

		if cur < lastOffset && p.br.IsStreaming() {
			// find_sysline must only ever be called with non-decreasing
			// offsets on a streaming container: the block holding the
			// backward offset may already have been dropped and cannot
			// be re-decoded. Debug builds panic to fail loudly; release
			// builds count the breach and end streaming for this file
			// rather than aborting it as a hard error.
			if panicOnInvariantBreach {
				panic(&ProgrammerInvariantError{Msg: "streaming container received a backward find_sysline call"})
			}
			p.summary.InvariantBreaches++
			break
		}
		lastOffset = cur

		switch result {
		case AfterRange:
			return nil
		case InRange:
			p.summary.SyslinesProcessed++
			p.summary.LinesProcessed += int64(len(s.Lines))
			if p.emit != nil {
				p.emit(s)
			}
			firstBlock := s.Lines[0].Parts[0].BlockOffset
			if firstBlock >= dropMarginBlocks {
				p.sr.DropData(firstBlock - dropMarginBlocks)
			}
		case BeforeRange:
			// advance without emitting
		}
		cur = next
	}
	return nil
}

// summarize builds the final per-file Summary.
func (p *Processor) summarize() Summary {
	s := p.summary
	s.Path = p.ft.Path
	if p.br != nil {
		st := p.br.Stats()
		s.BytesRead = st.BytesRead
		s.BlocksRead = st.BlocksRead
		s.CacheHitsBlock = st.CacheHits
		s.CacheMissesBlock = st.CacheMisses
		s.CachePutsBlock = st.CachePuts
		s.DropsBlockOk = st.DropsOk
		s.DropsBlockErr = st.DropsErr
	}
	if p.sr != nil {
		hits, misses, puts := p.sr.CacheStats()
		s.CacheHitsSysline = hits
		s.CacheMissesSysline = misses
		s.CachePutsSysline = puts
		s.FirstTimestamp, s.LastTimestamp = p.sr.FirstLastTimestamps()
		s.PatternID = p.sr.WinningPatternID()
		s.PatternName = p.sr.WinningPatternName()
	}
	return s
}

func (p *Processor) summarizeErr(err error) Summary {
	p.summary.Err = err
	return p.summarize()
}

func (p *Processor) summarizeWarning(w string) Summary {
	p.summary.Warning = w
	return p.summarize()
}

// statPath reports the logical size of ft without constructing a full
// BlockReader, used only by the validate stage's empty-file check (which
// only applies to plain files; archive members report their size via the
// archive header during probe instead).
func statPath(ft FileType) (int64, error) {
	if ft.Archive != ArchivePlain {
		return 1, nil // non-empty by construction; probe stage will catch real emptiness
	}
	fi, err := os.Stat(ft.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
