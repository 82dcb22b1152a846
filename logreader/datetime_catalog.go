package logreader

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// catalog is the compile-time-ordered list of DateTimeParseInstr entries.
// Earlier entries are tried first; ties are broken by catalog index.
// Regexes are compiled once at package init, matching parser/autodetect.go's
// convention of pre-compiling
// logPatterns/csvTimestampRegex/jsonFieldRegex as package-level vars.
//
// Beyond the common Gregorian ASCII syslog/ISO forms and epoch seconds,
// this catalog also covers RFC5424 syslog and PostgreSQL-style stderr
// timestamps, grounded on original_source/src/Readers/datetime_tests.rs
// and parser/stderr_parser.go / parser/syslog.go.
var catalog = []*DateTimeParseInstr{
	{
		ID:        0,
		Name:      "iso-space",
		WindowMin: 19,
		Start:     0,
		End:       40,
		Regex: regexp.MustCompile(
			`^(?P<year>\d{4})-(?P<month>\d{2})-(?P<day>\d{2})[ T](?P<hour>\d{2}):(?P<minute>\d{2}):(?P<second>\d{2})(?:\.(?P<frac>\d+))?(?: ?(?P<zone>Z|[-+]\d{2}:?\d{2}|[A-Z]{2,5}))?`,
		),
		Flags: DtFlags{HasYear: true, HasTimezone: true, HasFourDigitYear: true, RequiresTwoDigitRun: true},
		Convert: convertISO,
	},
	{
		ID:        1,
		Name:      "rfc5424",
		WindowMin: 20,
		Start:     0,
		End:       48,
		Regex: regexp.MustCompile(
			`^(?P<year>\d{4})-(?P<month>\d{2})-(?P<day>\d{2})T(?P<hour>\d{2}):(?P<minute>\d{2}):(?P<second>\d{2})(?:\.(?P<frac>\d+))?(?P<zone>Z|[-+]\d{2}:\d{2})`,
		),
		Flags: DtFlags{HasYear: true, HasTimezone: true, HasFourDigitYear: true, RequiresTwoDigitRun: true},
		Convert: convertISO,
	},
	{
		ID:        2,
		Name:      "rfc3164-bsd",
		WindowMin: 15,
		Start:     0,
		End:       32,
		Regex: regexp.MustCompile(
			`^(?P<mon>[A-Z][a-z]{2}) {1,2}(?P<day>\d{1,2}) (?P<hour>\d{2}):(?P<minute>\d{2}):(?P<second>\d{2})(?:\.(?P<frac>\d+))?`,
		),
		Flags: DtFlags{HasYear: false, HasTimezone: false, RequiresTwoDigitRun: true},
		Convert: convertRFC3164,
	},
	{
		ID:        3,
		Name:      "epoch-seconds",
		WindowMin: 9,
		Start:     0,
		End:       24,
		Regex:     regexp.MustCompile(`^(?P<epoch>\d{9,10})(?:\.(?P<frac>\d{1,9}))?`),
		Flags:     DtFlags{HasYear: true, HasTimezone: true, RequiresTwoDigitRun: true},
		Convert:   convertEpoch,
	},
}

// groupValue looks up a named submatch by name, returning "" if absent or
// unmatched.
func groupValue(m []string, names []string, name string) string {
	for i, n := range names {
		if n == name && i < len(m) {
			return m[i]
		}
	}
	return ""
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func fracToNanos(frac string) int {
	if frac == "" {
		return 0
	}
	for len(frac) < 9 {
		frac += "0"
	}
	frac = frac[:9]
	n, _ := strconv.Atoi(frac)
	return n
}

func convertISO(m []string, names []string, year int, defaultOffset *time.Location) (time.Time, error) {
	y := atoiOr(groupValue(m, names, "year"), year)
	mon := atoiOr(groupValue(m, names, "month"), 1)
	day := atoiOr(groupValue(m, names, "day"), 1)
	hour := atoiOr(groupValue(m, names, "hour"), 0)
	minute := atoiOr(groupValue(m, names, "minute"), 0)
	sec := atoiOr(groupValue(m, names, "second"), 0)
	nsec := fracToNanos(groupValue(m, names, "frac"))

	loc := defaultOffset
	zone := groupValue(m, names, "zone")
	if zone != "" && zone != "Z" {
		if z, ok := parseNumericZone(zone); ok {
			loc = z
		}
		// A named zone abbreviation (UTC, CET, ...) cannot be resolved
		// to an offset without a locale database entry per-name, and
		// locale-dependent parsing is out of scope, so fall back to
		// defaultOffset rather than guess.
	} else if zone == "Z" {
		loc = time.UTC
	}

	return time.Date(y, time.Month(mon), day, hour, minute, sec, nsec, loc), nil
}

func convertRFC3164(m []string, names []string, year int, defaultOffset *time.Location) (time.Time, error) {
	monName := groupValue(m, names, "mon")
	mon, ok := monthByAbbrev[monName]
	if !ok {
		return time.Time{}, Done
	}
	day := atoiOr(groupValue(m, names, "day"), 1)
	hour := atoiOr(groupValue(m, names, "hour"), 0)
	minute := atoiOr(groupValue(m, names, "minute"), 0)
	sec := atoiOr(groupValue(m, names, "second"), 0)
	nsec := fracToNanos(groupValue(m, names, "frac"))
	return time.Date(year, mon, day, hour, minute, sec, nsec, defaultOffset), nil
}

func convertEpoch(m []string, names []string, _ int, _ *time.Location) (time.Time, error) {
	epochStr := groupValue(m, names, "epoch")
	epoch, err := strconv.ParseInt(epochStr, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	nsec := int64(fracToNanos(groupValue(m, names, "frac")))
	return time.Unix(epoch, nsec).UTC(), nil
}

var monthByAbbrev = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// parseNumericZone parses "+01:00", "-0500", etc. into a fixed
// time.Location.
func parseNumericZone(zone string) (*time.Location, bool) {
	zone = strings.ReplaceAll(zone, ":", "")
	if len(zone) != 5 || (zone[0] != '+' && zone[0] != '-') {
		return nil, false
	}
	hh, err1 := strconv.Atoi(zone[1:3])
	mm, err2 := strconv.Atoi(zone[3:5])
	if err1 != nil || err2 != nil {
		return nil, false
	}
	sign := 1
	if zone[0] == '-' {
		sign = -1
	}
	offsetSec := sign * (hh*3600 + mm*60)
	return time.FixedZone(zone, offsetSec), true
}
