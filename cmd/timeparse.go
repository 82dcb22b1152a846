// Package cmd implements the command-line interface for the syslog
// search/merge tool.
package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dtFormats lists the timestamp layouts -a/--dt-after and -b/--dt-before
// accept, tried in order. Mirrors the datetime catalog's coverage
// (ISO space/T-separated, RFC3164-less-year is not accepted here since a
// filter boundary needs an unambiguous year).
var dtFormats = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDatetimeArg parses a CLI datetime filter argument, accepting any
// of dtFormats or a bare Unix epoch-seconds integer. defaultOffset is
// applied when the parsed layout carries no zone of its own.
func parseDatetimeArg(s string, defaultOffset *time.Location) (time.Time, error) {
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}

	for _, layout := range dtFormats {
		if strings.Contains(layout, "Z07:00") {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, defaultOffset); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cmd: %q does not match any accepted datetime format or epoch seconds", s)
}

// parseTzOffset parses a signed four-digit UTC offset ("+0500", "-0830",
// "+05:00") into a fixed time.Location, used as the default zone for
// timestamp formats with no zone of their own.
func parseTzOffset(s string) (*time.Location, error) {
	if s == "" {
		return time.UTC, nil
	}
	raw := strings.ReplaceAll(s, ":", "")
	if len(raw) != 5 || (raw[0] != '+' && raw[0] != '-') {
		return nil, fmt.Errorf("cmd: tz-offset %q must look like +0500 or -0830", s)
	}
	hh, err1 := strconv.Atoi(raw[1:3])
	mm, err2 := strconv.Atoi(raw[3:5])
	if err1 != nil || err2 != nil || hh > 23 || mm > 59 {
		return nil, fmt.Errorf("cmd: tz-offset %q is not a valid offset", s)
	}
	sign := 1
	if raw[0] == '-' {
		sign = -1
	}
	seconds := sign * (hh*3600 + mm*60)
	return time.FixedZone(s, seconds), nil
}

// parseBlockSz parses the -z/--blocksz argument, accepting decimal and
// 0x/0o/0b-prefixed hex/octal/binary via strconv.ParseInt's base-0
// auto-detection.
func parseBlockSz(s string) (uint32, error) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("cmd: invalid blocksz %q: %w", s, err)
	}
	if n < 1 || n > 0xFFFFFF {
		return 0, fmt.Errorf("cmd: blocksz %d out of range [1, 0xFFFFFF]", n)
	}
	return uint32(n), nil
}
