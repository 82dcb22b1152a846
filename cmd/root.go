package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// Version information, set by Execute.
var (
	version string
	commit  string
	date    string
)

// Flag variables, package-level as cobra's flag binding requires.
var (
	dtAfterFlag  string // -a/--dt-after: only emit syslines at or after this datetime
	dtBeforeFlag string // -b/--dt-before: only emit syslines at or before this datetime
	tzOffsetFlag string // -t/--tz-offset: default zone for timestamp formats lacking one, e.g. +0500
	blockszFlag  string // -z/--blocksz: block size, decimal or 0x/0o/0b-prefixed
	summaryFlag  bool   // -s/--summary: print a per-file and combined summary after output
	fileTypeFlag string // --type: default file-type tag for positional args with no "path:type" suffix

	colorFlag           bool // --color: turn on colorized prefixes; there is no terminal auto-detection
	noColorFlag         bool // --no-color: force-disable colorized output
	prependFilenameFlag bool // --prepend-filename: prefix each emitted line with its source path
	prependUTCFlag      bool // --prepend-utc: prefix each emitted line with its timestamp in UTC
	noCacheFlag         bool // --no-cache: disable the block and sysline LRUs
)

var rootCmd = &cobra.Command{
	Use:   "s4 [files or dirs]",
	Short: "Merge and search syslog-style log files in timestamp order",
	Long: `s4 reads one or more syslog-style log files — plain, gzip, bzip2, xz,
lz4, or members of a tar/7z archive — recognizes each record's leading
timestamp, and streams every record across every input file in combined
chronological order.

Specify log files, directories, or archives as arguments. A directory
is scanned non-recursively for files with a supported extension. An
archive argument is expanded into one input per log file it contains.`,
	Args: cobra.MinimumNArgs(1),
	RunE: executeSearch,
}

// Execute runs the root command. Called by main.go.
func Execute(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&dtAfterFlag, "dt-after", "a", "",
		"only emit records at or after this datetime (RFC3339, \"YYYY-MM-DD HH:MM:SS\", \"YYYY-MM-DD\", or Unix epoch seconds)")
	rootCmd.Flags().StringVarP(&dtBeforeFlag, "dt-before", "b", "",
		"only emit records at or before this datetime")
	rootCmd.Flags().StringVarP(&tzOffsetFlag, "tz-offset", "t", "",
		"default UTC offset for timestamp formats with no zone of their own, e.g. +0500 (default UTC)")
	rootCmd.Flags().StringVarP(&blockszFlag, "blocksz", "z", "",
		"block size in bytes; decimal or 0x/0o/0b-prefixed (default 0x10000)")
	rootCmd.Flags().BoolVarP(&summaryFlag, "summary", "s", false,
		"print a per-file and combined processing summary to stderr after output")
	rootCmd.Flags().StringVar(&fileTypeFlag, "type", "",
		"default file-type tag (plain, gzip, bzip2, xz, lz4, tar, 7z) for paths with no \"path:type\" suffix")

	rootCmd.Flags().BoolVar(&colorFlag, "color", false, "force colorized output")
	rootCmd.Flags().BoolVar(&noColorFlag, "no-color", false, "disable colorized output")
	rootCmd.Flags().BoolVar(&prependFilenameFlag, "prepend-filename", false, "prefix each emitted line with its source path")
	rootCmd.Flags().BoolVar(&prependUTCFlag, "prepend-utc", false, "prefix each emitted line with its timestamp in UTC")
	rootCmd.Flags().BoolVar(&noCacheFlag, "no-cache", false, "disable the block and sysline LRUs (slower; useful for cache-behavior comparisons)")
}
