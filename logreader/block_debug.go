//go:build debug

package logreader

// In debug builds the probe stage accepts a much smaller minimum block
// size, which makes it practical to exercise block-boundary edge cases
// with tiny synthetic fixtures. ProgrammerInvariantError also panics
// instead of degrading to a counter, so a broken invariant fails a debug
// build's tests loudly instead of silently skewing its output.
func init() {
	blockSzMinProbe = 2
	panicOnInvariantBreach = true
}
