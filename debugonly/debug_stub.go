//go:build !debugger

// Package debugonly holds breakpoint targets that only do something in builds
// tagged "debugger". The scheduler calls BreakHere when a rebuild hits an
// unresolved write conflict.
package debugonly

// BreakHere is a no-op stub used as a breakpoint target in non-debugger builds.
func BreakHere() {}

// Enabled reports whether the debugger build tag is active. Always false in production builds.
func Enabled() bool { return false }
