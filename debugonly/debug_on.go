//go:build debugger

package debugonly

import "runtime"

// BreakHere traps into an attached debugger.
func BreakHere() {
	runtime.Breakpoint()
}

// Enabled reports whether the debugger build tag is active.
func Enabled() bool { return true }
