//go:build !tinygo

package sched

// CriticalState is a placeholder for interrupt state on the host build.
type CriticalState uintptr

// EnterCritical is a no-op off-target; on hardware it disables interrupts
// around updates to data an ISR-equivalent also touches (tach ring buffer,
// QEI error counters).
func EnterCritical() CriticalState {
	return 0
}

// ExitCritical restores whatever EnterCritical disabled.
func ExitCritical(state CriticalState) {
	_ = state
}
