//go:build tinygo

package sched

import "runtime/interrupt"

// CriticalState preserves the interrupt mask across a narrow critical
// section.
type CriticalState = interrupt.State

// EnterCritical disables interrupts and returns the previous mask. Keep the
// protected section as short as a handful of field assignments: this runs
// with interrupts off.
func EnterCritical() CriticalState {
	return interrupt.Disable()
}

// ExitCritical restores the interrupt mask captured by EnterCritical.
func ExitCritical(state CriticalState) {
	interrupt.Restore(state)
}
