//go:build tinygo && (rp2040 || rp2350)

package rp2040

import (
	"runtime/volatile"
	"unsafe"

	"dtc1200/internal/sched"
)

// RP2040/RP2350 timer peripheral: a free-running 1MHz microsecond counter,
// which happens to match sched.TicksPerSecond exactly so no scaling is
// needed between the hardware clock and every settle-time/timeout constant
// expressed in ticks.
const (
	timerBase  = 0x40054000
	timerRawLo = timerBase + 0x0C
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerRawLo)))

// InitClock registers the RP2040's hardware timer as the scheduler's clock
// source.
func InitClock() {
	sched.SetHardwareClock(func() uint32 { return timerRAWL.Get() })
}
