//go:build tinygo

package sched

import "sync/atomic"

var (
	ticksValue    uint32
	hardwareClock func() uint32
)

// SetHardwareClock registers the board's free-running timer as the clock
// source. Must be called during board bring-up before any scheduling.
func SetHardwareClock(f func() uint32) {
	hardwareClock = f
}

func getTicks() uint32 {
	if hardwareClock != nil {
		return hardwareClock()
	}
	return atomic.LoadUint32(&ticksValue)
}

func setTicks(ticks uint32) {
	atomic.StoreUint32(&ticksValue, ticks)
}
