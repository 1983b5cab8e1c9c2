// Package sched implements a small sorted-timer-list cooperative scheduler,
// the same shape used by the IPC retransmit timer and the tape-tach
// absent-edge watchdog, so both share one wraparound-safe wake-time
// comparison instead of each hand-rolling one.
package sched

import "dtc1200/internal/diag"

// Timer is a single scheduled callback. Handler returns Done to retire the
// timer or Reschedule to reinsert it at its (presumably updated) WakeTime.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) Result
	next     *Timer
}

// Result is returned by a Timer's Handler.
type Result uint8

const (
	Done Result = iota
	Reschedule
)

// PastThreshold is how far behind a timer's WakeTime can fall before it is
// considered a scheduling failure worth a diagnostic event, expressed in
// ticks (100ms at the default 1MHz tick rate).
const PastThreshold = TicksPerSecond / 10

var (
	list            *Timer
	pastErrorsCount uint32
)

// Add inserts a timer in WakeTime order. Safe to call from any task; the
// insert itself runs with interrupts disabled.
func Add(t *Timer) {
	state := EnterCritical()
	defer ExitCritical(state)
	insert(t)
}

// insert uses signed wraparound-safe comparison (Klipper's trick): within
// half the 32-bit range, int32(a-b) < 0 means a precedes b even across a
// clock rollover.
func insert(t *Timer) {
	if list == nil || int32(t.WakeTime-list.WakeTime) < 0 {
		t.next = list
		list = t
		return
	}

	cur := list
	for cur.next != nil && int32(cur.next.WakeTime-t.WakeTime) < 0 {
		cur = cur.next
	}
	t.next = cur.next
	cur.next = t
}

// Dispatch runs every due timer. Call it once per scheduler pass from
// whichever goroutine owns cooperative dispatch (the host link's tick
// goroutine on the host build, the firmware main loop on hardware).
func Dispatch() {
	state := EnterCritical()
	defer ExitCritical(state)

	now := Now()
	for list != nil && int32(now-list.WakeTime) >= 0 {
		t := list
		list = t.next
		t.next = nil

		if lag := int32(now - t.WakeTime); lag > int32(PastThreshold) {
			pastErrorsCount++
			diag.Record(diag.EvtTimerPast, now, t.WakeTime, uint32(lag))
		}

		if t.Handler(t) == Reschedule {
			insert(t)
		}

		// Handlers may take real time to run; re-read the clock so later
		// timers in this pass aren't judged against a stale "now".
		now = Now()
	}
}

// PastErrors reports how many timers have fired more than PastThreshold
// ticks late since boot or the last ResetPastErrors call.
func PastErrors() uint32 { return pastErrorsCount }

// ResetPastErrors clears the late-timer counter, used between test cases.
func ResetPastErrors() { pastErrorsCount = 0 }
