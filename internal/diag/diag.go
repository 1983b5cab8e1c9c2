// Package diag provides a non-blocking post-mortem trace, the same shape
// the firmware uses for every subsystem that cannot afford to allocate or
// block on a logger from inside a real-time path.
package diag

// Writer receives formatted diagnostic lines. Platform code installs one
// that drives a UART or USB CDC port; tests and the host simulator install
// one that writes to stdout or a buffer.
type Writer func(string)

// Event captures a single timing-relevant occurrence for later inspection.
// Value1/Value2 are context-dependent: for EvtModeChange they are the
// previous and requested mode; for EvtTimerPast they are the scheduled wake
// time and how many ticks late the timer ran.
type Event struct {
	Kind   uint8
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

// Event kinds.
const (
	EvtServoTick          = 1 // servo loop completed a tick
	EvtModeChange          = 2 // controller accepted a mode request
	EvtTimerPast           = 3 // a scheduled timer's wake time had already passed
	EvtPendingStopTimeout  = 4 // pending-stop supervision hit the 60s deadline
	EvtTachWatchdog        = 5 // tape tach absent-edge watchdog fired
	EvtQEIError            = 6 // QEI phase-error interrupt observed
	EvtFrameCRCError       = 7  // IPC frame failed CRC validation
	EvtFrameSyncLost       = 8  // IPC receiver lost preamble sync
	EvtParamDefaultsLoaded = 9  // parameter store fell back to defaults
	EvtDACTransferError    = 10 // motor DAC SPI transaction failed
)

const ringSize = 64

var (
	writer  Writer = func(string) {}
	enabled bool

	ring     [ringSize]Event
	ringHead uint8
)

// SetWriter installs the platform-specific sink for human-readable lines.
func SetWriter(w Writer) {
	if w == nil {
		w = func(string) {}
	}
	writer = w
}

// SetEnabled toggles whether Line actually reaches the writer. The ring
// buffer always records regardless, since it costs only a struct store.
func SetEnabled(v bool) { enabled = v }

// Record appends an event to the ring buffer. Never blocks, never
// allocates: safe to call from the servo tick or an ISR-equivalent path.
func Record(kind uint8, clock, v1, v2 uint32) {
	idx := ringHead
	ring[idx] = Event{Kind: kind, Clock: clock, Value1: v1, Value2: v2}
	ringHead = (idx + 1) % ringSize
}

// Printf-equivalent for the rare, non-real-time paths (boot, parameter
// reload, controller transitions) where a readable line is worth the cost.
func Line(msg string) {
	if enabled {
		writer(msg)
	}
}

func eventName(kind uint8) string {
	switch kind {
	case EvtServoTick:
		return "SERVO_TICK"
	case EvtModeChange:
		return "MODE_CHANGE"
	case EvtTimerPast:
		return "TIMER_PAST"
	case EvtPendingStopTimeout:
		return "PENDING_STOP_TIMEOUT"
	case EvtTachWatchdog:
		return "TACH_WATCHDOG"
	case EvtQEIError:
		return "QEI_ERROR"
	case EvtFrameCRCError:
		return "FRAME_CRC_ERROR"
	case EvtFrameSyncLost:
		return "FRAME_SYNC_LOST"
	case EvtParamDefaultsLoaded:
		return "PARAM_DEFAULTS_LOADED"
	case EvtDACTransferError:
		return "DAC_TRANSFER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Dump renders the ring buffer oldest-first. Intended for post-mortem
// inspection after a shutdown or a diagnostic command, not steady-state use.
func Dump() {
	writer("[diag] === ring dump ===")
	start := ringHead
	for i := uint8(0); i < ringSize; i++ {
		idx := (start + i) % ringSize
		evt := &ring[idx]
		if evt.Kind == 0 {
			continue
		}
		writer("[diag] " + eventName(evt.Kind) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	writer("[diag] === end dump ===")
}

// Clear resets the ring buffer, used between test cases.
func Clear() {
	for i := range ring {
		ring[i] = Event{}
	}
	ringHead = 0
}
