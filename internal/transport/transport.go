// Package transport implements the button-to-mode command sequencer: it
// turns raw transport button and switch readings into servo mode changes,
// sequencing brakes, tape lifter, pinch roller, and record relay through
// their settling delays, and supervises the "pending stop" wait for motion
// to die down before a queued play or stop command actually completes.
package transport

import (
	"dtc1200/internal/diag"
	"dtc1200/internal/expander"
	"dtc1200/internal/params"
	"dtc1200/internal/sched"
	"dtc1200/internal/servo"
)

// modeNone is a sentinel "no mode completed/requested yet" value outside
// the valid servo.Mode range.
const modeNone = servo.Mode(0xFF)

// pendingStopTimeoutTicks is how long the controller waits for reel motion
// to stop before giving up and forcing stop mode, 60s at the 25ms poll
// period used here (2400 polls).
const pendingStopTimeoutTicks = 2400

// pollPeriod is how often Poll must be called while a mode change is
// pending, matching the 25ms mailbox timeout the sequencer used to poll on.
const pollPeriod = sched.TicksPerSecond / 40

// Sleeper performs the settling delays (in milliseconds) the original
// sequencer blocked a task on; on hardware this parks the calling
// goroutine, in tests and the host simulator it can simply record the
// requested delay.
type Sleeper func(ms int32)

// Controller sequences transport button presses and mode-change requests
// into expander output states and servo mode transitions.
type Controller struct {
	Banks *expander.Banks
	Servo *servo.State
	Sleep Sleeper

	lampMask  uint8
	dipSwitch uint8
	firstTick bool

	lastModeCompleted servo.Mode
	lastModeRequested servo.Mode
	prevModeRequested servo.Mode

	modePending    bool
	pendingMode    servo.Mode
	pendingRecord  bool
	stopTimer      uint32
}

// New builds a Controller. sleep performs settling delays; pass a no-op for
// tests that don't care about timing.
func New(banks *expander.Banks, srv *servo.State, sleep Sleeper) *Controller {
	return &Controller{
		Banks:             banks,
		Servo:             srv,
		Sleep:             sleep,
		firstTick:         true,
		lastModeCompleted: modeNone,
		lastModeRequested: modeNone,
		prevModeRequested: modeNone,
	}
}

// HandleButtons translates one debounced transport-button reading into a
// mode request or immediate command, mirroring the tape-out/tape-in
// priority handling and button-combination dispatch of the original
// command interpreter.
func (c *Controller) HandleButtons(mask uint8) {
	if mask&expander.SwitchTapeOut != 0 {
		if c.Servo.Mode != servo.ModeHalt || c.firstTick {
			c.firstTick = false
			c.RequestMode(servo.ModeHalt, false, false)
		}
		return
	}

	// Tape is in the transport. If we were halted (or this is the very
	// first reading), bring the transport up into stop mode.
	if c.Servo.Mode == servo.ModeHalt || c.firstTick {
		c.firstTick = false
		c.RequestMode(servo.ModeStop, false, false)
		return
	}

	if mask == expander.ButtonLiftDefeat {
		c.ToggleLifter()
		return
	}

	buttons := mask &^ expander.SwitchTapeOut
	if buttons == 0 {
		return
	}

	switch {
	case buttons == expander.ButtonStop:
		c.RequestMode(servo.ModeStop, false, false)

	case buttons == expander.ButtonFastFwd:
		c.RequestMode(servo.ModeFwd, false, false)
	case buttons == (expander.ButtonFastFwd | expander.ButtonRecord):
		c.RequestMode(servo.ModeFwd, true, false)

	case buttons == expander.ButtonRewind:
		c.RequestMode(servo.ModeRew, false, false)
	case buttons == (expander.ButtonRewind | expander.ButtonRecord):
		c.RequestMode(servo.ModeRew, true, false)

	case buttons == expander.ButtonPlay:
		c.RequestMode(servo.ModePlay, false, false)

	case buttons == (expander.ButtonStop | expander.ButtonRecord):
		if c.Servo.Mode == servo.ModePlay {
			c.StrobeRecord(RecordToggle)
		}

	case buttons&(expander.ButtonPlay|expander.ButtonRecord) == (expander.ButtonPlay | expander.ButtonRecord):
		switch c.Servo.Mode {
		case servo.ModePlay:
			if c.Banks.GetTransportOut()&expander.OutRecordHold != 0 {
				c.StrobeRecord(RecordPunchOut)
			} else {
				c.StrobeRecord(RecordPunchIn)
			}
		case servo.ModeStop:
			c.RequestMode(servo.ModePlay, false, true)
		}
	}
}

// RequestMode queues a transport mode change, mirroring
// TransportControllerTask's CMD_TRANSPORT_MODE case statement: HALT and REW
// and FWD take effect (and settle) immediately, STOP and PLAY set a pending
// state that Poll later completes once reel motion has settled.
func (c *Controller) RequestMode(mode servo.Mode, libWind, record bool) {
	if c.lastModeCompleted == mode && !c.modePending {
		return
	}

	c.prevModeRequested = c.lastModeRequested
	c.lastModeRequested = mode
	c.stopTimer = 0

	switch mode {
	case servo.ModeHalt:
		c.recordDisable()
		c.lampMask &= lampDiagMask
		// Tape out: kill every solenoid and engage the brakes, same as
		// SetTransportMask(T_BRAKE, 0xFF) clearing everything, including
		// the active-high brake-release bit.
		_ = c.Banks.SetTransportMask(0, 0xFF)
		c.Servo.SetMode(servo.ModeHalt)
		c.lastModeCompleted = servo.ModeHalt
		c.modePending = false

	case servo.ModeStop:
		c.recordDisable()
		switch c.lastModeCompleted {
		case servo.ModeFwd:
			c.lampMask = (c.lampMask & lampDiagMask) | expander.LampFwd
		case servo.ModeRew:
			c.lampMask = (c.lampMask & lampDiagMask) | expander.LampRew
		default:
			c.lampMask = c.lampMask & lampDiagMask
		}
		if c.dipSwitch&expander.SwitchDIP2 == 0 {
			c.lampMask |= expander.LampStop
		}
		c.setOut(expander.OutPinchRoller|expander.OutServo|expander.OutRecordHold, false)
		c.Servo.SetMode(servo.ModeStop)
		c.modePending, c.pendingMode = true, servo.ModeStop

	case servo.ModePlay:
		if c.Servo.Mode == servo.ModePlay || c.modePending {
			return
		}
		c.pendingRecord = record
		c.Servo.SetMode(servo.ModeStop)
		c.modePending, c.pendingMode = true, servo.ModePlay

	case servo.ModeRew:
		c.recordDisable()
		if c.Servo.Mode == servo.ModeRew {
			return
		}
		c.lampMask = (c.lampMask & lampDiagMask) | expander.LampRew
		c.setOut(expander.OutTapeLifter|expander.OutBrakeRelese, true)
		c.setOut(expander.OutServo|expander.OutPinchRoller|expander.OutRecordHold, false)
		c.Servo.ShuttleVelocity = c.shuttleVelocity(libWind)
		if !c.Servo.Motion {
			c.sleep(c.Servo.Params.LifterSettleTime)
		}
		c.Servo.SetMode(servo.ModeRew)
		c.lastModeCompleted = servo.ModeRew
		c.modePending = false

	case servo.ModeFwd:
		c.recordDisable()
		if c.Servo.Mode == servo.ModeFwd {
			return
		}
		c.lampMask = (c.lampMask & lampDiagMask) | expander.LampFwd
		c.setOut(expander.OutTapeLifter|expander.OutBrakeRelese, true)
		c.setOut(expander.OutServo|expander.OutPinchRoller|expander.OutRecordHold, false)
		c.Servo.ShuttleVelocity = c.shuttleVelocity(libWind)
		if !c.Servo.Motion {
			c.sleep(c.Servo.Params.LifterSettleTime)
		}
		c.Servo.SetMode(servo.ModeFwd)
		c.lastModeCompleted = servo.ModeFwd
		c.modePending = false
	}

	diag.Record(diag.EvtModeChange, sched.Now(), uint32(c.prevModeRequested), uint32(mode))
}

func (c *Controller) shuttleVelocity(libWind bool) float32 {
	if libWind {
		return float32(c.Servo.Params.ShuttleLibVelocity)
	}
	return float32(c.Servo.Params.ShuttleVelocity)
}

// RecordCmd selects the strobe-record action.
type RecordCmd uint8

const (
	RecordPunchOut RecordCmd = iota
	RecordPunchIn
	RecordToggle
)

// StrobeRecord implements CMD_STROBE_RECORD: enable, disable, or toggle
// record mode, valid only while in play.
func (c *Controller) StrobeRecord(cmd RecordCmd) {
	if c.Servo.Mode != servo.ModePlay {
		return
	}
	switch cmd {
	case RecordPunchOut:
		c.recordDisable()
	case RecordPunchIn:
		c.recordEnable()
	case RecordToggle:
		if c.Banks.GetTransportOut()&expander.OutRecordHold != 0 {
			c.recordDisable()
		} else {
			c.recordEnable()
		}
	}
}

// ToggleLifter implements CMD_TOGGLE_LIFTER: valid in halt, stop, or play.
func (c *Controller) ToggleLifter() {
	switch c.Servo.Mode {
	case servo.ModeHalt, servo.ModeStop, servo.ModePlay:
	default:
		return
	}
	if c.Banks.GetTransportOut()&expander.OutTapeLifter != 0 {
		c.setOut(expander.OutTapeLifter, false)
	} else {
		c.setOut(expander.OutTapeLifter, true)
	}
}

func (c *Controller) recordEnable() {
	if c.Banks.GetTransportOut()&expander.OutRecordHold != 0 {
		return
	}
	c.setOut(expander.OutRecordHold, true)
	c.sleep(c.Servo.Params.RecHoldSettleTime)
	c.setOut(expander.OutRecordPulse, true)
	c.sleep(c.Servo.Params.RecordPulseTime)
	c.setOut(expander.OutRecordPulse, false)
	c.lampMask |= expander.LampRec
}

func (c *Controller) recordDisable() {
	if c.Banks.GetTransportOut()&expander.OutRecordHold == 0 {
		return
	}
	c.setOut(expander.OutRecordHold, false)
	c.lampMask &^= expander.LampRec
}

// Poll drives the pending-stop state machine: call it every pollPeriod
// while a mode is pending. It blinks the stop/fwd/rew lamp, watches for the
// 60s no-motion timeout, and completes the pending stop or play sequence
// once reel motion has died down.
func (c *Controller) Poll() {
	if !c.modePending {
		return
	}

	c.stopTimer++
	if c.stopTimer >= pendingStopTimeoutTicks {
		diag.Record(diag.EvtPendingStopTimeout, sched.Now(), uint32(c.pendingMode), c.stopTimer)
		c.lampMask = (c.lampMask & lampDiagMask) | expander.LampStop | expander.LampStat3
		c.Servo.SetMode(servo.ModeStop)
		c.modePending = false
		c.lastModeCompleted = servo.ModeStop
		return
	}

	if c.dipSwitch&expander.SwitchDIP2 == 0 && c.stopTimer%12 == 0 {
		switch c.lastModeCompleted {
		case servo.ModeRew:
			c.lampMask ^= expander.LampRew
		case servo.ModeFwd:
			c.lampMask ^= expander.LampFwd
		default:
			c.lampMask ^= expander.LampStop
		}
	}

	switch c.pendingMode {
	case servo.ModeStop:
		c.pollPendingStop()
	case servo.ModePlay:
		c.pollPendingPlay()
	}
}

func (c *Controller) pollPendingStop() {
	if c.lastModeCompleted != servo.ModePlay && c.Servo.Motion {
		return
	}

	c.setOut(expander.OutServo|expander.OutPinchRoller|expander.OutRecordHold, false)

	switch c.prevModeRequested {
	case servo.ModeFwd, servo.ModeRew, servo.ModePlay:
		if c.prevModeRequested == servo.ModePlay && c.Servo.Params.SysFlags&params.FlagBrakesStopPlay != 0 {
			c.sleep(225) // pre-brake delay, servo stop loop gets some effect first
			c.engageBrake(true)
		} else {
			c.engageBrake(false)
		}
		c.sleep(c.Servo.Params.BrakeSettleTime)
	}

	c.lampMask = (c.lampMask & lampDiagMask) | expander.LampStop

	lifterWasEngaged := c.Banks.GetTransportOut()&expander.OutTapeLifter != 0
	if c.Servo.Params.SysFlags&params.FlagLifterAtStop != 0 {
		c.setOut(expander.OutTapeLifter, true)
	} else {
		c.setOut(expander.OutTapeLifter, false)
		if lifterWasEngaged {
			c.sleep(c.Servo.Params.LifterSettleTime)
		}
	}

	c.engageBrake(c.Servo.Params.SysFlags&params.FlagBrakesAtStop != 0)

	c.lastModeCompleted = servo.ModeStop
	c.modePending = false
}

func (c *Controller) pollPendingPlay() {
	if c.Servo.Motion {
		return
	}

	c.lampMask = (c.lampMask & lampDiagMask) | expander.LampPlay

	if c.prevModeRequested == servo.ModeFwd || c.prevModeRequested == servo.ModeRew {
		c.sleep(c.Servo.Params.PlaySettleTime)
	}

	lifterWasEngaged := c.Banks.GetTransportOut()&expander.OutTapeLifter != 0
	c.setOut(expander.OutTapeLifter, false)
	c.engageBrake(false)
	if lifterWasEngaged && c.Servo.Params.SysFlags&params.FlagLifterAtStop != 0 {
		c.sleep(c.Servo.Params.LifterSettleTime)
	}

	if c.Servo.Params.SysFlags&params.FlagEngagePinchRoll != 0 {
		c.setOut(expander.OutPinchRoller, true)
		c.sleep(c.Servo.Params.PinchSettleTime)
	}

	c.resetPlayServo()

	c.setOut(expander.OutServo, true)
	c.Servo.SetMode(servo.ModePlay)

	if c.pendingRecord {
		c.pendingRecord = false
		c.recordEnable()
	}

	c.lastModeCompleted = servo.ModePlay
	c.modePending = false
}

// resetPlayServo mirrors ResetServoPlay: seeds the play-boost ramp and
// selects the high/low speed tension set before play mode engages. The
// selection lands in the servo's scratch tension fields, never in Params,
// so the persisted low-speed tuning survives a high-speed play pass.
func (c *Controller) resetPlayServo() {
	s := c.Servo
	s.PlayBoostCount = 500
	if s.HighSpeed {
		s.PlaySupplyTension = float32(s.Params.PlayHiSupplyTension)
		s.PlayTakeupTension = float32(s.Params.PlayHiTakeupTension)
		s.PlayBoostEnd = s.Params.PlayHiBoostEnd
	} else {
		s.PlaySupplyTension = float32(s.Params.PlayLoSupplyTension)
		s.PlayTakeupTension = float32(s.Params.PlayLoTakeupTension)
		s.PlayBoostEnd = s.Params.PlayLoBoostEnd
	}
}

func (c *Controller) engageBrake(engage bool) {
	// OutBrakeRelese is active-high release: engaging the brake clears it.
	c.setOut(expander.OutBrakeRelese, !engage)
}

func (c *Controller) setOut(bits uint8, set bool) {
	if set {
		_ = c.Banks.SetTransportMask(bits, 0)
	} else {
		_ = c.Banks.SetTransportMask(0, bits)
	}
}

func (c *Controller) sleep(ms int32) {
	if c.Sleep != nil {
		c.Sleep(ms)
	}
}

// LampMask returns the lamp bits the caller should write to the expander.
func (c *Controller) LampMask() uint8 { return c.lampMask }

// SetDIPSwitch records the debounced DIP/speed switch reading, used for the
// DIP2 "no lamp blink" configuration option and the high-speed tension set
// selection.
func (c *Controller) SetDIPSwitch(mask uint8) {
	c.dipSwitch = mask
	c.Servo.HighSpeed = mask&expander.SwitchHighSped != 0
}

const lampDiagMask = expander.LampStat1 | expander.LampStat2 | expander.LampStat3
