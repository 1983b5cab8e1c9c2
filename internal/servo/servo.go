// Package servo implements the 500Hz reel-motor torque control loop: one
// of five per-mode handlers (halt, stop, play, forward, rewind) runs every
// tick, reading reel velocity/direction/tension and writing a supply and
// takeup torque command to the motor DAC.
package servo

import (
	"dtc1200/internal/motordac"
	"dtc1200/internal/params"
	"dtc1200/internal/pid"
	"dtc1200/internal/qei"
	"dtc1200/internal/tach"
)

// Mode selects which per-tick handler runs.
type Mode uint8

const (
	ModeHalt Mode = iota
	ModeStop
	ModePlay
	ModeFwd
	ModeRew
)

// Direction of tape travel, derived from agreeing reel QEI directions.
type Direction int8

const (
	DirRew Direction = -1
	DirNone Direction = 0
	DirFwd Direction = 1
)

const (
	offsetCalcPeriod = 500 // samples (1s at 500Hz)
	offsetScale      = 500.0
	cprDiv2          = 1.0 / 2.048
)

// State is the live servo loop state: current mode, reel kinematics,
// tension/offset calculations, and the PID accumulators used by the
// shuttle and play-boost handlers.
type State struct {
	Params params.Parameters

	Mode     Mode
	ModePrev Mode
	Motion   bool
	Direction Direction

	VelocitySupply float32
	VelocityTakeup float32
	Velocity       float32
	TapeTach       float32

	RadiusSupply float32
	RadiusTakeup float32

	OffsetNull      float32
	offsetNullSum   float32
	offsetSampleCnt int
	OffsetSupply    float32
	OffsetTakeup    float32

	TSense float32

	StopBrakeState int
	StopTorqueSupply float32
	StopTorqueTakeup float32

	PlayBoostCount int32
	ShuttleVelocity float32

	// Play tension/boost-end scratch values, selected from the Lo or Hi
	// Params fields by the transport layer on entry to play mode. Kept
	// separate from Params so switching to high-speed play never overwrites
	// the persisted low-speed tuning.
	PlaySupplyTension float32
	PlayTakeupTension float32
	PlayBoostEnd      int32

	DACSupply float32
	DACTakeup float32
	DACHaltSupply float32
	DACHaltTakeup float32

	PIDShuttle *pid.Controller
	PIDPlay    *pid.Controller

	QEISupply *qei.Channel
	QEITakeup *qei.Channel
	Tach      *tach.Tach
	DAC       *motordac.DAC

	DebugCV    float32
	DebugError float32
	DebugTarget float32
	Holdback    float32

	HighSpeed bool
}

// New builds a servo State wired to the given hardware channels, with PID
// gains and tensions taken from p.
func New(p params.Parameters, qeiSupply, qeiTakeup *qei.Channel, tch *tach.Tach, dac *motordac.DAC) *State {
	s := &State{
		Params:            p,
		Mode:              ModeHalt,
		ShuttleVelocity:   float32(p.ShuttleVelocity),
		QEISupply:         qeiSupply,
		QEITakeup:         qeiTakeup,
		Tach:              tch,
		DAC:               dac,
		PlaySupplyTension: float32(p.PlayLoSupplyTension),
		PlayTakeupTension: float32(p.PlayLoTakeupTension),
		PlayBoostEnd:      p.PlayLoBoostEnd,
	}
	s.PIDShuttle = pid.New(float32(p.ShuttleServoPGain), float32(p.ShuttleServoIGain), float32(p.ShuttleServoDGain), float32(p.ShuttleMaxTorque), 0)
	s.PIDPlay = pid.New(float32(p.ShuttleServoPGain), float32(p.ShuttleServoIGain), float32(p.ShuttleServoDGain), float32(p.PlayMaxTorque), 0)
	return s
}

// SetMode transitions to a new mode, latching dynamic-brake state on any
// transition into stop from a motion mode, mirroring the original
// firmware's ServoSetMode.
func (s *State) SetMode(mode Mode) {
	prev := s.Mode
	s.ModePrev = prev
	s.Mode = mode
	if mode == ModeStop {
		if prev != ModeHalt {
			s.StopBrakeState = 1
		} else {
			s.StopBrakeState = 0
		}
	}
}

// tensionADC converts a 12-bit tension-arm ADC reading to signed tension
// units: full string travel is toward zero, so the reading is inverted
// around its midpoint.
func tensionADC(raw uint16) float32 {
	return 2047.0 - float32(raw)
}

// Tick runs one 500Hz control iteration: refresh kinematics from the QEI
// channels, tachometer, and ADC, then dispatch to the mode handler and
// write the result to the DAC.
func (s *State) Tick(tensionRaw uint16) error {
	s.refreshKinematics(tensionRaw)

	switch s.Mode {
	case ModeHalt:
		s.tickHalt()
	case ModeStop:
		s.tickStop()
	case ModePlay:
		s.tickPlay()
	case ModeFwd:
		s.tickFwd()
	case ModeRew:
		s.tickRew()
	}

	return s.DAC.Write(uint32(clamp(s.DACSupply, 0, float32(motordac.Max))), uint32(clamp(s.DACTakeup, 0, float32(motordac.Max))))
}

func (s *State) refreshKinematics(tensionRaw uint16) {
	s.TapeTach = s.Tach.AverageHz()

	rpmSupply, _ := s.QEISupply.RPM()
	rpmTakeup, _ := s.QEITakeup.RPM()
	s.VelocitySupply = rpmSupply
	s.VelocityTakeup = rpmTakeup
	s.Velocity = rpmSupply + rpmTakeup

	s.Motion = s.Velocity > float32(s.Params.VelDetectThreshold)

	sdir := sign(rpmSupply)
	tdir := sign(rpmTakeup)
	if sdir == tdir && s.Motion {
		s.Direction = sdir
	} else {
		s.Direction = DirNone
	}

	s.TSense = tensionADC(tensionRaw) * float32(s.Params.TensionSensorGain)

	s.updateOffsets()
}

func sign(v float32) Direction {
	switch {
	case v > 0:
		return DirFwd
	case v < 0:
		return DirRew
	default:
		return DirNone
	}
}

// updateOffsets computes the reeling-radius null offset that compensates
// reel torque for the constantly changing hub radius as tape pays off one
// reel and onto the other.
func (s *State) updateOffsets() {
	velDetect := float32(20.0)
	if s.HighSpeed {
		velDetect = 40.0
	}

	if !(s.VelocityTakeup > velDetect && s.VelocitySupply > velDetect) {
		return
	}

	s.RadiusTakeup = s.TapeTach / s.VelocityTakeup
	s.RadiusSupply = s.TapeTach / s.VelocitySupply

	var delta float32
	switch {
	case s.VelocityTakeup > s.VelocitySupply:
		delta = (s.VelocityTakeup*offsetScale)/s.VelocitySupply - offsetScale
	case s.VelocitySupply > s.VelocityTakeup:
		delta = (s.VelocitySupply*offsetScale)/s.VelocityTakeup - offsetScale
	}
	if delta > 1000 {
		delta = 1000
	}

	s.offsetNullSum += delta
	s.offsetSampleCnt++
	if s.offsetSampleCnt >= offsetCalcPeriod {
		s.OffsetNull = (s.offsetNullSum / offsetCalcPeriod) * float32(s.Params.NullOffsetGain)
		s.offsetNullSum = 0
		s.offsetSampleCnt = 0
	}

	if s.Params.NullOffsetGain <= 0 {
		s.OffsetSupply = 0
		s.OffsetTakeup = 0
		return
	}

	switch {
	case s.VelocityTakeup > s.VelocitySupply:
		s.OffsetSupply = s.OffsetNull
		s.OffsetTakeup = -s.OffsetNull
	case s.VelocitySupply > s.VelocityTakeup:
		s.OffsetSupply = -s.OffsetNull
		s.OffsetTakeup = s.OffsetNull
	default:
		s.OffsetSupply = 0
		s.OffsetTakeup = 0
	}
}

func (s *State) tickHalt() {
	s.DACSupply = s.DACHaltSupply
	s.DACTakeup = s.DACHaltTakeup
}

func (s *State) tickStop() {
	var brakeTorque float32

	if s.StopBrakeState != 0 {
		if s.Velocity <= float32(s.Params.VelDetectThreshold) {
			s.StopBrakeState = 0
		} else {
			if s.StopBrakeState > 1 {
				brakeTorque = s.Velocity * 5.0
			} else {
				brakeTorque = float32(s.Params.StopBrakeTorque) - s.Velocity*cprDiv2
			}
			if brakeTorque < 0 || brakeTorque > float32(s.Params.StopBrakeTorque) {
				brakeTorque = float32(s.Params.StopBrakeTorque)
			}
		}
	}

	s.StopTorqueSupply = brakeTorque
	s.StopTorqueTakeup = brakeTorque

	switch s.Direction {
	case DirFwd:
		s.DACSupply = float32(s.Params.StopSupplyTension) + s.TSense + brakeTorque + s.OffsetSupply
		s.DACTakeup = float32(s.Params.StopTakeupTension) + s.TSense - brakeTorque + s.OffsetTakeup
	case DirRew:
		s.DACSupply = float32(s.Params.StopSupplyTension) + s.TSense - brakeTorque + s.OffsetSupply
		s.DACTakeup = float32(s.Params.StopTakeupTension) + s.TSense + brakeTorque + s.OffsetTakeup
	default:
		s.DACSupply = float32(s.Params.StopSupplyTension) + s.TSense + s.OffsetSupply
		s.DACTakeup = float32(s.Params.StopTakeupTension) + s.TSense + s.OffsetTakeup
	}
}

func (s *State) tickPlay() {
	if s.PlayBoostCount > 0 {
		s.PlayBoostCount--

		target := float32(s.PlayBoostEnd)
		cv := s.PIDPlay.Calc(target, s.TapeTach)

		s.DACSupply = s.PlaySupplyTension + s.TSense + s.OffsetSupply
		s.DACTakeup = s.PlayTakeupTension + cv + s.OffsetTakeup

		if cv <= 0 {
			s.PlayBoostCount = 0
		}

		s.DebugCV = cv
		s.DebugError = s.PIDPlay.Error()
		s.DebugTarget = target
		return
	}

	s.DACSupply = s.PlaySupplyTension + s.TSense + s.OffsetSupply
	s.DACTakeup = s.PlayTakeupTension + s.TSense + s.OffsetTakeup
}

func (s *State) tickFwd() {
	target := s.shuttleTargetVelocity(s.OffsetTakeup, s.VelocitySupply > s.VelocityTakeup)

	cv := s.PIDShuttle.Calc(target, s.Velocity)
	if s.ModePrev == ModeRew && cv < 0 {
		cv = -cv
	}

	holdback := s.Velocity * s.RadiusSupply * float32(s.Params.ShuttleHoldbackGain)
	s.Holdback = holdback
	s.DebugCV = cv
	s.DebugError = s.PIDShuttle.Error()
	s.DebugTarget = target

	s.DACSupply = float32(s.Params.ShuttleSupplyTension) + holdback + s.TSense - cv + s.OffsetSupply
	s.DACTakeup = float32(s.Params.ShuttleTakeupTension) + s.TSense + cv + s.OffsetTakeup
}

func (s *State) tickRew() {
	target := s.shuttleTargetVelocity(s.OffsetSupply, s.VelocitySupply < s.VelocityTakeup)

	cv := s.PIDShuttle.Calc(target, s.Velocity)
	if s.ModePrev == ModeFwd && cv < 0 {
		cv = -cv
	}

	holdback := s.Velocity * s.RadiusTakeup * float32(s.Params.ShuttleHoldbackGain)
	s.Holdback = holdback
	s.DebugCV = cv
	s.DebugError = s.PIDShuttle.Error()
	s.DebugTarget = target

	s.DACSupply = float32(s.Params.ShuttleSupplyTension) + s.TSense + cv + s.OffsetSupply
	s.DACTakeup = float32(s.Params.ShuttleTakeupTension) + holdback + s.TSense - cv + s.OffsetTakeup
}

// shuttleTargetVelocity applies the near-reel-end autoslow reduction: once
// the relevant offset magnitude crosses the autoslow threshold and the
// transport is shuttling toward the thinning reel, clamp the requested
// velocity down to the configured slow speed.
func (s *State) shuttleTargetVelocity(offset float32, towardThinningReel bool) float32 {
	target := s.ShuttleVelocity
	if s.Params.ShuttleAutoslowVelocity == 0 {
		return target
	}
	if absf(offset) < float32(s.Params.ShuttleAutoslowOffset) {
		return target
	}
	if !towardThinningReel || s.Velocity < float32(s.Params.ShuttleVelocity)-10 {
		return target
	}
	slow := float32(s.Params.ShuttleAutoslowVelocity)
	if s.Velocity >= slow {
		s.ShuttleVelocity = slow
		return slow
	}
	return target
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
