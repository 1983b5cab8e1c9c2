// Package pid implements the floating point PID controller used to turn a
// tension or velocity error into a DAC torque command. The integral term
// is windowed to [0, cvMax] rather than being allowed to run away, and the
// derivative term is taken on the process variable (not the error) to
// avoid a derivative kick on setpoint steps.
package pid

import "github.com/orsinium-labs/tinymath"

// Controller holds one PID loop's gains and running state.
type Controller struct {
	Kp, Ki, Kd float32
	cvMax      float32
	tolerance  float32

	error  float32
	esum   float32
	pvPrev float32
}

// New creates a Controller clamped to [0, cvMax] with an error dead band
// of tolerance.
func New(kp, ki, kd, cvMax, tolerance float32) *Controller {
	return &Controller{Kp: kp, Ki: ki, Kd: kd, cvMax: cvMax, tolerance: tolerance}
}

// Reset zeroes the running accumulators without touching the gains.
func (c *Controller) Reset() {
	c.error = 0
	c.esum = 0
	c.pvPrev = 0
}

// Calc runs one control-loop iteration and returns the clamped control
// variable. Call at a fixed sample interval.
func (c *Controller) Calc(setpoint, actual float32) float32 {
	c.error = setpoint - actual
	if tinymath.Abs(c.error) < c.tolerance {
		c.error = 0
	}

	cv := c.Kp * c.error

	c.esum += c.error
	c.esum = tinymath.Min(c.esum, c.cvMax)
	c.esum = tinymath.Max(c.esum, 0)

	ki := tinymath.Min(c.Ki, c.cvMax)
	cvi := ki * c.esum

	cvd := c.Kd * (c.pvPrev - actual)
	c.pvPrev = actual

	cv += cvi + cvd

	cv = tinymath.Max(cv, 0)
	cv = tinymath.Min(cv, c.cvMax)

	return cv
}

// Error returns the most recently computed setpoint error.
func (c *Controller) Error() float32 { return c.error }
