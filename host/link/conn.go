package link

import (
	"fmt"
	"sync"
	"time"

	"dtc1200/internal/hal"
	"dtc1200/internal/ipc"
	"dtc1200/internal/sched"
	"dtc1200/host/serial"
)

// pollTimeoutMS bounds each OnReceive call so the reader goroutine notices
// Close promptly instead of blocking on a dead port.
const pollTimeoutMS = 50

// tickPeriod is how often the tick goroutine advances the shared sched
// clock, driving the IPC retransmit timer the way the firmware's main loop
// does on target.
const tickPeriod = time.Millisecond

// Connection is a host-side session to the companion controller: a serial
// port framed by the same IPC codec the firmware speaks, with a background
// reader goroutine so callers never block waiting on the wire themselves.
type Connection struct {
	uart *SerialUART
	ipc  *ipc.Link

	mu        sync.Mutex
	connected bool
	stop      chan struct{}
	done      chan struct{}
}

// New creates a disconnected Connection.
func New() *Connection {
	return &Connection{}
}

// Connect opens device at baud and starts the reader goroutine.
func (c *Connection) Connect(device string, baud int) error {
	return c.ConnectWithConfig(&serial.Config{Device: device, Baud: baud, ReadTimeout: pollTimeoutMS})
}

// ConnectWithConfig opens a connection with an explicit serial configuration.
// Only cfg.Device and cfg.Baud are used; cfg.ReadTimeout is ignored.
func (c *Connection) ConnectWithConfig(cfg *serial.Config) error {
	u, err := Open(cfg.Device, cfg.Baud)
	if err != nil {
		return fmt.Errorf("link: open %s: %w", cfg.Device, err)
	}

	c.mu.Lock()
	c.uart = u
	c.ipc = ipc.NewLink(u)
	c.connected = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.tick()
	go c.pump()

	// Let the controller's UART settle after DTR toggling resets it.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// OnMessage registers the handler invoked for every inbound message frame.
// It takes effect only after Connect has succeeded; called before Connect
// it registers nothing.
func (c *Connection) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ipc != nil {
		c.ipc.Handler = fn
	}
}

// Send transmits text to the controller, awaiting ACK under the hood.
func (c *Connection) Send(text []byte) error {
	c.mu.Lock()
	l := c.ipc
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return fmt.Errorf("link: not connected")
	}
	return l.SendMessage(text)
}

// IsConnected reports whether Connect has succeeded and Close has not run.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close stops the reader goroutine and closes the serial port.
func (c *Connection) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	stop, done, u := c.stop, c.done, c.uart
	c.mu.Unlock()

	close(stop)
	<-done
	return u.Close()
}

// tick advances the shared sched clock and dispatches due timers, standing
// in for the firmware main loop's sched.Dispatch call so the IPC
// retransmit timer still fires on the host build.
func (c *Connection) tick() {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			sched.SetNow(sched.Now() + sched.FromMillis(1))
			sched.Dispatch()
		}
	}
}

// pump services inbound frames until Close.
func (c *Connection) pump() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if err := c.ipc.OnReceive(pollTimeoutMS); err != nil {
			// Timeouts are the normal idle case; anything else (CRC/sync
			// errors) is already recorded to diag by the link itself.
			continue
		}
	}
}

var _ hal.UART = (*SerialUART)(nil)
