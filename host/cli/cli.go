// Package cli implements the interactive companion-controller console: a
// read-eval-print loop that tokenizes operator input with shlex and turns
// it into IPC opcode requests sent over a link.Connection.
package cli

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"dtc1200/internal/ipc"
)

// connection is the subset of link.Connection the console drives, narrowed
// so tests can exercise command parsing against a fake.
type connection interface {
	Send(text []byte) error
	IsConnected() bool
	OnMessage(fn func([]byte))
}

// CLI runs the interactive command loop against an already-connected
// Connection.
type CLI struct {
	conn connection
	in   *bufio.Scanner
	out  io.Writer
}

// New builds a CLI reading from in and writing prompts/output to out.
func New(conn connection, in io.Reader, out io.Writer) *CLI {
	c := &CLI{conn: conn, in: bufio.NewScanner(in), out: out}
	conn.OnMessage(c.printInbound)
	return c
}

// printInbound renders a reply's payload. An 8-byte reply is read as a
// VERSION_GET version+build pair, since that is the only 8-byte opcode
// reply this console itself issues; anything else (CONFIG_EPROM's 4-byte
// status and CONFIG_GET's parameter record included) is shown as hex.
func (c *CLI) printInbound(text []byte) {
	if len(text) == 8 {
		version := binary.BigEndian.Uint32(text[0:4])
		build := binary.BigEndian.Uint32(text[4:8])
		fmt.Fprintf(c.out, "\n<< version=%d build=%d\n%s", version, build, prompt)
		return
	}
	fmt.Fprintf(c.out, "\n<< %s\n%s", hex.EncodeToString(text), prompt)
}

const prompt = "dtc> "

// Run reads commands until quit/exit/EOF.
func (c *CLI) Run() error {
	fmt.Fprintln(c.out, "DTC-1200 companion console. Type 'help' for commands.")
	for {
		fmt.Fprint(c.out, prompt)
		if !c.in.Scan() {
			return c.in.Err()
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}

		fields, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(c.out, "parse error: %v\n", err)
			continue
		}
		if len(fields) == 0 {
			continue
		}

		if done := c.dispatch(fields); done {
			return nil
		}
	}
}

func (c *CLI) dispatch(fields []string) (quit bool) {
	switch strings.ToLower(fields[0]) {
	case "quit", "exit", "q":
		return true

	case "help", "?":
		c.printHelp()

	case "mode":
		c.cmdMode(fields[1:])

	case "lifter":
		c.sendTransport(ipc.TransportToggleLifter, 0, 0)

	case "record":
		c.cmdRecord(fields[1:])

	case "version":
		c.sendRequest(ipc.OpVersionGet, nil)

	case "config":
		c.cmdConfig(fields[1:])

	case "raw":
		c.cmdRaw(fields[1:])

	default:
		fmt.Fprintf(c.out, "unknown command %q, try 'help'\n", fields[0])
	}
	return false
}

func (c *CLI) cmdMode(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: mode <stop|play|fwd|rew> [lib] [rec]")
		return
	}

	var libWind, record bool
	for _, flag := range args[1:] {
		switch strings.ToLower(flag) {
		case "lib":
			libWind = true
		case "rec":
			record = true
		}
	}

	var param1 uint16
	if record {
		param1 = ipc.ParamRecord
	}

	switch strings.ToLower(args[0]) {
	case "stop":
		c.sendTransport(ipc.TransportStop, 0, 0)
	case "play":
		c.sendTransport(ipc.TransportPlay, param1, 0)
	case "fwd":
		if libWind {
			c.sendTransport(ipc.TransportFwdLib, 0, 0)
		} else {
			c.sendTransport(ipc.TransportFwd, 0, 0)
		}
	case "rew":
		if libWind {
			c.sendTransport(ipc.TransportRewLib, 0, 0)
		} else {
			c.sendTransport(ipc.TransportRew, 0, 0)
		}
	default:
		fmt.Fprintf(c.out, "unknown mode %q\n", args[0])
	}
}

func (c *CLI) cmdRecord(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: record <in|out|toggle>")
		return
	}
	switch strings.ToLower(args[0]) {
	case "in":
		c.sendTransport(ipc.TransportRecordIn, 0, 0)
	case "out":
		c.sendTransport(ipc.TransportRecordOut, 0, 0)
	case "toggle":
		c.sendTransport(ipc.TransportRecordToggle, 0, 0)
	default:
		fmt.Fprintf(c.out, "unknown record command %q\n", args[0])
	}
}

func (c *CLI) cmdConfig(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: config <get|eprom <load|save|reset>>")
		return
	}
	switch strings.ToLower(args[0]) {
	case "get":
		c.sendRequest(ipc.OpConfigGet, nil)
	case "eprom":
		if len(args) < 2 {
			fmt.Fprintln(c.out, "usage: config eprom <load|save|reset>")
			return
		}
		var store int32
		switch strings.ToLower(args[1]) {
		case "load":
			store = ipc.EPROMLoad
		case "save":
			store = ipc.EPROMSave
		case "reset":
			store = ipc.EPROMDefault
		default:
			fmt.Fprintf(c.out, "unknown eprom action %q\n", args[1])
			return
		}
		body := make([]byte, 4)
		binary.BigEndian.PutUint32(body, uint32(store))
		c.sendRequest(ipc.OpConfigEPROM, body)
	default:
		fmt.Fprintf(c.out, "unknown config command %q\n", args[0])
	}
}

// cmdRaw sends an arbitrary opcode with a hex-encoded payload, for probing
// the link during bring-up without adding a dedicated command per opcode.
func (c *CLI) cmdRaw(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "usage: raw <opcode> [hex-payload]")
		return
	}
	op, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		fmt.Fprintf(c.out, "bad opcode %q: %v\n", args[0], err)
		return
	}
	var payload []byte
	if len(args) > 1 {
		payload, err = hex.DecodeString(args[1])
		if err != nil {
			fmt.Fprintf(c.out, "bad hex payload: %v\n", err)
			return
		}
	}
	c.sendRequest(ipc.Opcode(op), payload)
}

func (c *CLI) sendTransport(cmd int32, param1, param2 uint16) {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], uint32(cmd))
	binary.BigEndian.PutUint16(body[4:6], param1)
	binary.BigEndian.PutUint16(body[6:8], param2)
	c.sendRequest(ipc.OpTransportCmd, body)
}

func (c *CLI) sendRequest(op ipc.Opcode, body []byte) {
	if !c.conn.IsConnected() {
		fmt.Fprintln(c.out, "not connected")
		return
	}
	if err := c.conn.Send(ipc.EncodeRequest(op, body)); err != nil {
		fmt.Fprintf(c.out, "send failed: %v\n", err)
	}
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, `commands:
  mode <stop|play|fwd|rew> [lib] [rec]        request a transport mode
  lifter                                      toggle the tape lifter
  record <in|out|toggle>                      strobe record punch
  version                                     request firmware version+build
  config get                                  fetch the in-RAM parameter record
  config eprom <load|save|reset>              load/save/reset the parameter record
  raw <opcode> [hex-payload]                   send a literal opcode request
  help                                         this message
  quit                                         close the console`)
}
