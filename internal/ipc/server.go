package ipc

import (
	"encoding/binary"
	"errors"
)

// Opcode identifies a server request. It occupies the first two bytes of a
// MSG_ONLY frame's text body, big-endian, followed by the opcode's payload.
type Opcode uint16

// Opcode values. CONFIG_EPROM/CONFIG_GET/CONFIG_SET/TRANSPORT_CMD match the
// original firmware's DTC_OP_* defines in IPCCMD_DTC1200.h. OpVersionGet's
// numeric value is not present anywhere in the kept original source (only
// the symbol is referenced, never its #define), so it is assigned here;
// any low value not colliding with the others is as valid as any other.
const (
	OpVersionGet   Opcode = 1
	OpConfigEPROM  Opcode = 100
	OpConfigGet    Opcode = 101
	OpConfigSet    Opcode = 102
	OpTransportCmd Opcode = 200
)

// ErrUnhandledOpcode is returned by Server.handle for an opcode with no
// registered handler, or any opcode outside the set above. The caller NAKs
// the frame in response, matching the original dispatcher's default case.
var ErrUnhandledOpcode = errors.New("ipc: unhandled opcode")

// EPROM store actions for OpConfigEPROM's request body.
const (
	EPROMLoad    int32 = 0
	EPROMSave    int32 = 1
	EPROMDefault int32 = 2
)

// TransportCmd values for OpTransportCmd's request body. STOP..REW_LIB
// match the original DTCTransportCommand enum; the rest extend it so the
// console's lifter/record controls have an opcode to ride, since the
// original protocol never exposed them outside ad hoc text commands.
const (
	TransportStop int32 = iota
	TransportPlay
	TransportFwd
	TransportFwdLib
	TransportRew
	TransportRewLib
	TransportToggleLifter
	TransportRecordIn
	TransportRecordOut
	TransportRecordToggle
)

// Param bit flags carried in a TRANSPORT_CMD request's param1/param2,
// matching ServoTask.h's M_RECORD/M_LIBWIND mode bits.
const (
	ParamRecord  uint16 = 0x80
	ParamLibWind uint16 = 0x40
)

// Server holds the handlers a firmware-side Link dispatches opcode
// requests to. A nil handler behaves as if the opcode were unregistered:
// the request is NAKed.
type Server struct {
	// Version returns the running firmware's version and build numbers.
	Version func() (version, build uint32)

	// ConfigEPROM performs a load/save/reset-to-defaults action (store is
	// one of EPROMLoad/EPROMSave/EPROMDefault) and returns a status code.
	ConfigEPROM func(store int32) int32

	// ConfigGet returns the current in-RAM parameter record encoded for
	// the wire.
	ConfigGet func() []byte

	// ConfigSet installs body as the in-RAM parameter record. It does not
	// persist to EEPROM; a CONFIG_EPROM(store=1) request does that.
	ConfigSet func(body []byte) error

	// TransportCmd queues a transport command.
	TransportCmd func(cmd int32, param1, param2 uint16) error
}

// handle dispatches one decoded opcode request and returns the reply body
// to carry back in a MSG+ACK frame. A nil return with a nil error means
// the opcode was handled but has nothing to send back beyond the ack.
func (s *Server) handle(op Opcode, body []byte) ([]byte, error) {
	switch op {
	case OpVersionGet:
		if s.Version == nil {
			return nil, ErrUnhandledOpcode
		}
		version, build := s.Version()
		reply := make([]byte, 8)
		binary.BigEndian.PutUint32(reply[0:4], version)
		binary.BigEndian.PutUint32(reply[4:8], build)
		return reply, nil

	case OpConfigEPROM:
		if s.ConfigEPROM == nil {
			return nil, ErrUnhandledOpcode
		}
		if len(body) < 4 {
			return nil, ErrShortPayload
		}
		store := int32(binary.BigEndian.Uint32(body[0:4]))
		status := s.ConfigEPROM(store)
		reply := make([]byte, 4)
		binary.BigEndian.PutUint32(reply, uint32(status))
		return reply, nil

	case OpConfigGet:
		if s.ConfigGet == nil {
			return nil, ErrUnhandledOpcode
		}
		return s.ConfigGet(), nil

	case OpConfigSet:
		if s.ConfigSet == nil {
			return nil, ErrUnhandledOpcode
		}
		if err := s.ConfigSet(body); err != nil {
			return nil, err
		}
		return nil, nil

	case OpTransportCmd:
		if s.TransportCmd == nil {
			return nil, ErrUnhandledOpcode
		}
		if len(body) < 8 {
			return nil, ErrShortPayload
		}
		cmd := int32(binary.BigEndian.Uint32(body[0:4]))
		param1 := binary.BigEndian.Uint16(body[4:6])
		param2 := binary.BigEndian.Uint16(body[6:8])
		if err := s.TransportCmd(cmd, param1, param2); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, ErrUnhandledOpcode
	}
}

// ErrShortPayload is returned when a request's body is too short to hold
// its opcode's fixed fields.
var ErrShortPayload = errors.New("ipc: short opcode payload")

// EncodeRequest prepends op to body as a request's wire text, so callers
// (the host console, tests) can build MSG_ONLY requests without hand
// packing the opcode header.
func EncodeRequest(op Opcode, body []byte) []byte {
	out := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(op))
	copy(out[2:], body)
	return out
}

// decodeOpcode splits a request's wire text into its opcode and payload.
func decodeOpcode(text []byte) (Opcode, []byte, error) {
	if len(text) < 2 {
		return 0, nil, ErrShortPayload
	}
	return Opcode(binary.BigEndian.Uint16(text[0:2])), text[2:], nil
}
