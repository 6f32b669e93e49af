package binding

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/atspaeth/Neurobot/pkg/drive"
	"github.com/atspaeth/Neurobot/pkg/hsr"
	"github.com/atspaeth/Neurobot/pkg/session"
)

// Order is the wire byte order.
var Order = binary.LittleEndian

// Version is the wire layout version. A decoder rejects packets with
// any other version.
const Version byte = 1

// Request codes.
const (
	CodeOpen      byte = 0x01
	CodeConfigure byte = 0x02
	CodeStart     byte = 0x03
	CodeRead      byte = 0x04
	CodeWrite     byte = 0x05
	CodeStop      byte = 0x06
	CodeClose     byte = 0x07
	CodeState     byte = 0x08
	CodeGetConfig byte = 0x09
)

// replyFlag marks a reply packet.
const replyFlag byte = 0x80

// Error kinds carried in reply status bytes.
const (
	KindOK                  byte = 0
	KindInvalidState        byte = 1
	KindFaulted             byte = 2
	KindOutOfRange          byte = 3
	KindConflict            byte = 4
	KindAlreadyRunning      byte = 5
	KindNotRunning          byte = 6
	KindHardwareUnavailable byte = 7
	KindShutdownTimeout     byte = 8
	KindBusy                byte = 9
	KindNotFound            byte = 10
	KindPermissionDenied    byte = 11
	KindNoSession           byte = 12
	KindBadRequest          byte = 13
	KindInternal            byte = 0x7f
)

// CallError is an error received over the wire.
type CallError struct {
	Kind    byte
	Message string
}

// Error implements error.
func (e *CallError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote error %d: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("remote error %d", e.Kind)
}

// KindOf maps a session-side error to its wire kind.
func KindOf(err error) byte {
	switch {
	case err == nil:
		return KindOK
	case err == session.ErrFaulted:
		return KindFaulted
	case err == session.ErrShutdownTimeout:
		return KindShutdownTimeout
	case err == hsr.ErrBusy:
		return KindBusy
	case err == drive.ErrAlreadyRunning:
		return KindAlreadyRunning
	case err == drive.ErrNotRunning, err == drive.ErrNotConfigured:
		return KindNotRunning
	case err == drive.ErrHardwareUnavailable:
		return KindHardwareUnavailable
	case os.IsNotExist(err):
		return KindNotFound
	case os.IsPermission(err):
		return KindPermissionDenied
	}
	switch e := err.(type) {
	case *session.InvalidStateError:
		return KindInvalidState
	case *drive.ConfigError:
		if e.Kind == drive.ConfigConflict {
			return KindConflict
		}
		return KindOutOfRange
	case *CallError:
		return e.Kind
	}
	return KindInternal
}

func floatBits(v float32) uint32 { return math.Float32bits(v) }
func bitsFloat(b uint32) float32 { return math.Float32frombits(b) }

// Frame sizes.
const (
	sampleFrameLen  = 8 + 4 + 4*4 + 4*2 + 4
	commandFrameLen = 4*4 + 4
	configFrameLen  = 4 + 4 + 3*hsr.AnalogChannels + 3*hsr.PWMChannels
)

// EncodeSample lays out a sample for the wire.
func EncodeSample(s *drive.Sample) []byte {
	b := make([]byte, sampleFrameLen)
	Order.PutUint64(b[0:], uint64(s.Time.UnixNano()))
	Order.PutUint32(b[8:], s.Gen)
	for i, v := range s.ADC {
		Order.PutUint32(b[12+4*i:], floatBits(v))
	}
	for i, v := range s.Raw {
		Order.PutUint16(b[28+2*i:], v)
	}
	Order.PutUint32(b[36:], s.Digital)
	return b
}

// DecodeSample is the inverse of EncodeSample.
func DecodeSample(b []byte) (*drive.Sample, error) {
	if len(b) != sampleFrameLen {
		return nil, fmt.Errorf("sample frame length %d", len(b))
	}
	s := &drive.Sample{
		Time:    time.Unix(0, int64(Order.Uint64(b[0:]))),
		Gen:     Order.Uint32(b[8:]),
		Digital: Order.Uint32(b[36:]),
	}
	for i := range s.ADC {
		s.ADC[i] = bitsFloat(Order.Uint32(b[12+4*i:]))
	}
	for i := range s.Raw {
		s.Raw[i] = Order.Uint16(b[28+2*i:])
	}
	return s, nil
}

// EncodeCommand lays out a command for the wire.
func EncodeCommand(c drive.Command) []byte {
	b := make([]byte, commandFrameLen)
	for i, v := range c.Duty {
		Order.PutUint32(b[4*i:], floatBits(v))
	}
	Order.PutUint32(b[16:], c.Digital)
	return b
}

// DecodeCommand is the inverse of EncodeCommand.
func DecodeCommand(b []byte) (drive.Command, error) {
	var c drive.Command
	if len(b) != commandFrameLen {
		return c, fmt.Errorf("command frame length %d", len(b))
	}
	for i := range c.Duty {
		c.Duty[i] = bitsFloat(Order.Uint32(b[4*i:]))
	}
	c.Digital = Order.Uint32(b[16:])
	return c, nil
}

// EncodeConfig lays out a channel configuration for the wire.
func EncodeConfig(conf drive.ChannelConfig) []byte {
	b := make([]byte, configFrameLen)
	Order.PutUint32(b[0:], uint32(conf.Period/time.Microsecond))
	Order.PutUint32(b[4:], floatBits(conf.PWMMax))
	off := 8
	for _, ch := range conf.Analog {
		Order.PutUint16(b[off:], uint16(int16(ch.Pin)))
		if ch.Enabled {
			b[off+2] = 1
		}
		off += 3
	}
	for _, ch := range conf.PWM {
		Order.PutUint16(b[off:], uint16(int16(ch.Pin)))
		if ch.Enabled {
			b[off+2] = 1
		}
		off += 3
	}
	return b
}

// DecodeConfig is the inverse of EncodeConfig.
func DecodeConfig(b []byte) (drive.ChannelConfig, error) {
	var conf drive.ChannelConfig
	if len(b) != configFrameLen {
		return conf, fmt.Errorf("config frame length %d", len(b))
	}
	conf.Period = time.Duration(Order.Uint32(b[0:])) * time.Microsecond
	conf.PWMMax = bitsFloat(Order.Uint32(b[4:]))
	off := 8
	for i := range conf.Analog {
		conf.Analog[i].Pin = int(int16(Order.Uint16(b[off:])))
		conf.Analog[i].Enabled = b[off+2] != 0
		off += 3
	}
	for i := range conf.PWM {
		conf.PWM[i].Pin = int(int16(Order.Uint16(b[off:])))
		conf.PWM[i].Enabled = b[off+2] != 0
		off += 3
	}
	return conf, nil
}

// Request encodes a request packet.
func Request(code byte, payload []byte) []byte {
	b := make([]byte, len(payload)+2)
	b[0], b[1] = Version, code
	copy(b[2:], payload)
	return b
}

// Reply encodes a reply packet for code with a status kind.
func Reply(code, kind byte, payload []byte) []byte {
	b := make([]byte, len(payload)+3)
	b[0], b[1], b[2] = Version, code|replyFlag, kind
	copy(b[3:], payload)
	return b
}

// ParseRequest splits a request packet.
func ParseRequest(pkt []byte) (code byte, payload []byte, err error) {
	if len(pkt) < 2 {
		return 0, nil, fmt.Errorf("short packet")
	}
	if pkt[0] != Version {
		return 0, nil, fmt.Errorf("unsupported wire version %d", pkt[0])
	}
	if pkt[1]&replyFlag != 0 {
		return 0, nil, fmt.Errorf("reply code %#x in request", pkt[1])
	}
	return pkt[1], pkt[2:], nil
}

// ParseReply splits a reply packet and converts a non-OK status into
// a *CallError.
func ParseReply(pkt []byte, wantCode byte) ([]byte, error) {
	if len(pkt) < 3 {
		return nil, fmt.Errorf("short packet")
	}
	if pkt[0] != Version {
		return nil, fmt.Errorf("unsupported wire version %d", pkt[0])
	}
	if pkt[1] != wantCode|replyFlag {
		return nil, fmt.Errorf("reply code %#x, want %#x", pkt[1], wantCode|replyFlag)
	}
	if kind := pkt[2]; kind != KindOK {
		return nil, &CallError{Kind: kind, Message: string(pkt[3:])}
	}
	return pkt[3:], nil
}
