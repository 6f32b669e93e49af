package binding

import (
	"encoding/binary"
	"io"
)

// PacketReader reads one whole packet.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes one whole packet.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter transports whole packets in both directions.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// StreamReadWriter frames packets over a byte stream.
// Each packet is prefixed by a 4-byte little-endian length.
type StreamReadWriter struct {
	io.ReadWriter
}

// NewStream creates a StreamReadWriter over a byte stream.
func NewStream(s io.ReadWriter) *StreamReadWriter {
	return &StreamReadWriter{s}
}

// maxPacketLen bounds a single packet; anything larger is a framing
// error, not a legitimate request.
const maxPacketLen = 64 * 1024

// ReadPacket implements PacketReader.
func (p *StreamReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > maxPacketLen {
		return nil, io.ErrUnexpectedEOF
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter.
func (p *StreamReadWriter) WritePacket(pkt []byte) error {
	size := uint32(len(pkt))
	if err := binary.Write(p, binary.LittleEndian, size); err != nil {
		return err
	}
	_, err := p.Write(pkt[:size])
	return err
}
