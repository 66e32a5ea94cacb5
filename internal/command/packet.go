// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// PacketSize is the fixed size of a command packet on the wire.
//
// Layout (little-endian float32, no header, no checksum):
//   - f0..f2: x, y, z body translation
//   - f3:     rotation
//   - f4..f5: leg spread and lift
//   - f6..f10: auxiliary outputs passed straight to C8..C12
//   - f11:    camera delta added to the integrator
const PacketSize = 48

// NumFields is the number of float32 values in a packet.
const NumFields = PacketSize / 4

// ErrShortPacket means the peer closed the connection part way through a packet.
var ErrShortPacket = errors.New("short command packet")

// Packet is one decoded command record.
type Packet [NumFields]float32

// DecodePacket decodes exactly PacketSize bytes.
func DecodePacket(b []byte) (Packet, error) {
	var p Packet
	if len(b) != PacketSize {
		return p, fmt.Errorf("command packet is %d bytes, want %d", len(b), PacketSize)
	}
	for i := range p {
		p[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return p, nil
}

// Encode returns the wire form of p.
func (p Packet) Encode() []byte {
	buf := make([]byte, PacketSize)
	for i, v := range p {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// ReadPacket blocks until a full packet has been read from r. It returns
// io.EOF when r ends cleanly between packets and ErrShortPacket when it
// ends inside one.
func ReadPacket(r io.Reader) (Packet, error) {
	var buf [PacketSize]byte
	n, err := io.ReadFull(r, buf[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return Packet{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Packet{}, fmt.Errorf("%w: got %d of %d bytes", ErrShortPacket, n, PacketSize)
	default:
		return Packet{}, err
	}
	return DecodePacket(buf[:])
}

// WritePacket writes the wire form of p to w.
func WritePacket(w io.Writer, p Packet) error {
	_, err := w.Write(p.Encode())
	return err
}
