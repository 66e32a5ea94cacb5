// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package video

import (
	"bytes"

	log "github.com/sirupsen/logrus"
)

// EndMarker terminates every JPEG image (EOI).
var EndMarker = []byte{0xFF, 0xD9}

// DefaultMaxPending bounds the bytes held while no end marker shows up.
const DefaultMaxPending = 32 << 20

// FrameDecoder splits an MJPEG byte stream into frames. A frame is every
// byte up to and including an end marker; whatever follows stays buffered
// for the next Push.
type FrameDecoder struct {
	buf []byte
	// scanned is how much of buf is known to hold no complete marker.
	scanned int

	MaxPending int
}

// NewFrameDecoder returns an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{MaxPending: DefaultMaxPending}
}

// Push appends chunk and returns every frame it completed, oldest first.
// The returned slices are freshly allocated and never touched again by the
// decoder.
func (d *FrameDecoder) Push(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	for {
		// back up one byte so a marker split across pushes is found
		from := d.scanned - 1
		if from < 0 {
			from = 0
		}
		idx := bytes.Index(d.buf[from:], EndMarker)
		if idx < 0 {
			d.scanned = len(d.buf)
			break
		}
		end := from + idx + len(EndMarker)

		frame := make([]byte, end)
		copy(frame, d.buf[:end])
		frames = append(frames, frame)

		n := copy(d.buf, d.buf[end:])
		d.buf = d.buf[:n]
		d.scanned = 0
	}

	if d.MaxPending > 0 && len(d.buf) > d.MaxPending {
		log.Warnf("video: %d bytes without an end marker, dropping", len(d.buf))
		d.buf = d.buf[:0]
		d.scanned = 0
	}
	return frames
}

// Pending returns the number of buffered bytes not yet part of a frame.
func (d *FrameDecoder) Pending() int { return len(d.buf) }
