// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Write is one SetChannel call seen by a Recorder.
type Write struct {
	Channel Channel
	Duty    uint16
}

// MaxRecordedWrites is how many of the most recent writes a Recorder keeps.
const MaxRecordedWrites = 1024

// Recorder is a Driver that drives nothing. It remembers the latest writes so
// a rover can run on the bench without a servo board.
type Recorder struct {
	mu       sync.Mutex
	duty     [NumChannels]uint16
	writes   []Write
	enabled  bool
	prescale uint8
}

// NewRecorder returns an idle Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetChannel implements Driver.
func (r *Recorder) SetChannel(ch Channel, duty uint16) error {
	if !ch.Valid() {
		return fmt.Errorf("recorder: invalid channel %d", ch)
	}
	if duty > MaxDuty {
		duty = MaxDuty
	}
	r.mu.Lock()
	r.duty[ch] = duty
	r.writes = append(r.writes, Write{Channel: ch, Duty: duty})
	if len(r.writes) >= 2*MaxRecordedWrites {
		r.writes = append(r.writes[:0], r.writes[len(r.writes)-MaxRecordedWrites:]...)
	}
	r.mu.Unlock()
	log.Debugf("recorder: %s = %d", ch, duty)
	return nil
}

// Enable implements Driver.
func (r *Recorder) Enable() error {
	r.mu.Lock()
	r.enabled = true
	r.mu.Unlock()
	log.Debug("recorder: enabled")
	return nil
}

// SetPrescale implements Driver.
func (r *Recorder) SetPrescale(prescale uint8) error {
	r.mu.Lock()
	r.prescale = prescale
	r.mu.Unlock()
	log.Debugf("recorder: prescale %d", prescale)
	return nil
}

// Duty returns the last duty written to ch.
func (r *Recorder) Duty(ch Channel) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duty[ch]
}

// Writes returns a copy of the last MaxRecordedWrites writes in call order.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.writes
	if len(w) > MaxRecordedWrites {
		w = w[len(w)-MaxRecordedWrites:]
	}
	return append([]Write(nil), w...)
}

// Enabled reports whether Enable was called.
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Prescale returns the last prescale written.
func (r *Recorder) Prescale() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prescale
}
