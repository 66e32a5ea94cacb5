// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source that generates smooth
// changing values around a small fixed tilt, so calibration has something
// to remove.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Sample, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	return Sample{
		Roll:  2 + 20*math.Sin(elapsed*0.2),
		Pitch: -1 + 15*math.Cos(elapsed*0.14),
	}, nil
}
