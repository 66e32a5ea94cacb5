// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package command

import (
	"math"
	"sync"
)

// Camera integrator bounds.
const (
	IntegratorSeed = 156.0
	IntegratorMin  = 0.0
	IntegratorMax  = 306.0
)

// Integrator accumulates camera deltas. It saturates at its bounds on every
// update, so a large overshoot never needs to be unwound.
type Integrator struct {
	mu    sync.Mutex
	value float64
}

// NewIntegrator returns an integrator at IntegratorSeed.
func NewIntegrator() *Integrator {
	return &Integrator{value: IntegratorSeed}
}

// Add applies delta and returns the clamped result. NaN deltas are ignored.
func (in *Integrator) Add(delta float64) float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !math.IsNaN(delta) {
		in.value = math.Min(IntegratorMax, math.Max(IntegratorMin, in.value+delta))
	}
	return in.value
}

// Value returns the current value.
func (in *Integrator) Value() float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.value
}

// Reset returns the integrator to IntegratorSeed.
func (in *Integrator) Reset() {
	in.mu.Lock()
	in.value = IntegratorSeed
	in.mu.Unlock()
}
