// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/metrics"
)

const (
	DefaultCalibrationSamples = 200
	DefaultHysteresisDeg      = 4.0
	DefaultSampleInterval     = 50 * time.Millisecond
)

// Estimator turns raw samples into a calibrated, jitter-suppressed Pose.
//
// The first CalibrationSamples samples are averaged into a resting offset.
// The next sample only finalizes the offsets and is otherwise discarded.
// From then on each axis is reported as raw - offset, and an axis only moves
// when it differs from its last published value by strictly more than the
// hysteresis threshold. The offsets are never recomputed.
type Estimator struct {
	calibrationSamples int
	hysteresis         float64

	samples     int
	sumRoll     float64
	sumPitch    float64
	offsetRoll  float64
	offsetPitch float64
	calibrated  bool

	last Pose
}

// NewEstimator returns an estimator. Non-positive arguments select the defaults.
func NewEstimator(calibrationSamples int, hysteresisDeg float64) *Estimator {
	if calibrationSamples <= 0 {
		calibrationSamples = DefaultCalibrationSamples
	}
	if hysteresisDeg < 0 {
		hysteresisDeg = DefaultHysteresisDeg
	}
	return &Estimator{
		calibrationSamples: calibrationSamples,
		hysteresis:         hysteresisDeg,
	}
}

// Update feeds one sample. It returns the pose to publish and true when at
// least one axis moved past the threshold; otherwise false.
func (e *Estimator) Update(s Sample) (Pose, bool) {
	if !e.calibrated {
		if e.samples < e.calibrationSamples {
			e.sumRoll += s.Roll
			e.sumPitch += s.Pitch
			e.samples++
			return Pose{}, false
		}
		e.offsetRoll = e.sumRoll / float64(e.samples)
		e.offsetPitch = e.sumPitch / float64(e.samples)
		e.calibrated = true
		log.Infof("orientation: calibration complete over %d samples (roll offset %.2f°, pitch offset %.2f°)",
			e.samples, e.offsetRoll, e.offsetPitch)
		return Pose{}, false
	}

	roll := s.Roll - e.offsetRoll
	pitch := s.Pitch - e.offsetPitch

	next := e.last
	changed := false
	if math.Abs(roll-e.last.Roll) > e.hysteresis {
		next.Roll = roll
		changed = true
	}
	if math.Abs(pitch-e.last.Pitch) > e.hysteresis {
		next.Pitch = pitch
		changed = true
	}
	if !changed {
		return e.last, false
	}
	e.last = next
	return next, true
}

// Calibrated reports whether the resting offsets have been fixed.
func (e *Estimator) Calibrated() bool { return e.calibrated }

// Offsets returns the calibration offsets; both are zero until Calibrated.
func (e *Estimator) Offsets() (roll, pitch float64) { return e.offsetRoll, e.offsetPitch }

// Last returns the last published pose.
func (e *Estimator) Last() Pose { return e.last }

// Run samples src every interval until ctx is cancelled, publishing each
// accepted estimate to pub. Read errors are logged and the tick skipped.
func (e *Estimator) Run(ctx context.Context, src Source, pub Publisher, interval time.Duration) error {
	if src == nil {
		return fmt.Errorf("orientation: nil source")
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}

	log.Infof("orientation: sampling every %s, calibrating over %d samples", interval, e.calibrationSamples)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s, err := src.Next()
		if err != nil {
			metrics.SensorReadErrors.Inc()
			log.Warnf("orientation: sensor read error: %v", err)
			continue
		}

		wasCalibrated := e.calibrated
		pose, ok := e.Update(s)
		if !wasCalibrated && e.calibrated {
			pub.PublishCalibration(e.offsetRoll, e.offsetPitch)
		}
		if ok {
			pub.PublishPose(pose)
			log.Debugf("orientation: published roll=%.2f pitch=%.2f", pose.Roll, pose.Pitch)
		}
	}
}
