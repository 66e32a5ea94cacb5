// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

// Sample is one raw roll/pitch reading in degrees, before calibration.
type Sample struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// Pose is the published, calibrated orientation estimate in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// Source is anything that can provide samples over time: the MPU6050,
// the mock source, maybe a replay source from file later.
type Source interface {
	Next() (Sample, error)
}

// Publisher receives every estimate the Estimator decides to publish, and
// the resting offsets once calibration completes.
type Publisher interface {
	PublishPose(Pose)
	PublishCalibration(rollOffset, pitchOffset float64)
}

// AccelAngles computes roll and pitch in radians from accelerometer data
// in any unit, since only the ratios matter.
//
//	roll  = atan2(ay, sqrt(ax² + az²))
//	pitch = atan2(-ax, sqrt(ay² + az²))
func AccelAngles(ax, ay, az float64) (roll, pitch float64) {
	roll = math.Atan2(ay, math.Sqrt(ax*ax+az*az))
	pitch = math.Atan2(-ax, math.Sqrt(ay*ay+az*az))
	return roll, pitch
}

// SampleFromRadians converts a roll/pitch pair in radians to a Sample.
func SampleFromRadians(roll, pitch float64) Sample {
	return Sample{
		Roll:  roll * 180.0 / math.Pi,
		Pitch: pitch * 180.0 / math.Pi,
	}
}

// SampleFromAccel is AccelAngles followed by SampleFromRadians.
func SampleFromAccel(ax, ay, az float64) Sample {
	return SampleFromRadians(AccelAngles(ax, ay, az))
}
