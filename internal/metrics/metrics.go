// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rover Prometheus metrics.
var (
	PoseRoll = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rover_pose_roll_degrees",
		Help: "Last published roll estimate.",
	})

	PosePitch = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rover_pose_pitch_degrees",
		Help: "Last published pitch estimate.",
	})

	SensorReadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rover_sensor_read_errors_total",
		Help: "Inertial sensor reads that failed and were skipped.",
	})

	FramesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rover_video_frames_total",
		Help: "Complete JPEG frames published by the capture task.",
	})

	FrameBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rover_video_frame_bytes",
		Help: "Size of the most recent frame.",
	})

	CommandPackets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rover_command_packets_total",
		Help: "Command packets decoded and applied to the actuators.",
	})

	CommandConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rover_command_connections_total",
			Help: "Command connections by how they ended.",
		},
		[]string{"result"},
	)

	CommandAcceptErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rover_command_accept_errors_total",
		Help: "Failed accepts on the command listener that were retried.",
	})

	IntegratorValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rover_command_integrator",
		Help: "Current value of the camera channel integrator.",
	})

	VideoClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rover_video_clients",
		Help: "Open /video_feed streams.",
	})
)

var registerOnce sync.Once

// Register adds every rover collector to the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PoseRoll,
			PosePitch,
			SensorReadErrors,
			FramesPublished,
			FrameBytes,
			CommandPackets,
			CommandConnections,
			CommandAcceptErrors,
			IntegratorValue,
			VideoClients,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
