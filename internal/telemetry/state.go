// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/teleop_rover/internal/gps"
	"github.com/relabs-tech/teleop_rover/internal/metrics"
	"github.com/relabs-tech/teleop_rover/internal/orientation"
)

// State is the only thing the rover tasks share. Each cell has its own
// lock, held only while copying a value in or out.
//
// Frames, poses and fixes carry a sequence number that starts at 0 (nothing
// published yet) and grows by one per publish. Waiters pass the last
// sequence they saw and wake on the next publish; intermediate values are
// skipped, so the latest write wins.
type State struct {
	start time.Time

	poseMu  sync.RWMutex
	pose    orientation.Pose
	poseSeq uint64
	poseCh  chan struct{}

	calibrated  atomic.Bool
	offsetMu    sync.RWMutex
	rollOffset  float64
	pitchOffset float64

	frameMu  sync.Mutex
	frame    []byte
	frameSeq uint64
	frameCh  chan struct{}

	fixMu  sync.RWMutex
	fix    gps.Fix
	fixSeq uint64

	packets     atomic.Uint64
	connections atomic.Uint64
}

// New returns an empty State.
func New() *State {
	return &State{
		start:   time.Now(),
		poseCh:  make(chan struct{}),
		frameCh: make(chan struct{}),
	}
}

// PublishPose stores the latest pose and wakes pose waiters.
func (s *State) PublishPose(p orientation.Pose) {
	s.poseMu.Lock()
	s.pose = p
	s.poseSeq++
	close(s.poseCh)
	s.poseCh = make(chan struct{})
	s.poseMu.Unlock()

	metrics.PoseRoll.Set(p.Roll)
	metrics.PosePitch.Set(p.Pitch)
}

// PublishCalibration records the resting offsets once calibration finishes.
func (s *State) PublishCalibration(rollOffset, pitchOffset float64) {
	s.offsetMu.Lock()
	s.rollOffset, s.pitchOffset = rollOffset, pitchOffset
	s.offsetMu.Unlock()
	s.calibrated.Store(true)
}

// Pose returns the latest pose. It is the zero pose until the estimator
// publishes.
func (s *State) Pose() orientation.Pose {
	s.poseMu.RLock()
	defer s.poseMu.RUnlock()
	return s.pose
}

// LatestPose returns the latest pose with its sequence number.
func (s *State) LatestPose() (orientation.Pose, uint64) {
	s.poseMu.RLock()
	defer s.poseMu.RUnlock()
	return s.pose, s.poseSeq
}

// WaitPose blocks until a pose newer than after is published.
func (s *State) WaitPose(ctx context.Context, after uint64) (orientation.Pose, uint64, error) {
	for {
		s.poseMu.RLock()
		p, seq, ch := s.pose, s.poseSeq, s.poseCh
		s.poseMu.RUnlock()
		if seq > after {
			return p, seq, nil
		}
		select {
		case <-ctx.Done():
			return orientation.Pose{}, seq, ctx.Err()
		case <-ch:
		}
	}
}

// Calibrated reports whether the estimator has fixed its offsets.
func (s *State) Calibrated() bool { return s.calibrated.Load() }

// Offsets returns the calibration offsets in degrees.
func (s *State) Offsets() (roll, pitch float64) {
	s.offsetMu.RLock()
	defer s.offsetMu.RUnlock()
	return s.rollOffset, s.pitchOffset
}

// PublishFrame replaces the latest frame and wakes every frame waiter. The
// caller must not modify frame afterwards.
func (s *State) PublishFrame(frame []byte) {
	s.frameMu.Lock()
	s.frame = frame
	s.frameSeq++
	close(s.frameCh)
	s.frameCh = make(chan struct{})
	s.frameMu.Unlock()

	metrics.FramesPublished.Inc()
	metrics.FrameBytes.Set(float64(len(frame)))
}

// Frame returns the latest frame and its sequence number. The slice must
// not be modified.
func (s *State) Frame() ([]byte, uint64) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.frame, s.frameSeq
}

// FrameSeq returns the number of frames published so far.
func (s *State) FrameSeq() uint64 {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.frameSeq
}

// WaitFrame blocks until a frame newer than after is published, then
// returns the latest one.
func (s *State) WaitFrame(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		s.frameMu.Lock()
		f, seq, ch := s.frame, s.frameSeq, s.frameCh
		s.frameMu.Unlock()
		if seq > after {
			return f, seq, nil
		}
		select {
		case <-ctx.Done():
			return nil, seq, ctx.Err()
		case <-ch:
		}
	}
}

// PublishFix stores the latest GPS fix.
func (s *State) PublishFix(f gps.Fix) {
	s.fixMu.Lock()
	s.fix = f
	s.fixSeq++
	s.fixMu.Unlock()
}

// Fix returns the latest GPS fix and its sequence number; seq 0 means no
// fix has been received.
func (s *State) Fix() (gps.Fix, uint64) {
	s.fixMu.RLock()
	defer s.fixMu.RUnlock()
	return s.fix, s.fixSeq
}

// ConnectionAccepted counts a command connection.
func (s *State) ConnectionAccepted() { s.connections.Add(1) }

// PacketApplied counts an applied command packet.
func (s *State) PacketApplied() { s.packets.Add(1) }

// Packets returns the number of command packets applied.
func (s *State) Packets() uint64 { return s.packets.Load() }

// Uptime returns the time since New.
func (s *State) Uptime() time.Duration { return time.Since(s.start) }

// Started returns the creation time of the State.
func (s *State) Started() time.Time { return s.start }

// Status is a point-in-time summary of the State.
type Status struct {
	Calibrated         bool             `json:"calibrated"`
	RollOffset         float64          `json:"roll_offset"`
	PitchOffset        float64          `json:"pitch_offset"`
	Pose               orientation.Pose `json:"pose"`
	FramesPublished    uint64           `json:"frames_published"`
	LastFrameBytes     int              `json:"last_frame_bytes"`
	CommandPackets     uint64           `json:"command_packets"`
	CommandConnections uint64           `json:"command_connections"`
	GPS                *gps.Fix         `json:"gps,omitempty"`
}

// Snapshot gathers a Status. Cells are read one at a time, so the result
// may straddle concurrent updates of different cells.
func (s *State) Snapshot() Status {
	st := Status{
		Calibrated:         s.Calibrated(),
		Pose:               s.Pose(),
		CommandPackets:     s.packets.Load(),
		CommandConnections: s.connections.Load(),
	}
	st.RollOffset, st.PitchOffset = s.Offsets()

	frame, seq := s.Frame()
	st.FramesPublished = seq
	st.LastFrameBytes = len(frame)

	if fix, n := s.Fix(); n > 0 {
		st.GPS = &fix
	}
	return st
}
