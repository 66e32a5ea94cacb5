// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/actuator"
	"github.com/relabs-tech/teleop_rover/internal/metrics"
)

// DefaultPacketDelay is the pause after each applied packet.
const DefaultPacketDelay = 100 * time.Millisecond

// Accept failures are retried with a doubling delay between these bounds.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Stats receives command channel events. telemetry.State implements it.
type Stats interface {
	ConnectionAccepted()
	PacketApplied()
}

// Options tune a Server.
type Options struct {
	// PacketDelay is slept after each applied packet. Zero means no delay.
	PacketDelay time.Duration
	// ResetPerConnection resets the integrator when a connection is accepted.
	ResetPerConnection bool
	// Stats is optional.
	Stats Stats
}

// Server accepts command connections one at a time and applies every
// packet to the actuator driver it owns.
type Server struct {
	driver actuator.Driver
	opts   Options
	integ  *Integrator
}

// NewServer returns a server driving d.
func NewServer(d actuator.Driver, opts Options) *Server {
	return &Server{
		driver: d,
		opts:   opts,
		integ:  NewIntegrator(),
	}
}

// Integrator exposes the camera integrator, mainly for status and tests.
func (s *Server) Integrator() *Integrator { return s.integ }

// ListenAndServe binds addr and calls Serve. A bind failure is returned
// immediately.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("command: listen on %s: %w", addr, err)
	}
	log.Infof("command: listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln serially until ctx is cancelled. A
// second client waits in the listen backlog until the first disconnects.
// Accept errors such as EMFILE are logged and retried; Serve only fails if
// the listener is closed underneath it.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("command: accept: %w", err)
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			metrics.CommandAcceptErrors.Inc()
			log.Warnf("command: accept error: %v; retrying in %v", err, backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	session := uuid.NewString()
	logger := log.WithField("session", session)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	if s.opts.ResetPerConnection {
		s.integ.Reset()
	}
	if s.opts.Stats != nil {
		s.opts.Stats.ConnectionAccepted()
	}
	logger.Infof("command: connection from %s", conn.RemoteAddr())

	packets, result := s.serveConn(ctx, conn, logger)
	metrics.CommandConnections.WithLabelValues(result).Inc()
	logger.Infof("command: connection closed (%s) after %d packets", result, packets)
}

// serveConn runs the read/apply loop and reports why it ended.
func (s *Server) serveConn(ctx context.Context, r io.Reader, logger *log.Entry) (int, string) {
	packets := 0
	for {
		p, err := ReadPacket(r)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return packets, "shutdown"
			case errors.Is(err, io.EOF):
				return packets, "eof"
			case errors.Is(err, ErrShortPacket):
				logger.Warnf("command: %v", err)
				return packets, "short_packet"
			default:
				logger.Warnf("command: read error: %v", err)
				return packets, "read_error"
			}
		}

		if err := s.Apply(p); err != nil {
			logger.Errorf("command: %v", err)
			return packets, "actuator_error"
		}
		packets++
		logger.Debugf("command: packet %d applied, camera %.1f", packets, s.integ.Value())

		if s.opts.PacketDelay > 0 {
			t := time.NewTimer(s.opts.PacketDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return packets, "shutdown"
			case <-t.C:
			}
		}
	}
}

// Apply maps one packet and writes it to the driver.
func (s *Server) Apply(p Packet) error {
	cmd := Map(p, s.integ)
	if err := cmd.Apply(s.driver); err != nil {
		return fmt.Errorf("apply packet: %w", err)
	}
	metrics.CommandPackets.Inc()
	metrics.IntegratorValue.Set(s.integ.Value())
	if s.opts.Stats != nil {
		s.opts.Stats.PacketApplied()
	}
	return nil
}
