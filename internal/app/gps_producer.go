// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/config"
	"github.com/relabs-tech/teleop_rover/internal/gps"
	"github.com/relabs-tech/teleop_rover/internal/telemetry"
)

// RunGPS opens the GPS serial port and stores every RMC fix in state until
// the port fails or ctx is cancelled.
func RunGPS(ctx context.Context, cfg *config.Config, state *telemetry.State) error {
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("gps: open %s: %w", serialOpts.PortName, err)
	}
	// closing the port unblocks the pending read on shutdown
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()
	defer port.Close()
	log.Printf("gps: serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	fixes := 0
	err = gps.ReadFixes(ctx, port, func(f gps.Fix) {
		state.PublishFix(f)
		fixes++
		if fixes == 1 || log.IsLevelEnabled(log.DebugLevel) {
			log.Printf("gps: fix %+v", f)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
