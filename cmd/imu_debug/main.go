// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/config"
	"github.com/relabs-tech/teleop_rover/internal/imu"
	"github.com/relabs-tech/teleop_rover/internal/orientation"
	"github.com/relabs-tech/teleop_rover/internal/sensors"
)

func main() {
	cfgPath := flag.String("config", "", "configuration file path")
	interval := flag.Duration("interval", 200*time.Millisecond, "read interval")
	flag.Parse()

	log.Println("starting MPU6050 debug tool (standalone)")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dev, err := sensors.OpenMPU6050(cfg.IMUI2CBus, cfg.IMUI2CAddr)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer dev.Close()
	log.Printf("MPU6050 found on %s at 0x%02x", cfg.IMUI2CBus, cfg.IMUI2CAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := logAccel(dev); err != nil {
			log.Printf("read error: %v", err)
		}
	}
}

func logAccel(src imu.AccelRawSource) error {
	raw, err := src.ReadAccelRaw()
	if err != nil {
		return err
	}
	s := orientation.SampleFromAccel(float64(raw.Ax), float64(raw.Ay), float64(raw.Az))
	log.Printf("%s accel raw x=%6d y=%6d z=%6d  roll=%7.2f pitch=%7.2f", raw.Source, raw.Ax, raw.Ay, raw.Az, s.Roll, s.Pitch)
	return nil
}
