// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/teleop_rover/internal/actuator"
	"github.com/relabs-tech/teleop_rover/internal/command"
	"github.com/relabs-tech/teleop_rover/internal/config"
	"github.com/relabs-tech/teleop_rover/internal/metrics"
	"github.com/relabs-tech/teleop_rover/internal/orientation"
	"github.com/relabs-tech/teleop_rover/internal/sensors"
	"github.com/relabs-tech/teleop_rover/internal/telemetry"
	"github.com/relabs-tech/teleop_rover/internal/video"
)

// Hardware opens the devices the rover needs. Tests replace it.
type Hardware struct {
	OpenActuators func(cfg *config.Config) (actuator.Driver, error)
	OpenIMU       func(cfg *config.Config) (orientation.Source, error)
}

// DefaultHardware opens the PCA9685 and MPU6050, or their stand-ins when
// ACTUATOR_DRY_RUN or IMU_MOCK is set.
var DefaultHardware = Hardware{
	OpenActuators: func(cfg *config.Config) (actuator.Driver, error) {
		if cfg.ActuatorDryRun {
			log.Warn("rover: ACTUATOR_DRY_RUN set, servo writes are only logged")
			return actuator.NewRecorder(), nil
		}
		return actuator.OpenPCA9685(cfg.ActuatorI2CBus, cfg.ActuatorI2CAddr)
	},
	OpenIMU: func(cfg *config.Config) (orientation.Source, error) {
		if cfg.IMUMock {
			log.Warn("rover: IMU_MOCK set, using synthetic orientation")
			return orientation.NewMockSource(), nil
		}
		return sensors.OpenMPU6050(cfg.IMUI2CBus, cfg.IMUI2CAddr)
	},
}

// RunRover starts every rover task and blocks until ctx is cancelled or a
// fatal task fails. Failures of video, MQTT, GPS and display are logged and
// end only that task.
func RunRover(ctx context.Context, cfg *config.Config, hw Hardware) error {
	metrics.Register()
	state := telemetry.New()

	// Fatal init: sensor, actuators, both listeners.
	src, err := hw.OpenIMU(cfg)
	if err != nil {
		return fmt.Errorf("rover: inertial sensor: %w", err)
	}
	driver, err := hw.OpenActuators(cfg)
	if err != nil {
		closeDevices(src)
		return fmt.Errorf("rover: actuators: %w", err)
	}
	defer closeDevices(src, driver)

	cmdLn, err := net.Listen("tcp", cfg.CommandListenAddr)
	if err != nil {
		return fmt.Errorf("rover: command listen on %s: %w", cfg.CommandListenAddr, err)
	}
	webLn, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.WebServerPort))
	if err != nil {
		cmdLn.Close()
		return fmt.Errorf("rover: web listen on port %d: %w", cfg.WebServerPort, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		est := orientation.NewEstimator(cfg.IMUCalibrationSamples, cfg.IMUHysteresisDeg)
		interval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond
		return est.Run(gctx, src, state, interval)
	})

	g.Go(func() error {
		return serveWeb(gctx, webLn, state)
	})

	g.Go(func() error {
		srv := command.NewServer(driver, command.Options{
			PacketDelay:        time.Duration(cfg.CommandPacketDelayMS) * time.Millisecond,
			ResetPerConnection: cfg.IntegratorScope == config.IntegratorScopeConnection,
			Stats:              state,
		})
		settle := time.Duration(cfg.ActuatorSettleMS) * time.Millisecond
		if err := command.Home(gctx, driver, cfg.ActuatorPrescale, settle); err != nil {
			cmdLn.Close()
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rover: homing: %w", err)
		}
		log.Printf("command: listening on %s", cmdLn.Addr())
		return srv.Serve(gctx, cmdLn)
	})

	if cfg.VideoEnabled {
		goOptional(g, "video", func() error {
			args := video.CaptureArgs(cfg.VideoWidth, cfg.VideoHeight)
			return video.NewProducer(cfg.VideoCommand, args, cfg.VideoReadSize, state).Run(gctx)
		})
	}
	if cfg.MQTTEnabled {
		goOptional(g, "telemetry", func() error { return RunTelemetryMQTT(gctx, cfg, state) })
	}
	if cfg.GPSEnabled {
		goOptional(g, "gps", func() error { return RunGPS(gctx, cfg, state) })
	}
	if cfg.DisplayEnabled {
		goOptional(g, "display", func() error { return RunDisplay(gctx, cfg, state) })
	}

	log.Infof("rover: running (command %s, web :%d)", cfg.CommandListenAddr, cfg.WebServerPort)
	err = g.Wait()
	log.Info("rover: all tasks stopped")
	return err
}

// closeDevices closes every device that holds a bus.
func closeDevices(devs ...any) {
	for _, dev := range devs {
		if c, ok := dev.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warnf("rover: close: %v", err)
			}
		}
	}
}

// goOptional runs a task whose failure must not stop the rover.
func goOptional(g *errgroup.Group, name string, task func() error) {
	g.Go(func() error {
		if err := task(); err != nil {
			log.Errorf("rover: %s task ended: %v", name, err)
		}
		return nil
	})
}
