// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package command

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/actuator"
)

// LegChannels are centered first, before the settle delay.
var LegChannels = []actuator.Channel{actuator.C0, actuator.C1, actuator.C2, actuator.C3, actuator.C4, actuator.C5}

// AuxChannels are centered once the legs have settled.
var AuxChannels = []actuator.Channel{actuator.C8, actuator.C9, actuator.C10, actuator.C11, actuator.C12, actuator.C13}

// Home configures the controller and brings every servo to Neutral: legs
// first, then auxiliary outputs after settle.
func Home(ctx context.Context, d actuator.Driver, prescale uint8, settle time.Duration) error {
	if err := d.SetPrescale(prescale); err != nil {
		return fmt.Errorf("set prescale: %w", err)
	}
	if err := d.Enable(); err != nil {
		return fmt.Errorf("enable outputs: %w", err)
	}

	neutral := actuator.DutyFromFloat(Neutral)
	for _, ch := range LegChannels {
		if err := d.SetChannel(ch, neutral); err != nil {
			return fmt.Errorf("home %s: %w", ch, err)
		}
	}

	log.Infof("command: legs centered, settling for %s", settle)
	if settle > 0 {
		t := time.NewTimer(settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	for _, ch := range AuxChannels {
		if err := d.SetChannel(ch, neutral); err != nil {
			return fmt.Errorf("home %s: %w", ch, err)
		}
	}
	log.Info("command: homing complete")
	return nil
}
