// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package command

import (
	"github.com/relabs-tech/teleop_rover/internal/actuator"
)

// Neutral is the off-count that centers every servo.
const Neutral = 307.0

// Setting is one channel write.
type Setting struct {
	Channel actuator.Channel
	Duty    uint16
}

// Command is the ordered set of writes produced by one packet.
type Command []Setting

// Map converts p into actuator writes and advances integ by the camera delta.
//
//	h1 = 307 - f5*50 - f4*25   -> C2
//	h2 = 307 - f5*50 + f4*25   -> C3
//	h3 = 307 + f3*50 - f4*30   -> C1
//	h5 = 307 - f2*15 - f0*30 + f1*15 -> C0
//	h4 = 307 - f2*15 + f0*30 + f1*15 -> C4
//	h6 = 307 - f2*30 - f1*30   -> C5
//	f6..f10                    -> C8..C12
//	integ += f11               -> C13
func Map(p Packet, integ *Integrator) Command {
	f := func(i int) float64 { return float64(p[i]) }

	h1 := Neutral - f(5)*50 - f(4)*25
	h2 := Neutral - f(5)*50 + f(4)*25
	h3 := Neutral + f(3)*50 - f(4)*30
	h4 := Neutral - f(2)*15 + f(0)*30 + f(1)*15
	h5 := Neutral - f(2)*15 - f(0)*30 + f(1)*15
	h6 := Neutral - f(2)*30 - f(1)*30

	cmd := Command{
		{actuator.C2, actuator.DutyFromFloat(h1)},
		{actuator.C3, actuator.DutyFromFloat(h2)},
		{actuator.C1, actuator.DutyFromFloat(h3)},
		{actuator.C0, actuator.DutyFromFloat(h5)},
		{actuator.C4, actuator.DutyFromFloat(h4)},
		{actuator.C5, actuator.DutyFromFloat(h6)},
	}
	for i := 0; i < 5; i++ {
		cmd = append(cmd, Setting{actuator.C8 + actuator.Channel(i), actuator.DutyFromFloat(f(6 + i))})
	}
	cmd = append(cmd, Setting{actuator.C13, actuator.DutyFromFloat(integ.Add(f(11)))})
	return cmd
}

// Apply writes cmd to d in order and stops at the first error.
func (cmd Command) Apply(d actuator.Driver) error {
	for _, s := range cmd {
		if err := d.SetChannel(s.Channel, s.Duty); err != nil {
			return err
		}
	}
	return nil
}
