// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/teleop_rover/internal/config"
	"github.com/relabs-tech/teleop_rover/internal/telemetry"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// screen is the drawing surface of an SSD1306.
type screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// RunDisplay shows rover status on an SSD1306 OLED until ctx is cancelled.
func RunDisplay(ctx context.Context, cfg *config.Config, state *telemetry.State) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("display: failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("display: failed to open I2C bus %q: %w", cfg.DisplayI2CBus, err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("display: failed to initialize SSD1306: %w", err)
	}
	defer dev.Halt()
	log.Printf("display: initialized on bus %s", cfg.DisplayI2CBus)

	if err := drawLines(dev, []string{"", "  Teleop Rover", "  starting..."}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := drawLines(dev, statusLines(state.Snapshot())); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
}

// statusLines formats a snapshot for the 128x64 panel, four lines of 7x13 text.
func statusLines(st telemetry.Status) []string {
	if !st.Calibrated {
		return []string{"Calibrating IMU", "keep rover still", "", fmt.Sprintf("Pkts %d", st.CommandPackets)}
	}
	return []string{
		fmt.Sprintf("R: %6.1f", st.Pose.Roll),
		fmt.Sprintf("P: %6.1f", st.Pose.Pitch),
		fmt.Sprintf("Pkts %d", st.CommandPackets),
		fmt.Sprintf("Frm %s", humanize.SIWithDigits(float64(st.FramesPublished), 1, "")),
	}
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if (i+1)*lineHeight > displayHeight {
			break
		}
		drawer.Dot = fixed.P(0, (i+1)*lineHeight)
		drawer.DrawString(strings.TrimRight(line, " "))
	}
	return img
}

func drawLines(dev screen, lines []string) error {
	return dev.Draw(dev.Bounds(), renderLines(lines), image.Point{})
}
