package app

import (
	"image"
	"strings"
	"testing"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/teleop_rover/internal/orientation"
	"github.com/relabs-tech/teleop_rover/internal/telemetry"
)

func TestStatusLines(t *testing.T) {
	lines := statusLines(telemetry.Status{CommandPackets: 3})
	if !strings.HasPrefix(lines[0], "Calibrating") {
		t.Errorf("uncalibrated lines = %q", lines)
	}

	lines = statusLines(telemetry.Status{
		Calibrated:      true,
		Pose:            orientation.Pose{Roll: 12.34, Pitch: -5},
		CommandPackets:  42,
		FramesPublished: 1500,
	})
	want := []string{"R:   12.3", "P:   -5.0", "Pkts 42", "Frm 1.5 k"}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

type fakeScreen struct {
	drawn image.Image
}

func (f *fakeScreen) Bounds() image.Rectangle { return image.Rect(0, 0, displayWidth, displayHeight) }

func (f *fakeScreen) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	f.drawn = src
	return nil
}

func TestDrawLinesLightsPixels(t *testing.T) {
	s := &fakeScreen{}
	if err := drawLines(s, []string{"R:  1.0", "", "", "", "ignored fifth line"}); err != nil {
		t.Fatal(err)
	}
	img, ok := s.drawn.(*image1bit.VerticalLSB)
	if !ok {
		t.Fatalf("drawn %T, want *image1bit.VerticalLSB", s.drawn)
	}

	lit := 0
	for y := 0; y < lineHeight; y++ {
		for x := 0; x < displayWidth; x++ {
			if img.BitAt(x, y) == image1bit.On {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("first text line left no pixels on")
	}
}
