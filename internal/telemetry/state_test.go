package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/teleop_rover/internal/gps"
	"github.com/relabs-tech/teleop_rover/internal/orientation"
)

func TestPoseZeroUntilPublished(t *testing.T) {
	s := New()
	if p := s.Pose(); p != (orientation.Pose{}) {
		t.Errorf("initial pose = %+v, want zero", p)
	}
	s.PublishPose(orientation.Pose{Roll: 5, Pitch: -3})
	if p := s.Pose(); p != (orientation.Pose{Roll: 5, Pitch: -3}) {
		t.Errorf("pose = %+v", p)
	}
}

// Every pose published has roll == -pitch; a torn read would break that.
func TestConcurrentPoseReadsNeverMixed(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ctx.Err() == nil; i++ {
			v := float64(i % 1000)
			s.PublishPose(orientation.Pose{Roll: v, Pitch: -v})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20000; i++ {
				p := s.Pose()
				if p.Roll != -p.Pitch {
					t.Errorf("mixed pose %+v", p)
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()
}

func TestWaitFrameWakesOnPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan []byte, 1)
	go func() {
		f, seq, err := s.WaitFrame(ctx, 0)
		if err != nil || seq != 1 {
			t.Errorf("WaitFrame = seq %d, err %v", seq, err)
		}
		got <- f
	}()

	time.Sleep(10 * time.Millisecond)
	s.PublishFrame([]byte{0xFF, 0xD8, 0xFF, 0xD9})

	select {
	case f := <-got:
		if len(f) != 4 {
			t.Errorf("frame = %x", f)
		}
	case <-ctx.Done():
		t.Fatal("WaitFrame never woke")
	}
}

func TestWaitFrameSkipsToLatest(t *testing.T) {
	s := New()
	s.PublishFrame([]byte("one"))
	s.PublishFrame([]byte("two"))
	s.PublishFrame([]byte("three"))

	f, seq, err := s.WaitFrame(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if seq != 3 || string(f) != "three" {
		t.Errorf("WaitFrame(after 1) = %q seq %d, want three seq 3", f, seq)
	}
}

func TestWaitFrameCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.WaitFrame(ctx, 0); err == nil {
		t.Fatal("WaitFrame returned without a frame or error")
	}
}

func TestWaitPose(t *testing.T) {
	s := New()
	s.PublishPose(orientation.Pose{Roll: 1})

	p, seq, err := s.WaitPose(context.Background(), 0)
	if err != nil || seq != 1 || p.Roll != 1 {
		t.Fatalf("WaitPose = %+v %d %v", p, seq, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := s.WaitPose(ctx, seq); err == nil {
		t.Error("WaitPose returned without a newer pose")
	}
}

func TestSnapshot(t *testing.T) {
	s := New()
	st := s.Snapshot()
	if st.Calibrated || st.GPS != nil || st.FramesPublished != 0 {
		t.Errorf("initial snapshot = %+v", st)
	}

	s.PublishCalibration(1.5, -0.5)
	s.PublishFrame(make([]byte, 1024))
	s.ConnectionAccepted()
	s.PacketApplied()
	s.PacketApplied()
	s.PublishFix(gps.Fix{Latitude: 48.1, Longitude: 11.5, Validity: "A"})

	st = s.Snapshot()
	if !st.Calibrated || st.RollOffset != 1.5 || st.PitchOffset != -0.5 {
		t.Errorf("calibration = %v %g %g", st.Calibrated, st.RollOffset, st.PitchOffset)
	}
	if st.FramesPublished != 1 || st.LastFrameBytes != 1024 {
		t.Errorf("frames = %d / %d bytes", st.FramesPublished, st.LastFrameBytes)
	}
	if st.CommandConnections != 1 || st.CommandPackets != 2 {
		t.Errorf("command = %d conns %d packets", st.CommandConnections, st.CommandPackets)
	}
	if st.GPS == nil || st.GPS.Latitude != 48.1 {
		t.Errorf("gps = %+v", st.GPS)
	}
}
