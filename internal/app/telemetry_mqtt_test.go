package app

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/relabs-tech/teleop_rover/internal/gps"
	"github.com/relabs-tech/teleop_rover/internal/orientation"
	"github.com/relabs-tech/teleop_rover/internal/telemetry"
)

type message struct {
	topic   string
	payload []byte
}

type fakeBroker struct {
	sent []message
	fail bool
}

func (b *fakeBroker) Publish(topic string, payload []byte) error {
	if b.fail {
		return errors.New("not connected")
	}
	b.sent = append(b.sent, message{topic, payload})
	return nil
}

func TestForwarderPublishesOnlyChanges(t *testing.T) {
	state := telemetry.New()
	broker := &fakeBroker{}
	fwd := &telemetryForwarder{state: state, out: broker, poseTopic: "rover/pose", gpsTopic: "rover/gps"}

	fwd.tick()
	if len(broker.sent) != 0 {
		t.Fatalf("published %d messages with nothing new", len(broker.sent))
	}

	state.PublishPose(orientation.Pose{Roll: 3, Pitch: 4})
	fwd.tick()
	fwd.tick()
	if len(broker.sent) != 1 || broker.sent[0].topic != "rover/pose" {
		t.Fatalf("sent = %+v, want one pose", broker.sent)
	}
	var p orientation.Pose
	if err := json.Unmarshal(broker.sent[0].payload, &p); err != nil || p.Roll != 3 {
		t.Errorf("pose payload %s: %v", broker.sent[0].payload, err)
	}

	state.PublishFix(gps.Fix{Latitude: 1, Validity: "A"})
	fwd.tick()
	if len(broker.sent) != 2 || broker.sent[1].topic != "rover/gps" {
		t.Fatalf("sent = %+v, want a gps fix second", broker.sent)
	}
}

func TestForwarderRetriesFailedPublish(t *testing.T) {
	state := telemetry.New()
	broker := &fakeBroker{fail: true}
	fwd := &telemetryForwarder{state: state, out: broker, poseTopic: "p", gpsTopic: "g"}

	state.PublishPose(orientation.Pose{Roll: 1})
	fwd.tick()

	broker.fail = false
	fwd.tick()
	if len(broker.sent) != 1 {
		t.Errorf("sent %d messages, want the pose retried once", len(broker.sent))
	}
}
