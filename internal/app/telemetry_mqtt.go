// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/config"
	"github.com/relabs-tech/teleop_rover/internal/telemetry"
)

// topicPublisher is the part of an MQTT client the telemetry loop needs.
type topicPublisher interface {
	Publish(topic string, payload []byte) error
}

type mqttPublisher struct {
	client mqtt.Client
}

func (m mqttPublisher) Publish(topic string, payload []byte) error {
	token := m.client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

// telemetryForwarder publishes pose and GPS fix whenever they changed
// since the previous tick.
type telemetryForwarder struct {
	state     *telemetry.State
	out       topicPublisher
	poseTopic string
	gpsTopic  string

	poseSeq uint64
	fixSeq  uint64
}

func (f *telemetryForwarder) tick() {
	if pose, seq := f.state.LatestPose(); seq != f.poseSeq {
		if f.publishJSON(f.poseTopic, pose) {
			f.poseSeq = seq
		}
	}
	if fix, seq := f.state.Fix(); seq != f.fixSeq {
		if f.publishJSON(f.gpsTopic, fix) {
			f.fixSeq = seq
		}
	}
}

func (f *telemetryForwarder) publishJSON(topic string, v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("telemetry: json marshal error (%s): %v", topic, err)
		return false
	}
	if err := f.out.Publish(topic, payload); err != nil {
		log.Printf("telemetry: MQTT publish error (%s): %v", topic, err)
		return false
	}
	return true
}

// RunTelemetryMQTT connects to the broker and forwards the State to MQTT
// until ctx is cancelled. A failed first connect is returned; later
// connection losses are retried by the client.
func RunTelemetryMQTT(ctx context.Context, cfg *config.Config, state *telemetry.State) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDRover).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("telemetry: MQTT connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("telemetry: MQTT connect to %s: %w", cfg.MQTTBroker, token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("telemetry: connected to MQTT broker at %s", cfg.MQTTBroker)

	fwd := &telemetryForwarder{
		state:     state,
		out:       mqttPublisher{client: client},
		poseTopic: cfg.TopicPose,
		gpsTopic:  cfg.TopicGPS,
	}

	ticker := time.NewTicker(time.Duration(cfg.MQTTPublishIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fwd.tick()
		}
	}
}
