// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/config"
	"github.com/relabs-tech/teleop_rover/internal/gps"
	"github.com/relabs-tech/teleop_rover/internal/orientation"
)

// RunConsoleMQTT prints the rover's pose and GPS topics to out until ctx is
// cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("console: MQTT connect to %s: %w", cfg.MQTTBroker, token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	subs := map[string]mqtt.MessageHandler{
		cfg.TopicPose: func(_ mqtt.Client, msg mqtt.Message) {
			if line, err := formatPose(msg.Payload()); err != nil {
				log.Printf("console: pose unmarshal error: %v", err)
			} else {
				fmt.Fprintln(out, line)
			}
		},
		cfg.TopicGPS: func(_ mqtt.Client, msg mqtt.Message) {
			if line, err := formatFix(msg.Payload()); err != nil {
				log.Printf("console: gps unmarshal error: %v", err)
			} else {
				fmt.Fprintln(out, line)
			}
		},
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("console: subscribe %s: %w", topic, token.Error())
		}
		log.Printf("console: subscribed to %s", topic)
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func formatPose(payload []byte) (string, error) {
	var p orientation.Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", err
	}
	return fmt.Sprintf("[POSE]  ROLL=%6.2f  PITCH=%6.2f", p.Roll, p.Pitch), nil
}

func formatFix(payload []byte) (string, error) {
	var f gps.Fix
	if err := json.Unmarshal(payload, &f); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s",
		f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
	), nil
}
