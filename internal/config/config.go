// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. ROVER_WEB_SERVER_PORT=9000.
const EnvPrefix = "ROVER"

// DefaultPath is where the rover looks for its configuration file.
const DefaultPath = "./rover_config.txt"

// Integrator lifetimes accepted by INTEGRATOR_SCOPE.
const (
	IntegratorScopeProcess    = "process"
	IntegratorScopeConnection = "connection"
)

// Config holds all application configuration values.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Command channel
	CommandListenAddr    string `yaml:"command_listen_addr"`
	CommandPacketDelayMS int    `yaml:"command_packet_delay_ms"`
	IntegratorScope      string `yaml:"integrator_scope"`

	// Actuators (PCA9685)
	ActuatorDryRun   bool   `yaml:"actuator_dry_run"`
	ActuatorI2CBus   string `yaml:"actuator_i2c_bus"`
	ActuatorI2CAddr  uint16 `yaml:"actuator_i2c_addr"`
	ActuatorPrescale uint8  `yaml:"actuator_prescale"`
	ActuatorSettleMS int    `yaml:"actuator_settle_ms"`

	// IMU (MPU6050)
	IMUMock               bool    `yaml:"imu_mock"`
	IMUI2CBus             string  `yaml:"imu_i2c_bus"`
	IMUI2CAddr            uint16  `yaml:"imu_i2c_addr"`
	IMUSampleInterval     int     `yaml:"imu_sample_interval"` // milliseconds
	IMUCalibrationSamples int     `yaml:"imu_calibration_samples"`
	IMUHysteresisDeg      float64 `yaml:"imu_hysteresis_deg"`

	// Video capture
	VideoEnabled  bool   `yaml:"video_enabled"`
	VideoCommand  string `yaml:"video_command"`
	VideoWidth    int    `yaml:"video_width"`
	VideoHeight   int    `yaml:"video_height"`
	VideoReadSize int    `yaml:"video_read_size"`

	// Web Server
	WebServerPort int `yaml:"web_server_port"`

	// MQTT
	MQTTEnabled           bool   `yaml:"mqtt_enabled"`
	MQTTBroker            string `yaml:"mqtt_broker"`
	MQTTClientIDRover     string `yaml:"mqtt_client_id_rover"`
	MQTTClientIDConsole   string `yaml:"mqtt_client_id_console"`
	MQTTPublishIntervalMS int    `yaml:"mqtt_publish_interval_ms"`
	TopicPose             string `yaml:"topic_pose"`
	TopicGPS              string `yaml:"topic_gps"`

	// GPS
	GPSEnabled    bool   `yaml:"gps_enabled"`
	GPSSerialPort string `yaml:"gps_serial_port"`
	GPSBaudRate   int    `yaml:"gps_baud_rate"`

	// Display
	DisplayEnabled        bool   `yaml:"display_enabled"`
	DisplayI2CBus         string `yaml:"display_i2c_bus"`
	DisplayUpdateInterval int    `yaml:"display_update_interval"` // milliseconds
}

// defaults lists every known key with its default value. A key missing
// here is rejected when it shows up in a config file.
var defaults = map[string]any{
	"LOG_LEVEL": "info",

	"COMMAND_LISTEN_ADDR":     "0.0.0.0:12345",
	"COMMAND_PACKET_DELAY_MS": 100,
	"INTEGRATOR_SCOPE":        IntegratorScopeProcess,

	"ACTUATOR_DRY_RUN":   false,
	"ACTUATOR_I2C_BUS":   "/dev/i2c-1",
	"ACTUATOR_I2C_ADDR":  "0x40",
	"ACTUATOR_PRESCALE":  127,
	"ACTUATOR_SETTLE_MS": 5000,

	"IMU_MOCK":                false,
	"IMU_I2C_BUS":             "/dev/i2c-3",
	"IMU_I2C_ADDR":            "0x68",
	"IMU_SAMPLE_INTERVAL":     50,
	"IMU_CALIBRATION_SAMPLES": 200,
	"IMU_HYSTERESIS_DEG":      4.0,

	"VIDEO_ENABLED":   true,
	"VIDEO_COMMAND":   "libcamera-vid",
	"VIDEO_WIDTH":     1640,
	"VIDEO_HEIGHT":    1232,
	"VIDEO_READ_SIZE": 65536,

	"WEB_SERVER_PORT": 8000,

	"MQTT_ENABLED":             false,
	"MQTT_BROKER":              "tcp://localhost:1883",
	"MQTT_CLIENT_ID_ROVER":     "rover-telemetry",
	"MQTT_CLIENT_ID_CONSOLE":   "rover-console",
	"MQTT_PUBLISH_INTERVAL_MS": 200,
	"TOPIC_POSE":               "rover/pose",
	"TOPIC_GPS":                "rover/gps",

	"GPS_ENABLED":     false,
	"GPS_SERIAL_PORT": "/dev/serial0",
	"GPS_BAUD_RATE":   9600,

	"DISPLAY_ENABLED":         false,
	"DISPLAY_I2C_BUS":         "1",
	"DISPLAY_UPDATE_INTERVAL": 500,
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot modify it without locking.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config populated with the default value of every key.
func Default() *Config {
	cfg, err := fromViper(newViper())
	if err != nil {
		// defaults are constants; a failure here is a programming error
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads the KEY=VALUE configuration file and returns a Config struct.
// An empty path yields the defaults, still subject to ROVER_ environment overrides.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		for _, key := range v.AllKeys() {
			if _, ok := defaults[strings.ToUpper(key)]; !ok {
				return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
			}
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// fromViper converts the raw viper values into typed fields.
func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		CommandListenAddr:    v.GetString("COMMAND_LISTEN_ADDR"),
		CommandPacketDelayMS: v.GetInt("COMMAND_PACKET_DELAY_MS"),
		IntegratorScope:      strings.ToLower(v.GetString("INTEGRATOR_SCOPE")),

		ActuatorDryRun:   v.GetBool("ACTUATOR_DRY_RUN"),
		ActuatorI2CBus:   v.GetString("ACTUATOR_I2C_BUS"),
		ActuatorSettleMS: v.GetInt("ACTUATOR_SETTLE_MS"),

		IMUMock:               v.GetBool("IMU_MOCK"),
		IMUI2CBus:             v.GetString("IMU_I2C_BUS"),
		IMUSampleInterval:     v.GetInt("IMU_SAMPLE_INTERVAL"),
		IMUCalibrationSamples: v.GetInt("IMU_CALIBRATION_SAMPLES"),
		IMUHysteresisDeg:      v.GetFloat64("IMU_HYSTERESIS_DEG"),

		VideoEnabled:  v.GetBool("VIDEO_ENABLED"),
		VideoCommand:  v.GetString("VIDEO_COMMAND"),
		VideoWidth:    v.GetInt("VIDEO_WIDTH"),
		VideoHeight:   v.GetInt("VIDEO_HEIGHT"),
		VideoReadSize: v.GetInt("VIDEO_READ_SIZE"),

		WebServerPort: v.GetInt("WEB_SERVER_PORT"),

		MQTTEnabled:           v.GetBool("MQTT_ENABLED"),
		MQTTBroker:            v.GetString("MQTT_BROKER"),
		MQTTClientIDRover:     v.GetString("MQTT_CLIENT_ID_ROVER"),
		MQTTClientIDConsole:   v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		MQTTPublishIntervalMS: v.GetInt("MQTT_PUBLISH_INTERVAL_MS"),
		TopicPose:             v.GetString("TOPIC_POSE"),
		TopicGPS:              v.GetString("TOPIC_GPS"),

		GPSEnabled:    v.GetBool("GPS_ENABLED"),
		GPSSerialPort: v.GetString("GPS_SERIAL_PORT"),
		GPSBaudRate:   v.GetInt("GPS_BAUD_RATE"),

		DisplayEnabled:        v.GetBool("DISPLAY_ENABLED"),
		DisplayI2CBus:         v.GetString("DISPLAY_I2C_BUS"),
		DisplayUpdateInterval: v.GetInt("DISPLAY_UPDATE_INTERVAL"),
	}

	addr, err := parseI2CAddr("ACTUATOR_I2C_ADDR", v.GetString("ACTUATOR_I2C_ADDR"))
	if err != nil {
		return nil, err
	}
	cfg.ActuatorI2CAddr = addr

	if addr, err = parseI2CAddr("IMU_I2C_ADDR", v.GetString("IMU_I2C_ADDR")); err != nil {
		return nil, err
	}
	cfg.IMUI2CAddr = addr

	prescale, err := strconv.Atoi(v.GetString("ACTUATOR_PRESCALE"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACTUATOR_PRESCALE %q: %w", v.GetString("ACTUATOR_PRESCALE"), err)
	}
	// PCA9685 rejects prescale values below 3
	if prescale < 3 || prescale > 255 {
		return nil, fmt.Errorf("ACTUATOR_PRESCALE must be 3-255, got %d", prescale)
	}
	cfg.ActuatorPrescale = uint8(prescale)

	return cfg, nil
}

func parseI2CAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.CommandListenAddr == "" {
		return fmt.Errorf("COMMAND_LISTEN_ADDR is required")
	}
	if c.CommandPacketDelayMS < 0 {
		return fmt.Errorf("COMMAND_PACKET_DELAY_MS must be >= 0, got %d", c.CommandPacketDelayMS)
	}
	if c.IntegratorScope != IntegratorScopeProcess && c.IntegratorScope != IntegratorScopeConnection {
		return fmt.Errorf("INTEGRATOR_SCOPE must be %q or %q, got %q",
			IntegratorScopeProcess, IntegratorScopeConnection, c.IntegratorScope)
	}
	if !c.ActuatorDryRun && c.ActuatorI2CBus == "" {
		return fmt.Errorf("ACTUATOR_I2C_BUS is required unless ACTUATOR_DRY_RUN is set")
	}
	if c.ActuatorSettleMS < 0 {
		return fmt.Errorf("ACTUATOR_SETTLE_MS must be >= 0, got %d", c.ActuatorSettleMS)
	}
	if !c.IMUMock && c.IMUI2CBus == "" {
		return fmt.Errorf("IMU_I2C_BUS is required unless IMU_MOCK is set")
	}
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL must be > 0, got %d", c.IMUSampleInterval)
	}
	if c.IMUCalibrationSamples <= 0 {
		return fmt.Errorf("IMU_CALIBRATION_SAMPLES must be > 0, got %d", c.IMUCalibrationSamples)
	}
	if c.IMUHysteresisDeg < 0 {
		return fmt.Errorf("IMU_HYSTERESIS_DEG must be >= 0, got %g", c.IMUHysteresisDeg)
	}
	if c.VideoEnabled {
		if c.VideoCommand == "" {
			return fmt.Errorf("VIDEO_COMMAND is required when VIDEO_ENABLED is set")
		}
		if c.VideoWidth <= 0 || c.VideoHeight <= 0 {
			return fmt.Errorf("VIDEO_WIDTH and VIDEO_HEIGHT must be > 0, got %dx%d", c.VideoWidth, c.VideoHeight)
		}
		if c.VideoReadSize <= 0 {
			return fmt.Errorf("VIDEO_READ_SIZE must be > 0, got %d", c.VideoReadSize)
		}
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.MQTTEnabled {
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required when MQTT_ENABLED is set")
		}
		if c.MQTTPublishIntervalMS <= 0 {
			return fmt.Errorf("MQTT_PUBLISH_INTERVAL_MS must be > 0, got %d", c.MQTTPublishIntervalMS)
		}
	}
	if c.GPSEnabled {
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required when GPS_ENABLED is set")
		}
		if c.GPSBaudRate <= 0 {
			return fmt.Errorf("GPS_BAUD_RATE must be > 0, got %d", c.GPSBaudRate)
		}
	}
	if c.DisplayEnabled && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be > 0, got %d", c.DisplayUpdateInterval)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
