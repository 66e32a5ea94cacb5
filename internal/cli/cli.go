// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/takama/daemon"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/teleop_rover/internal/app"
	"github.com/relabs-tech/teleop_rover/internal/config"
)

const (
	serviceName        = "rover"
	serviceDescription = "Teleoperated rover control service"
)

var RootCmd = &cobra.Command{
	Use:           "rover",
	Short:         "teleoperated rover control service",
	Long:          "rover estimates orientation, streams the camera and drives the servos from network commands.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var ServeCmd = &cobra.Command{
	Use:        "serve",
	SuggestFor: []string{"run", "start"},
	Short:      "serve starts every rover task",
	Long: `serve starts the orientation estimator, the camera stream, the command channel and
the web server. Configuration is read from --config (default ./rover_config.txt if it
exists) and can be overridden with ROVER_<KEY> environment variables.`,
	Example: `  rover serve --config=/etc/rover/rover_config.txt
  ROVER_ACTUATOR_DRY_RUN=true ROVER_IMU_MOCK=true rover serve --debug`,
	RunE: serveRunE,
}

var ConfigCmd = &cobra.Command{
	Use:     "config",
	Short:   "config prints the effective configuration as YAML",
	Example: `  rover config --config=rover_config.txt`,
	RunE:    configRunE,
}

var ServiceCmd = &cobra.Command{
	Use:       "service install|remove|start|stop|status",
	Short:     "service manages the rover system service",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"install", "remove", "start", "stop", "status"},
	RunE:      serviceRunE,
}

func init() {
	for _, cmd := range []*cobra.Command{ServeCmd, ConfigCmd, ServiceCmd} {
		cmd.Flags().String("config", "", "configuration file path")
	}
	ServeCmd.Flags().Bool("debug", false, "toggle debug logging")

	RootCmd.AddCommand(ServeCmd, ConfigCmd, ServiceCmd)
}

// Execute runs the root command.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// configPath returns --config, or DefaultPath when it exists, or "" for
// built-in defaults.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.DefaultPath
	}
	return ""
}

func setupLogging(level string, debug bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func serveRunE(cmd *cobra.Command, _ []string) error {
	path := configPath(cmd)
	if err := config.InitGlobal(path); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()

	debug, _ := cmd.Flags().GetBool("debug")
	setupLogging(cfg.LogLevel, debug)
	if path == "" {
		log.Info("starting rover with built-in defaults")
	} else {
		log.Infof("starting rover with config %s", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.RunRover(ctx, cfg, app.DefaultHardware)
}

func configRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(cfg)
}

func serviceRunE(cmd *cobra.Command, args []string) error {
	srv, err := daemon.New(serviceName, serviceDescription, daemon.SystemDaemon)
	if err != nil {
		return err
	}

	var status string
	switch args[0] {
	case "install":
		installArgs := []string{"serve"}
		if path := configPath(cmd); path != "" {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			installArgs = append(installArgs, "--config", abs)
		}
		status, err = srv.Install(installArgs...)
	case "remove":
		status, err = srv.Remove()
	case "start":
		status, err = srv.Start()
	case "stop":
		status, err = srv.Stop()
	case "status":
		status, err = srv.Status()
	default:
		return fmt.Errorf("unknown service action %q", args[0])
	}
	if err != nil {
		return fmt.Errorf("%s: %w", status, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), status)
	return nil
}
