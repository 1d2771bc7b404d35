// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/boardlink/pkg/config"
	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Global flags
	configPath string
	logLevel   string
	logFile    string

	// Effective configuration: file values with explicit flags applied on top
	cfg config.Config

	closeLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "boardlink",
	Short: "STM32 panel board line protocol tool",
	Long: `Boardlink - A CLI tool for monitoring and driving the STM32 panel board over
its ASCII line protocol.

The board reports LED, RGB, segment, ADC, timer and clock state as
newline-delimited TYPE:PAYLOAD lines and accepts button, LED, RGB and
request-code commands.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings can also be read from a TOML file (--config). Flags given on the
command line override the file.

For WebSocket authentication, the password is read from the BOARDLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", lineproto.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Settings and logging
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
}

// loadSettings reads the config file, applies explicit flags and sets up logging
func loadSettings(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.NoSSLVerify = wsNoSSLVerify
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	// The control TUI owns the terminal; keep logs off it unless redirected.
	closer, err := setupLogging(logLevel, logFile, cmd.Name() == "control")
	if err != nil {
		return err
	}
	closeLog = closer
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
