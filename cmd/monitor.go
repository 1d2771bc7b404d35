// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/link"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	monitorCapture       string
	monitorStatsInterval int
	monitorShowState     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display received lines and the events they produce",
	Long: `Continuously read lines from the board and display each one with the
events it decodes to.

The link is kept open with automatic reconnection. Outbound traffic (time
sync, commands from the MQTT command topic) is shown too. Statistics are
printed every --stats-interval seconds and on exit.

Use --capture to record all traffic to a CBOR capture file for later replay.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record traffic to this capture file")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics interval in seconds (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorShowState, "show-state", false, "Print the device state with each statistics summary")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var capture *lineproto.CaptureWriter
	if monitorCapture != "" {
		f, err := os.Create(monitorCapture)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()

		capture, err = lineproto.NewCaptureWriter(f)
		if err != nil {
			return err
		}
	}

	tap := func(dir lineproto.Direction, text string) {
		printTraffic(dir, text, time.Now())
		if capture != nil {
			if err := capture.Write(lineproto.Record{Time: time.Now(), Direction: dir, Text: text}); err != nil {
				log.Error().Err(err).Msg("capture write failed")
			}
		}
	}

	s, err := newSession(link.WithTap(tap))
	if err != nil {
		return err
	}

	fmt.Printf("Boardlink - Line Monitor\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	if monitorCapture != "" {
		fmt.Printf("Capture: %s\n", monitorCapture)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.start(ctx); err != nil {
		return err
	}

	var ticks <-chan time.Time
	if monitorStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.stop()
			printSummary(s.store.Latest())
			return nil
		case <-ticks:
			printSummary(s.store.Latest())
		}
	}
}

// printTraffic prints one line of traffic; inbound lines include their events
func printTraffic(dir lineproto.Direction, text string, at time.Time) {
	timestamp := at.Format("15:04:05.000")
	if dir == lineproto.Outbound {
		fmt.Printf("[%s] tx %q\n", timestamp, text)
		return
	}
	fmt.Printf("[%s] rx %s", timestamp, lineproto.FormatLine(text, lineproto.ParseLine(text)))
}

func printSummary(snap link.Snapshot) {
	fmt.Printf("\n%s", snap.Stats.String())
	fmt.Printf("Link: %s\n", snap.Link)
	if monitorShowState {
		fmt.Print(lineproto.FormatState(snap.Device))
	}
	fmt.Println()
}
