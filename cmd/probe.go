// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/spf13/cobra"
)

var (
	probeTimeout int
	probeRequest string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a recognized line",
	Long: `Wait for a recognized protocol line on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any line
the parser understands (LED, RGB, SEG, TIM, ADC, RTC, PROG or flash info).
Unrecognized lines are counted and skipped.

Use --request to send a command first, e.g. --request R00001 to ask the
board for an ADC reading.

Exit codes:
  0 - Recognized line received before timeout
  1 - Timeout reached without receiving a recognized line
  2 - Connection error

Useful for testing connectivity to the board or a WebSocket serial bridge.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a line")
	probeCmd.Flags().StringVar(&probeRequest, "request", "", "Command to send before waiting (e.g. R00001)")
}

type probeResult struct {
	line    string
	events  []lineproto.Event
	skipped int
}

func runProbe(cmd *cobra.Command, args []string) error {
	var request []byte
	if probeRequest != "" {
		reqCmd, err := lineproto.ParseCommand(probeRequest)
		if err != nil {
			return err
		}
		term, err := lineproto.ParseTerminator(cfg.Link.Terminator)
		if err != nil {
			return err
		}
		request = lineproto.MustEncode(reqCmd, term)
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Boardlink - Line Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)

	if request != nil {
		fmt.Printf("Sending %q...\n", probeRequest)
		if _, err := conn.Write(request); err != nil {
			fmt.Fprintf(os.Stderr, "SEND FAILED: %v\n", err)
			os.Exit(2)
		}
	}
	fmt.Printf("Waiting for a recognized line...\n\n")

	resultChan := make(chan probeResult, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		codec := lineproto.NewLineCodec()
		buf := make([]byte, lineproto.MaxLineLength)
		skipped := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for _, line := range codec.Feed(buf[:n]) {
				events := lineproto.ParseLine(line)
				if _, ok := events[0].(lineproto.Unrecognized); ok {
					skipped++
					continue
				}
				resultChan <- probeResult{line: line, events: events, skipped: skipped}
				return
			}
		}
	}()

	// Wait for a line or timeout
	select {
	case result := <-resultChan:
		if result.skipped > 0 {
			fmt.Printf("(skipped %d unrecognized lines)\n", result.skipped)
		}
		fmt.Printf("SUCCESS: Received recognized line\n")
		fmt.Print(lineproto.FormatLine(result.line, result.events))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No recognized line received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
