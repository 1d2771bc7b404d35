// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/spf13/cobra"
)

var sendWait int

var sendCmd = &cobra.Command{
	Use:   "send <command>...",
	Short: "Send commands to the board",
	Long: `Encode and send one or more commands, then optionally print replies.

Commands use the wire syntax:
  BTN<n>          press button n (1-5)
  BTN<n>_OFF      release button n
  LED<n>:ON|OFF   switch LED n (1-4)
  RGB:<r>,<g>,<b> set the RGB lamp
  SEG:<digits>    set the segment display (1-4 digits)
  MMSS            time sync, e.g. 0459
  T<HH>:<MM>      clock sync, e.g. T17:04
  R00001..R00005  request codes (ADC, timer, buzzer, reset, time)

The line terminator comes from the link.terminator setting.

Examples:
  boardlink send --port /dev/ttyACM0 BTN1 BTN1_OFF
  boardlink send --port /dev/ttyACM0 --wait 2 R00001

Exit codes:
  0 - All commands sent
  1 - Invalid command
  2 - Connection error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendWait, "wait", 0, "Seconds to print replies after sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	term, err := lineproto.ParseTerminator(cfg.Link.Terminator)
	if err != nil {
		return err
	}

	// Validate everything before touching the port
	payloads := make([][]byte, 0, len(args))
	for _, arg := range args {
		c, err := lineproto.ParseCommand(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid command %q: %v\n", arg, err)
			os.Exit(1)
		}
		payloads = append(payloads, lineproto.MustEncode(c, term))
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Boardlink - Send\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	for _, payload := range payloads {
		text := strings.TrimRight(string(payload), "\r\n")
		if _, err := conn.Write(payload); err != nil {
			fmt.Fprintf(os.Stderr, "SEND FAILED (%s): %v\n", text, err)
			os.Exit(2)
		}
		fmt.Printf("Sent %q\n", text)
	}

	if sendWait <= 0 {
		return nil
	}

	fmt.Printf("\nReplies (%ds):\n", sendWait)
	if err := printReplies(conn, time.Duration(sendWait)*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}
	return nil
}

// printReplies prints every line received until the deadline. It relies on
// the connection read timeout to return periodically.
func printReplies(conn Connection, wait time.Duration) error {
	codec := lineproto.NewLineCodec()
	buf := make([]byte, lineproto.MaxLineLength)
	deadline := time.Now().Add(wait)

	for time.Now().Before(deadline) {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return err
		}
		for _, line := range codec.Feed(buf[:n]) {
			printTraffic(lineproto.Inbound, line, time.Now())
		}
	}
	return nil
}
