// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw received bytes and the lines they frame into",
	Long: `Continuously read from the connection and display every chunk of bytes
as it arrives, followed by any complete lines the line codec framed from it.

Useful for debugging terminators, stray binary output and partial lines,
since nothing is parsed or dropped.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Boardlink - Raw Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return rawLogLoop(conn, os.Stdout)
}

// rawLogLoop dumps everything read from conn until the connection closes or
// a read fails
func rawLogLoop(conn Connection, out io.Writer) error {
	codec := lineproto.NewLineCodec()
	buf := make([]byte, lineproto.MaxLineLength)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				log.Info().Msg("connection closed")
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if n == 0 {
			continue
		}

		dumpChunk(out, buf[:n], time.Now())
		for _, line := range codec.Feed(buf[:n]) {
			fmt.Fprintf(out, "  line %q\n", line)
		}
	}
}

// dumpChunk writes one hex + ASCII row per 16 bytes
func dumpChunk(w io.Writer, chunk []byte, at time.Time) {
	fmt.Fprintf(w, "[%s] %d bytes\n", at.Format("15:04:05.000"), len(chunk))
	for off := 0; off < len(chunk); off += 16 {
		end := off + 16
		if end > len(chunk) {
			end = len(chunk)
		}
		row := chunk[off:end]

		var hex, ascii strings.Builder
		for _, b := range row {
			fmt.Fprintf(&hex, "%02X ", b)
			if b >= 0x20 && b < 0x7F {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		fmt.Fprintf(w, "  %04X  %-48s %s\n", off, hex.String(), ascii.String())
	}
}
