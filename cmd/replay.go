// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/spf13/cobra"
)

var replayQuiet bool

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Replay a capture file through the parser",
	Long: `Read a capture recorded with "monitor --capture" and feed every inbound
line through the parser and state model, as the link worker would.

Prints each line with its events (unless --quiet), then the final device
state and line statistics. No connection is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "Only print the final state and statistics")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	defaults, err := cfg.Defaults()
	if err != nil {
		return err
	}

	state, stats, err := replayCapture(lineproto.NewCaptureReader(f), lineproto.NewState(defaults), cmd.OutOrStdout(), replayQuiet)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nFinal state:\n%s\n%s", lineproto.FormatState(state), stats.String())
	return nil
}

// replayCapture applies every inbound record to state and counts lines
func replayCapture(r *lineproto.CaptureReader, state lineproto.State, out io.Writer, quiet bool) (lineproto.State, *lineproto.Statistics, error) {
	stats := lineproto.NewStatistics()

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return state, stats, nil
		}
		if err != nil {
			return state, stats, err
		}

		timestamp := rec.Time.Format("15:04:05.000")
		if rec.Direction == lineproto.Outbound {
			stats.CommandsSent++
			if !quiet {
				fmt.Fprintf(out, "[%s] tx %q\n", timestamp, rec.Text)
			}
			continue
		}

		events := lineproto.ParseLine(rec.Text)
		stats.UpdateLine(events)
		state = lineproto.ApplyAll(state, events)
		if !quiet {
			fmt.Fprintf(out, "[%s] rx %s", timestamp, lineproto.FormatLine(rec.Text, events))
		}
	}
}
