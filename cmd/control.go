// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/link"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling the board",
	Long: `Control the board via an interactive terminal UI.

The panel mirrors the board's LEDs, RGB lamp, 7-segment display, ADC reading
and mode, and sends button, LED, RGB, segment and request commands.

Keys:
  1-5          press button 1-5
  ! @ # $ %    release button 1-5
  left/right   select LED
  l / space    toggle selected LED
  r            enter an RGB color (r,g,b)
  s            enter segment digits
  a t z x m    request ADC, timer, buzzer, reset, time
  c            send clock sync (T<HH>:<MM>)
  R            reset the displayed state and statistics
  q            quit

The link reconnects automatically. Supports both serial and WebSocket
connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	var p *tea.Program

	// Traffic tap feeds the event log; p is set before the worker starts
	tap := func(dir lineproto.Direction, text string) {
		p.Send(trafficMsg{dir: dir, text: text, at: time.Now()})
	}

	s, err := newSession(link.WithTap(tap))
	if err != nil {
		return err
	}

	m := initialControlModel(s.worker, s, s.connInfo, s.store.Latest())
	p = tea.NewProgram(m, tea.WithAltScreen())

	unsubscribe := s.store.Subscribe(func(snap link.Snapshot) {
		p.Send(snapshotMsg(snap))
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.start(ctx); err != nil {
		return err
	}

	_, runErr := p.Run()

	// Program has exited, so Send returns immediately from here on
	s.stop()

	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}
