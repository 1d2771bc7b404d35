// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports available on this machine.

USB ports show their VID:PID, serial number and product name where the
operating system reports them. STM32 boards with the built-in virtual COM
port usually appear as 0483:5740.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}

	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
		return nil
	}

	for _, p := range ports {
		fmt.Printf("%s\n", p.Name)
		if !p.IsUSB {
			continue
		}
		fmt.Printf("  USB ID: %s:%s\n", p.VID, p.PID)
		if p.SerialNumber != "" {
			fmt.Printf("  Serial: %s\n", p.SerialNumber)
		}
		if p.Product != "" {
			fmt.Printf("  Product: %s\n", p.Product)
		}
	}
	return nil
}
