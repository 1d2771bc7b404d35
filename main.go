// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Boardlink - STM32 Board Line Protocol Tool
//
// A CLI tool for monitoring and controlling a development board that speaks
// the newline-delimited ASCII protocol over serial or a WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/boardlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
