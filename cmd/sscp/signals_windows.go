//go:build windows

package main

import (
	"os"

	"github.com/rs/zerolog"
)

func metricsSignals() []os.Signal { return nil }

func signalHelp() string { return "" }

func handleMetricsSignal(os.Signal, zerolog.Logger, *metricsController) {}
