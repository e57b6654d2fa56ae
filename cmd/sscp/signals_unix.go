//go:build !windows

package main

import (
	"os"
	"syscall"

	"github.com/rs/zerolog"
)

func metricsSignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2}
}

func signalHelp() string {
	return "Signals:\n  SIGUSR1: enable metrics (requires --metrics-listen)\n  SIGUSR2: disable metrics\n"
}

func handleMetricsSignal(sig os.Signal, log zerolog.Logger, metrics *metricsController) {
	switch sig {
	case syscall.SIGUSR1:
		if metrics == nil {
			log.Warn().Msg("metrics server disabled (missing --metrics-listen)")
			return
		}
		metrics.Enable()
		log.Info().Msg("metrics enabled")
	case syscall.SIGUSR2:
		if metrics != nil {
			metrics.Disable()
			log.Info().Msg("metrics disabled")
		}
	}
}
