// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the spotbridge playback subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcessSpawnTotal counts player helper spawns by launch mode and cause.
	ProcessSpawnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_process_spawn_total",
		Help: "Total number of player helper process spawns, by launch mode and cause (started/failed).",
	}, []string{"mode", "cause"})

	// ProcessExitTotal counts player helper exits by exit category.
	ProcessExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_process_exit_total",
		Help: "Total number of player helper process exits, by exit code category.",
	}, []string{"code"})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_proc_terminate_total",
		Help: "Signals sent during process group termination, by signal and outcome.",
	}, []string{"signal", "outcome"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotbridge_proc_wait_total",
		Help: "Process wait results after termination, by outcome.",
	}, []string{"outcome"})
)

// RecordProcessSpawn increments the helper spawn counter.
// mode: "dev" or "packaged"; cause: "started" or "failed".
func RecordProcessSpawn(mode, cause string) {
	ProcessSpawnTotal.WithLabelValues(mode, cause).Inc()
}

// RecordProcessExit increments the helper exit counter.
func RecordProcessExit(code string) {
	ProcessExitTotal.WithLabelValues(code).Inc()
}

// IncProcTerminate increments the termination signal counter.
func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait increments the process wait counter.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}
