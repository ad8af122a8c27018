// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for ceremony attempts
// and session state changes.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passkey metrics.
	Namespace = "passkey"

	// Label names
	LabelKind    = "kind"
	LabelPhase   = "phase"
	LabelStatus  = "status"
	LabelSession = "operation"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// CeremoniesTotal counts completed ceremony attempts by kind and status.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of ceremony attempts by kind and status",
		},
		[]string{LabelKind, LabelStatus},
	)

	// CeremonyDuration tracks the wall-clock duration of ceremony attempts.
	// Buckets are wide because a pending user gesture can take many seconds.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of ceremony attempts in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{LabelKind},
	)

	// CeremonyFailuresTotal counts failed ceremony phases by kind and phase.
	CeremonyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremony_failures_total",
			Help:      "Total number of failed ceremony attempts by kind and phase",
		},
		[]string{LabelKind, LabelPhase},
	)

	// SessionOperationsTotal counts session state operations by operation and status.
	SessionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_operations_total",
			Help:      "Total number of session operations (commit, clear, refresh) by status",
		},
		[]string{LabelSession, LabelStatus},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// SetEnabled toggles metric recording at runtime.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// IsEnabled reports whether metric recording is active.
func IsEnabled() bool {
	return enabled.Load()
}

// RecordCeremony records a completed ceremony attempt.
func RecordCeremony(kind, status string, elapsed time.Duration) {
	if !IsEnabled() {
		return
	}
	CeremoniesTotal.WithLabelValues(kind, status).Inc()
	CeremonyDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordCeremonyFailure records the phase at which a ceremony attempt failed.
func RecordCeremonyFailure(kind, phase string) {
	if !IsEnabled() {
		return
	}
	CeremonyFailuresTotal.WithLabelValues(kind, phase).Inc()
}

// RecordSessionOperation records a session state operation.
func RecordSessionOperation(op, status string) {
	if !IsEnabled() {
		return
	}
	SessionOperationsTotal.WithLabelValues(op, status).Inc()
}
