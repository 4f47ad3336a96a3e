// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EpochsAdvanced tracks group epoch advances by cause
	EpochsAdvanced = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "epochs",
			Name:      "advanced_total",
			Help:      "Total number of MLS group epoch advances",
		},
		[]string{"cause"}, // add, remove, update, commit
	)

	// CommitsProcessed tracks commit processing outcomes
	CommitsProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "epochs",
			Name:      "commits_processed_total",
			Help:      "Total number of commits processed",
		},
		[]string{"status"}, // accepted, rejected
	)

	// CommitsRejected tracks rejected commits by reason
	CommitsRejected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "epochs",
			Name:      "commits_rejected_total",
			Help:      "Total number of rejected commits by reason",
		},
		[]string{"reason"}, // wrong_epoch, invalid_proposal, bad_signature
	)

	// EpochAdvanceDuration tracks time spent processing a commit/advance
	EpochAdvanceDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "epochs",
			Name:      "advance_duration_seconds",
			Help:      "Time spent advancing a group epoch, in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2s
		},
		[]string{"stage"}, // validate, apply_tree, derive_secrets
	)
)
