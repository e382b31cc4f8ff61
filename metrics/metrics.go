// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"
)

const opLabel = "op"

var opLabels = []string{opLabel}

// Metrics counts operation outcomes.
type Metrics interface {
	// MarkAccepted records a committed operation.
	MarkAccepted(op string)
	// MarkRejected records an aborted operation.
	MarkRejected(op string)
}

type metricsImpl struct {
	numAccepted metric.CounterVec
	numRejected metric.CounterVec
}

// New creates operation metrics on the given registerer.
func New(registerer metric.Registerer) (Metrics, error) {
	m := &metricsImpl{
		numAccepted: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "ops_accepted",
				Help: "number of operations committed",
			},
			opLabels,
		),
		numRejected: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "ops_rejected",
				Help: "number of operations aborted",
			},
			opLabels,
		),
	}
	// Metrics are self-registering when created with NewCounterVec.
	return m, nil
}

func (m *metricsImpl) MarkAccepted(op string) {
	m.numAccepted.With(metric.Labels{opLabel: op}).Inc()
}

func (m *metricsImpl) MarkRejected(op string) {
	m.numRejected.With(metric.Labels{opLabel: op}).Inc()
}
