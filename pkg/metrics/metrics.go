/*
Copyright 2023-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package metrics

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type TopogenMetrics struct {
	InstancesPlaced metric.Int64Counter
	HostsChanged    metric.Int64Counter
	SpreadFailures  metric.Int64Counter
}

var (
	topogenMetrics     *TopogenMetrics
	topogenMetricsLock sync.Mutex
)

func GetTopogenMetrics() *TopogenMetrics {
	topogenMetricsLock.Lock()

	if topogenMetrics != nil {
		topogenMetricsLock.Unlock()
		return topogenMetrics
	}

	topogenMetrics = NewTopogenMetrics(otel.GetMeterProvider())

	topogenMetricsLock.Unlock()
	return topogenMetrics
}

// BuildVersion is stamped at link time.
var BuildVersion = "dev"

func NewTopogenMetrics(provider metric.MeterProvider) *TopogenMetrics {
	meter := provider.Meter(
		"com.couchbase.topogen",
		metric.WithInstrumentationVersion(BuildVersion))

	instancesPlaced, _ := meter.Int64Counter("topogen_instances_placed_total",
		metric.WithDescription("instances placed on a leaf host"))
	hostsChanged, _ := meter.Int64Counter("topogen_hosts_changed_total",
		metric.WithDescription("hosts added or removed by an upgrade"))
	spreadFailures, _ := meter.Int64Counter("topogen_spread_failures_total",
		metric.WithDescription("placements which could not be completed"))

	return &TopogenMetrics{
		InstancesPlaced: instancesPlaced,
		HostsChanged:    hostsChanged,
		SpreadFailures:  spreadFailures,
	}
}
