/*
Copyright 2025 The llm-d Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics holds the Prometheus collectors shared by the KV
// substrate and the startup validator, so KV latency and drift counts are
// observable through the same registry.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"k8s.io/klog/v2"
)

var (
	// KVOps counts KV substrate calls by backend and operation.
	KVOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memcore", Subsystem: "kvstore", Name: "ops_total",
		Help: "Total number of KV substrate operations",
	}, []string{"backend", "op"})

	// KVOpErrors counts failed KV substrate calls by backend and operation.
	KVOpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memcore", Subsystem: "kvstore", Name: "op_errors_total",
		Help: "Total number of failed KV substrate operations",
	}, []string{"backend", "op"})

	// KVOpLatency histograms KV substrate call latency by backend and operation.
	KVOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memcore", Subsystem: "kvstore", Name: "op_latency_seconds",
		Help:    "Latency of KV substrate operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})

	// DriftDetected counts drift findings by target and doc type.
	DriftDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memcore", Subsystem: "validator", Name: "drift_detected_total",
		Help: "Total number of drift findings between the KV and a target store",
	}, []string{"target", "doc_type"})

	// DriftRepaired counts drift repairs by target and doc type.
	DriftRepaired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memcore", Subsystem: "validator", Name: "drift_repaired_total",
		Help: "Total number of drift findings repaired by the startup validator",
	}, []string{"target", "doc_type"})
)

// Collectors returns every collector this package registers.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		KVOps, KVOpErrors, KVOpLatency, DriftDetected, DriftRepaired,
	}
}

var registerOnce sync.Once

// Register registers all memcore metrics with the default Prometheus registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// StartLogging spawns a goroutine that logs a metrics beat every interval
// until ctx is cancelled. It is non-blocking.
func StartLogging(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logBeat(ctx)
			}
		}
	}()
}

func logBeat(ctx context.Context) {
	var m dto.Metric

	ops := sumCounterVec(&m, KVOps)
	errs := sumCounterVec(&m, KVOpErrors)
	drift := sumCounterVec(&m, DriftDetected)
	repaired := sumCounterVec(&m, DriftRepaired)

	klog.FromContext(ctx).WithName("metrics").Info("metrics beat",
		"kv_ops", ops, "kv_op_errors", errs,
		"drift_detected", drift, "drift_repaired", repaired,
	)
}

func sumCounterVec(scratch *dto.Metric, vec *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		*scratch = dto.Metric{}
		if err := metric.Write(scratch); err != nil {
			continue
		}
		total += scratch.GetCounter().GetValue()
	}

	return total
}
