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

package kvstore

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/evermemos/memcore/pkg/logging"
	"github.com/evermemos/memcore/pkg/metrics"
)

// Instrumented wraps a Store, recording op counts, op errors, and latency
// histograms against memcore's Prometheus registry.
type Instrumented struct {
	inner Store
}

var _ Store = (*Instrumented)(nil)

// NewInstrumented wraps inner with Prometheus observability.
func NewInstrumented(inner Store) *Instrumented {
	return &Instrumented{inner: inner}
}

func (i *Instrumented) Kind() string { return i.inner.Kind() }

func (i *Instrumented) observe(ctx context.Context, op string, start time.Time, err error) {
	kind := i.inner.Kind()
	elapsed := time.Since(start)
	metrics.KVOps.WithLabelValues(kind, op).Inc()
	metrics.KVOpLatency.WithLabelValues(kind, op).Observe(elapsed.Seconds())
	if err != nil {
		metrics.KVOpErrors.WithLabelValues(kind, op).Inc()
	}
	klog.FromContext(ctx).V(logging.DEBUG).Info("kv op", "backend", kind, "op", op, "elapsed", elapsed, "failed", err != nil)
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := i.inner.Get(ctx, key)
	i.observe(ctx, "get", start, err)
	return v, ok, err
}

func (i *Instrumented) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := i.inner.Put(ctx, key, value)
	i.observe(ctx, "put", start, err)
	return err
}

func (i *Instrumented) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	existed, err := i.inner.Delete(ctx, key)
	i.observe(ctx, "delete", start, err)
	return existed, err
}

func (i *Instrumented) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	v, err := i.inner.BatchGet(ctx, keys)
	i.observe(ctx, "batch_get", start, err)
	return v, err
}

func (i *Instrumented) BatchDelete(ctx context.Context, keys []string) (int, error) {
	start := time.Now()
	n, err := i.inner.BatchDelete(ctx, keys)
	i.observe(ctx, "batch_delete", start, err)
	return n, err
}

func (i *Instrumented) Iterate(ctx context.Context, fn func(key string, value []byte) error) error {
	start := time.Now()
	err := i.inner.Iterate(ctx, fn)
	i.observe(ctx, "iterate", start, err)
	return err
}

// Flush delegates to the wrapped Store if it is a Flusher, and is a no-op
// otherwise, so lifespan shutdown can unconditionally call it through the
// Flusher interface check.
func (i *Instrumented) Flush(ctx context.Context) error {
	if f, ok := i.inner.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Unwrap exposes the wrapped Store, e.g. for type-asserting to a concrete
// backend in tests.
func (i *Instrumented) Unwrap() Store { return i.inner }
