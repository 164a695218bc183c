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

// Package validator is the startup data-sync validator: it reconciles the
// KV's authoritative bodies against the document store and the vector/text
// indices, repairing a Lite row that is missing without ever fabricating
// content for a missing KV body.
package validator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/evermemos/memcore/pkg/metrics"
)

// SyncResult is one reconciliation pass's outcome.
type SyncResult struct {
	Target       string
	DocType      string
	TotalChecked int
	MissingCount int
	SyncedCount  int
	ErrorCount   int
	ElapsedTime  time.Duration
}

// Reconciler is one (target, class) pair the validator drives: document
// store, vector index, or text index, each paired with the shared KV.
type Reconciler interface {
	// Name identifies the target kind ("docstore", "vector", "text").
	Name() string
	// DocType identifies the entity class being reconciled.
	DocType() string
	// Reconcile runs one pass bounded by since (zero value means full
	// scope) and returns the pass's SyncResult.
	Reconcile(ctx context.Context, since time.Time) (SyncResult, error)
}

// Validator runs every registered Reconciler concurrently.
type Validator struct {
	reconcilers []Reconciler
	scopeDays   int
}

// New builds a Validator over reconcilers, scoped to the last scopeDays
// days. Zero means full database, which is logged as a prominent warning
// because it is slow.
func New(scopeDays int, reconcilers ...Reconciler) *Validator {
	return &Validator{reconcilers: reconcilers, scopeDays: scopeDays}
}

// Run launches every reconciler concurrently and returns once all passes
// complete. Callers wanting "never blocks startup" semantics invoke Run in
// their own goroutine rather than awaiting it on the startup path.
func (v *Validator) Run(ctx context.Context) ([]SyncResult, error) {
	logger := klog.FromContext(ctx)

	var since time.Time
	if v.scopeDays > 0 {
		since = timeNow().AddDate(0, 0, -v.scopeDays)
	} else {
		logger.Info("startup validator running full-database scope; this may be slow")
	}

	results := make([]SyncResult, len(v.reconcilers))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range v.reconcilers {
		i, r := i, r
		g.Go(func() error {
			result, err := r.Reconcile(gctx, since)
			results[i] = result
			if err != nil {
				logger.Error(err, "reconciliation pass failed", "target", r.Name(), "doc_type", r.DocType())
				return err
			}
			logger.Info("reconciliation pass complete",
				"target", result.Target, "doc_type", result.DocType,
				"total_checked", result.TotalChecked, "missing_count", result.MissingCount,
				"synced_count", result.SyncedCount, "error_count", result.ErrorCount,
				"elapsed", result.ElapsedTime)
			metrics.DriftDetected.WithLabelValues(result.Target, result.DocType).Add(float64(result.MissingCount))
			metrics.DriftRepaired.WithLabelValues(result.Target, result.DocType).Add(float64(result.SyncedCount))
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// timeNow is indirected so tests can pin "now".
var timeNow = time.Now
