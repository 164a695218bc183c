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

package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/evermemos/memcore/pkg/indexstore"
	"github.com/evermemos/memcore/pkg/kvstore"
)

// VectorIndexReconciler reconciles a vector-index class against the KV: a
// KV body with no vector row is reconstructed (re-embedded is out of
// scope here, so the repair re-upserts the last-known vector carried in
// the KV body's own Vector field) and inserted; a vector row with no KV
// body is logged as drift and left alone.
type VectorIndexReconciler[T indexstore.VectorFielded] struct {
	docType   string
	backend   indexstore.VectorIndex
	kv        kvstore.Store
	namespace string
	vectorOf  func(T) []float32
}

// NewVectorIndexReconciler builds a reconciler for T over backend + kv.
// collection is the vector collection's logical base name, the same
// namespace the proxy keys KV bodies under. vectorOf extracts the
// embedding from a decoded Full body, since the generic VectorFielded
// constraint does not itself carry a vector field.
func NewVectorIndexReconciler[T indexstore.VectorFielded](docType, collection string, backend indexstore.VectorIndex, kv kvstore.Store, vectorOf func(T) []float32) *VectorIndexReconciler[T] {
	return &VectorIndexReconciler[T]{
		docType:   docType,
		backend:   backend,
		kv:        kv,
		namespace: collection,
		vectorOf:  vectorOf,
	}
}

func (r *VectorIndexReconciler[T]) Name() string    { return "vector" }
func (r *VectorIndexReconciler[T]) DocType() string { return r.docType }

func (r *VectorIndexReconciler[T]) Reconcile(ctx context.Context, since time.Time) (SyncResult, error) {
	start := time.Now()
	logger := klog.FromContext(ctx)
	result := SyncResult{Target: r.Name(), DocType: r.docType}

	targetIDs, err := r.backend.ListIDs(ctx, r.namespace)
	if err != nil {
		return result, err
	}
	targetSet := toSet(targetIDs)

	kvIDs, err := scopedKVIDs(ctx, r.kv, r.namespace, since)
	if err != nil {
		return result, err
	}

	result.TotalChecked = len(targetSet) + len(kvIDs)

	for id, body := range kvIDs {
		if _, present := targetSet[id]; present {
			continue
		}
		result.MissingCount++

		doc, err := decodeVectorFieldedBody[T](body)
		if err != nil {
			logger.Error(err, "failed to decode kv body for vector reconstruction", "id", id, "doc_type", r.docType)
			result.ErrorCount++
			continue
		}

		metadata, err := projectVectorMetadata(doc)
		if err != nil {
			logger.Error(err, "failed to project lite vector fields", "id", id, "doc_type", r.docType)
			result.ErrorCount++
			continue
		}

		rec := indexstore.VectorRecord{ID: id, Vector: r.vectorOf(doc), Metadata: metadata}
		if err := r.backend.Upsert(ctx, r.namespace, rec); err != nil {
			logger.Error(err, "failed to reinsert vector row", "id", id, "doc_type", r.docType)
			result.ErrorCount++
			continue
		}
		result.SyncedCount++
	}

	for id := range targetSet {
		if _, present := kvIDs[id]; present {
			continue
		}
		if !since.IsZero() {
			continue
		}
		logger.Error(nil, "vector row present but kv body missing", "id", id, "doc_type", r.docType)
		result.ErrorCount++
	}

	result.ElapsedTime = time.Since(start)
	return result, nil
}

// TextIndexReconciler is the text-index equivalent of VectorIndexReconciler.
type TextIndexReconciler[T indexstore.VectorFielded] struct {
	docType   string
	backend   indexstore.TextIndex
	kv        kvstore.Store
	namespace string
	textOf    func(T) string
}

// NewTextIndexReconciler builds a reconciler for T over backend + kv.
// index is the text index's logical base name, the same namespace the
// proxy keys KV bodies under. textOf extracts the indexed text from a
// decoded Full body.
func NewTextIndexReconciler[T indexstore.VectorFielded](docType, index string, backend indexstore.TextIndex, kv kvstore.Store, textOf func(T) string) *TextIndexReconciler[T] {
	return &TextIndexReconciler[T]{
		docType:   docType,
		backend:   backend,
		kv:        kv,
		namespace: index,
		textOf:    textOf,
	}
}

func (r *TextIndexReconciler[T]) Name() string    { return "text" }
func (r *TextIndexReconciler[T]) DocType() string { return r.docType }

func (r *TextIndexReconciler[T]) Reconcile(ctx context.Context, since time.Time) (SyncResult, error) {
	start := time.Now()
	logger := klog.FromContext(ctx)
	result := SyncResult{Target: r.Name(), DocType: r.docType}

	targetIDs, err := r.backend.ListIDs(ctx, r.namespace)
	if err != nil {
		return result, err
	}
	targetSet := toSet(targetIDs)

	kvIDs, err := scopedKVIDs(ctx, r.kv, r.namespace, since)
	if err != nil {
		return result, err
	}

	result.TotalChecked = len(targetSet) + len(kvIDs)

	for id, body := range kvIDs {
		if _, present := targetSet[id]; present {
			continue
		}
		result.MissingCount++

		doc, err := decodeVectorFieldedBody[T](body)
		if err != nil {
			logger.Error(err, "failed to decode kv body for text reconstruction", "id", id, "doc_type", r.docType)
			result.ErrorCount++
			continue
		}

		metadata, err := projectVectorMetadata(doc)
		if err != nil {
			logger.Error(err, "failed to project lite vector fields", "id", id, "doc_type", r.docType)
			result.ErrorCount++
			continue
		}

		rec := indexstore.TextRecord{ID: id, Text: r.textOf(doc), Metadata: metadata}
		if err := r.backend.Index(ctx, r.namespace, rec); err != nil {
			logger.Error(err, "failed to reinsert text row", "id", id, "doc_type", r.docType)
			result.ErrorCount++
			continue
		}
		result.SyncedCount++
	}

	for id := range targetSet {
		if _, present := kvIDs[id]; present {
			continue
		}
		if !since.IsZero() {
			continue
		}
		logger.Error(nil, "text row present but kv body missing", "id", id, "doc_type", r.docType)
		result.ErrorCount++
	}

	result.ElapsedTime = time.Since(start)
	return result, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// scopedKVIDs collects every KV entry whose key is namespaced under
// "{namespace}:", keyed by the bare id with the namespace prefix stripped.
func scopedKVIDs(ctx context.Context, kv kvstore.Store, namespace string, since time.Time) (map[string][]byte, error) {
	prefix := namespace + ":"
	out := make(map[string][]byte)

	err := kv.Iterate(ctx, func(key string, value []byte) error {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			return nil
		}
		if !since.IsZero() && !bodyWithinScope(value, since) {
			return nil
		}
		out[key[len(prefix):]] = value
		return nil
	})
	return out, err
}

func decodeVectorFieldedBody[T indexstore.VectorFielded](body []byte) (T, error) {
	var doc T
	if err := json.Unmarshal(body, &doc); err != nil {
		return doc, fmt.Errorf("validator: decode kv body: %w", err)
	}
	return doc, nil
}

// projectVectorMetadata mirrors indexstore's unexported Lite-vector-field
// projection, since that helper is internal to the proxy and the
// validator reconstructs directly against the raw backend.
func projectVectorMetadata[T indexstore.VectorFielded](doc T) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("validator: marshal lite projection: %w", err)
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("validator: unmarshal lite projection: %w", err)
	}

	fields := doc.LiteVectorFields()
	lite := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := full[f]; ok {
			lite[f] = v
		}
	}
	return lite, nil
}
