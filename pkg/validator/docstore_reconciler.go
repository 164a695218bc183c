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
	"reflect"
	"time"

	"k8s.io/klog/v2"

	"github.com/evermemos/memcore/pkg/docstore"
	"github.com/evermemos/memcore/pkg/kvstore"
	"github.com/evermemos/memcore/pkg/litefield"
)

// DocStoreReconciler reconciles a document-store class against the KV:
// a KV body with no Lite row is reconstructed and inserted; a Lite row
// with no KV body is logged as drift and left alone, since the KV is
// authoritative and fabricating its content is unsafe.
type DocStoreReconciler[T any, PT interface {
	*T
	docstore.Identifiable
}] struct {
	docType string
	docs    docstore.Store[T]
	kv      kvstore.Store
	schema  litefield.Schema
}

// NewDocStoreReconciler builds a reconciler for T over docs + kv.
func NewDocStoreReconciler[T any, PT interface {
	*T
	docstore.Identifiable
}](docType string, docs docstore.Store[T], kv kvstore.Store) *DocStoreReconciler[T, PT] {
	var zero T
	return &DocStoreReconciler[T, PT]{
		docType: docType,
		docs:    docs,
		kv:      kv,
		schema:  litefield.Extract(reflect.TypeOf(zero)),
	}
}

func (r *DocStoreReconciler[T, PT]) Name() string    { return "docstore" }
func (r *DocStoreReconciler[T, PT]) DocType() string { return r.docType }

func (r *DocStoreReconciler[T, PT]) Reconcile(ctx context.Context, since time.Time) (SyncResult, error) {
	start := time.Now()
	logger := klog.FromContext(ctx)

	targetRows, err := r.docs.Find(ctx, nil)
	if err != nil {
		return SyncResult{Target: r.Name(), DocType: r.docType}, err
	}

	targetIDs := make(map[string]struct{}, len(targetRows))
	for _, row := range targetRows {
		targetIDs[PT(&row).GetID()] = struct{}{}
	}

	kvIDs := make(map[string][]byte)
	if err := r.kv.Iterate(ctx, func(key string, value []byte) error {
		if !since.IsZero() && !bodyWithinScope(value, since) {
			return nil
		}
		kvIDs[key] = value
		return nil
	}); err != nil {
		return SyncResult{Target: r.Name(), DocType: r.docType}, err
	}

	result := SyncResult{Target: r.Name(), DocType: r.docType}
	result.TotalChecked = len(targetIDs) + len(kvIDs)

	for id, body := range kvIDs {
		if _, present := targetIDs[id]; present {
			continue
		}

		result.MissingCount++
		lite, err := reconstructLite[T](body, r.schema)
		if err != nil {
			logger.Error(err, "failed to reconstruct lite row from kv body", "id", id, "doc_type", r.docType)
			result.ErrorCount++
			continue
		}
		if _, err := r.docs.InsertWithID(ctx, id, lite); err != nil {
			logger.Error(err, "failed to insert reconstructed lite row", "id", id, "doc_type", r.docType)
			result.ErrorCount++
			continue
		}
		result.SyncedCount++
	}

	for id := range targetIDs {
		if _, present := kvIDs[id]; present {
			continue
		}
		if !since.IsZero() {
			// The kv scan above was scope-bounded; a target row outside
			// scope legitimately has no corresponding scanned kv entry.
			continue
		}
		logger.Error(nil, "lite row present but kv body missing", "id", id, "doc_type", r.docType)
		result.ErrorCount++
	}

	result.ElapsedTime = time.Since(start)
	return result, nil
}

func bodyWithinScope(body []byte, since time.Time) bool {
	var envelope struct {
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return true
	}
	if envelope.CreatedAt.IsZero() {
		return true
	}
	return !envelope.CreatedAt.Before(since)
}

func reconstructLite[T any](body []byte, schema litefield.Schema) (T, error) {
	var full T
	if err := json.Unmarshal(body, &full); err != nil {
		return full, err
	}

	liteData, err := litefield.ExtractLiteData(full, schema)
	if err != nil {
		return full, err
	}

	raw, err := json.Marshal(liteData)
	if err != nil {
		return full, err
	}

	var lite T
	if err := json.Unmarshal(raw, &lite); err != nil {
		return lite, err
	}
	return lite, nil
}
