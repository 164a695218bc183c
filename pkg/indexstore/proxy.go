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

package indexstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/evermemos/memcore/pkg/kvstore"
	"github.com/evermemos/memcore/pkg/utils"
)

var errIndexDrift = errors.New("indexstore: indexed row present but kv body missing")

// IndexDualProxy pairs a VectorIndex or TextIndex (or both) with a
// kvstore.Store, applying the same Lite-projection/Full-body split
// docstore.DualProxy applies to the document store. The namespace is the
// collection's (or index's) logical base name, never a tenant-suffixed
// physical name, and KV keys are "{namespace}:{id}". Repositories never
// form these keys themselves.
type IndexDualProxy[T VectorFielded] struct {
	vector    VectorIndex
	text      TextIndex
	kv        kvstore.Store
	namespace string
}

// NewVectorDualProxy pairs a VectorIndex with a kvstore.Store, keying KV
// bodies under the collection's logical base name.
func NewVectorDualProxy[T VectorFielded](collection string, vector VectorIndex, kv kvstore.Store) *IndexDualProxy[T] {
	return &IndexDualProxy[T]{vector: vector, kv: kv, namespace: collection}
}

// NewTextDualProxy pairs a TextIndex with a kvstore.Store, keying KV
// bodies under the index's logical base name.
func NewTextDualProxy[T VectorFielded](index string, text TextIndex, kv kvstore.Store) *IndexDualProxy[T] {
	return &IndexDualProxy[T]{text: text, kv: kv, namespace: index}
}

func (p *IndexDualProxy[T]) key(id string) string {
	return fmt.Sprintf("%s:%s", p.namespace, id)
}

// UpsertVector projects doc onto its declared LiteVectorFields as the
// backend's metadata, upserts the vector, then writes the Full body to
// the KV.
func (p *IndexDualProxy[T]) UpsertVector(ctx context.Context, id string, vector []float32, doc T) error {
	if p.vector == nil {
		return fmt.Errorf("indexstore: no vector backend configured")
	}

	metadata, err := projectVectorFields(doc)
	if err != nil {
		return err
	}

	if err := p.vector.Upsert(ctx, p.namespace, VectorRecord{ID: id, Vector: vector, Metadata: metadata}); err != nil {
		return fmt.Errorf("indexstore: vector upsert %s: %w", id, err)
	}
	return p.putFull(ctx, id, doc)
}

// IndexText indexes doc's text under id in the text backend, then writes
// the Full body to the KV.
func (p *IndexDualProxy[T]) IndexText(ctx context.Context, id, text string, doc T) error {
	if p.text == nil {
		return fmt.Errorf("indexstore: no text backend configured")
	}

	metadata, err := projectVectorFields(doc)
	if err != nil {
		return err
	}

	if err := p.text.Index(ctx, p.namespace, TextRecord{ID: id, Text: text, Metadata: metadata}); err != nil {
		return fmt.Errorf("indexstore: text index %s: %w", id, err)
	}
	return p.putFull(ctx, id, doc)
}

// SearchVector runs the vector backend's nearest-neighbor query, then
// loads each hit's Full body from the KV with one Get per hit. The Full
// bodies are returned in docs, apart from matches; they are not merged into
// the match metadata. A hit missing a KV body stays in matches with its
// Lite metadata only, has no entry in docs, and is logged as drift, so docs
// can be shorter than matches.
func (p *IndexDualProxy[T]) SearchVector(ctx context.Context, query []float32, topK int, filter map[string]any) ([]VectorMatch, []T, error) {
	if p.vector == nil {
		return nil, nil, fmt.Errorf("indexstore: no vector backend configured")
	}

	matches, err := p.vector.Search(ctx, p.namespace, query, topK, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("indexstore: vector search: %w", err)
	}

	docs := make([]T, 0, len(matches))
	for _, match := range matches {
		full, ok, err := p.loadFull(ctx, match.ID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			klog.FromContext(ctx).Error(errIndexDrift, "vector hit present but kv body absent", "id", match.ID)
			continue
		}
		docs = append(docs, full)
	}
	return matches, docs, nil
}

// SearchText runs the text backend's query, then loads each hit's Full
// body from the KV with one Get per hit, returning the bodies in docs apart
// from matches. A hit whose KV body is absent stays in matches, has no
// entry in docs, and is logged as drift.
func (p *IndexDualProxy[T]) SearchText(ctx context.Context, query string, topK int) ([]TextMatch, []T, error) {
	if p.text == nil {
		return nil, nil, fmt.Errorf("indexstore: no text backend configured")
	}

	matches, err := p.text.Search(ctx, p.namespace, query, topK)
	if err != nil {
		return nil, nil, fmt.Errorf("indexstore: text search: %w", err)
	}

	docs := make([]T, 0, len(matches))
	for _, match := range matches {
		full, ok, err := p.loadFull(ctx, match.ID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			klog.FromContext(ctx).Error(errIndexDrift, "text hit present but kv body absent", "id", match.ID)
			continue
		}
		docs = append(docs, full)
	}
	return matches, docs, nil
}

// DeleteTextByQuery removes every text row matching filter from the
// backend, then best-effort removes the corresponding KV bodies.
func (p *IndexDualProxy[T]) DeleteTextByQuery(ctx context.Context, filter map[string]any) (int, error) {
	if p.text == nil {
		return 0, fmt.Errorf("indexstore: no text backend configured")
	}
	ids, err := p.text.DeleteByQuery(ctx, p.namespace, filter)
	if err != nil {
		return 0, fmt.Errorf("indexstore: text delete by query: %w", err)
	}
	keys := utils.SliceMap(ids, p.key)
	if _, err := p.kv.BatchDelete(ctx, keys); err != nil {
		klog.FromContext(ctx).Error(err, "batch kv delete failed after text delete", "count", len(keys))
	}
	return len(ids), nil
}

// DeleteVector removes id from the vector backend, then from the KV.
func (p *IndexDualProxy[T]) DeleteVector(ctx context.Context, id string) error {
	if p.vector == nil {
		return fmt.Errorf("indexstore: no vector backend configured")
	}
	if err := p.vector.Delete(ctx, p.namespace, id); err != nil {
		return fmt.Errorf("indexstore: vector delete %s: %w", id, err)
	}
	_, err := p.kv.Delete(ctx, p.key(id))
	return err
}

func (p *IndexDualProxy[T]) putFull(ctx context.Context, id string, doc T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("indexstore: marshal full body for %s: %w", id, err)
	}
	if err := p.kv.Put(ctx, p.key(id), raw); err != nil {
		return fmt.Errorf("indexstore: write full body for %s: %w", id, err)
	}
	return nil
}

func (p *IndexDualProxy[T]) loadFull(ctx context.Context, id string) (T, bool, error) {
	var full T
	raw, ok, err := p.kv.Get(ctx, p.key(id))
	if err != nil || !ok {
		return full, false, err
	}
	if err := json.Unmarshal(raw, &full); err != nil {
		return full, false, fmt.Errorf("indexstore: unmarshal full body for %s: %w", id, err)
	}
	return full, true, nil
}

func projectVectorFields[T VectorFielded](doc T) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("indexstore: marshal lite projection: %w", err)
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("indexstore: unmarshal lite projection: %w", err)
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
