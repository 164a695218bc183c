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
	"math"
	"sort"
	"sync"
)

// MemVectorIndex is the in-memory reference VectorIndex: brute-force
// cosine-distance search over every record in a namespace. No Milvus
// client appears in the retrieved dependency pack, so this stands in
// behind the same interface a production adapter would implement.
type MemVectorIndex struct {
	mu   sync.RWMutex
	data map[string]map[string]VectorRecord // namespace -> id -> record
}

// NewMemVectorIndex creates an empty in-memory vector index.
func NewMemVectorIndex() *MemVectorIndex {
	return &MemVectorIndex{data: make(map[string]map[string]VectorRecord)}
}

func (m *MemVectorIndex) Upsert(_ context.Context, namespace string, rec VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string]VectorRecord)
		m.data[namespace] = ns
	}
	ns[rec.ID] = rec
	return nil
}

func (m *MemVectorIndex) Search(_ context.Context, namespace string, query []float32, topK int, filter map[string]any) ([]VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []VectorMatch
	for _, rec := range m.data[namespace] {
		if !matchesFilter(rec.Metadata, filter) {
			continue
		}
		matches = append(matches, VectorMatch{
			ID:       rec.ID,
			Score:    cosineSimilarity(query, rec.Vector),
			Metadata: rec.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemVectorIndex) Delete(_ context.Context, namespace, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ns, ok := m.data[namespace]; ok {
		delete(ns, id)
	}
	return nil
}

func (m *MemVectorIndex) ListIDs(_ context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.data[namespace]
	ids := make([]string, 0, len(ns))
	for id := range ns {
		ids = append(ids, id)
	}
	return ids, nil
}

func matchesFilter(metadata, filter map[string]any) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
