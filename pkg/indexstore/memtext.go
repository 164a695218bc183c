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
	"sort"
	"strings"
	"sync"
)

// MemTextIndex is the in-memory reference TextIndex: naive token-overlap
// scoring over every record in a namespace. No Elasticsearch client
// appears in the retrieved dependency pack, so this stands in behind the
// same interface a production adapter would implement.
type MemTextIndex struct {
	mu   sync.RWMutex
	data map[string]map[string]TextRecord // namespace -> id -> record
}

// NewMemTextIndex creates an empty in-memory text index.
func NewMemTextIndex() *MemTextIndex {
	return &MemTextIndex{data: make(map[string]map[string]TextRecord)}
}

func (m *MemTextIndex) Index(_ context.Context, namespace string, rec TextRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string]TextRecord)
		m.data[namespace] = ns
	}
	ns[rec.ID] = rec
	return nil
}

func (m *MemTextIndex) Search(_ context.Context, namespace, query string, topK int) ([]TextMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return nil, nil
	}

	var matches []TextMatch
	for _, rec := range m.data[namespace] {
		score := tokenOverlapScore(qTokens, tokenize(rec.Text))
		if score <= 0 {
			continue
		}
		matches = append(matches, TextMatch{ID: rec.ID, Score: score, Metadata: rec.Metadata})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemTextIndex) DeleteByQuery(_ context.Context, namespace string, filter map[string]any) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.data[namespace]
	if !ok {
		return nil, nil
	}

	var deleted []string
	for id, rec := range ns {
		if matchesFilter(rec.Metadata, filter) {
			delete(ns, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (m *MemTextIndex) ListIDs(_ context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.data[namespace]
	ids := make([]string, 0, len(ns))
	for id := range ns {
		ids = append(ids, id)
	}
	return ids, nil
}

func tokenize(s string) map[string]int {
	tokens := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		tokens[w]++
	}
	return tokens
}

func tokenOverlapScore(query, doc map[string]int) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	var overlap int
	for tok, qCount := range query {
		if dCount, ok := doc[tok]; ok {
			overlap += minInt(qCount, dCount)
		}
	}
	return float64(overlap) / float64(len(query))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
