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
	"sync"
)

// InMemory is a process-local, non-persistent KV backend. It is a plain
// unbounded map, not an eviction cache: the KV substrate is the
// authoritative Full-body store, so silent eviction here would break the
// guarantee that every Lite row has a matching KV body. Suitable for
// tests and the default development mode.
type InMemory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty in-memory KV store.
func NewInMemory() *InMemory {
	return &InMemory{data: make(map[string][]byte)}
}

func (m *InMemory) Kind() string { return "inmemory" }

func (m *InMemory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok || len(v) == 0 {
		return nil, false, nil
	}

	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *InMemory) Put(_ context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = cp
	return nil
}

func (m *InMemory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.data[key]
	delete(m.data, key)
	return existed, nil
}

func (m *InMemory) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok && len(v) > 0 {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}

func (m *InMemory) BatchDelete(_ context.Context, keys []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			count++
		}
	}
	return count, nil
}

func (m *InMemory) Iterate(ctx context.Context, fn func(key string, value []byte) error) error {
	// Snapshot under the lock, then invoke fn outside it so a slow
	// consumer never blocks writers for the whole pass; concurrent
	// mutation during the snapshot window is explicitly unspecified
	// behavior per the KV substrate's iteration contract.
	m.mu.RLock()
	snapshot := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		if len(v) == 0 {
			continue
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		snapshot[k] = cp
	}
	m.mu.RUnlock()

	for k, v := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
