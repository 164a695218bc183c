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

package docstore

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UniqueKeyed is implemented by classes that declare a unique composite
// key (conversation status, user profile, cluster state). MemStore checks
// this structurally: any T whose values happen to implement
// memtypes.UniqueKeyed satisfy this interface without docstore importing
// memtypes.
type UniqueKeyed interface {
	UniqueKeyValues() map[string]string
}

// MemStore is the in-memory reference Store[T] implementation: the
// document store used by tests and the default development mode, and by
// DualProxy[T] whenever no external document database is wired. T must
// have a pointer receiver (PT) implementing Identifiable; SoftDeletable
// and UniqueKeyed are checked structurally at call time.
type MemStore[T any, PT interface {
	*T
	Identifiable
}] struct {
	mu   sync.RWMutex
	data map[string]T
}

// NewMemStore creates an empty in-memory document store for T.
func NewMemStore[T any, PT interface {
	*T
	Identifiable
}]() *MemStore[T, PT] {
	return &MemStore[T, PT]{data: make(map[string]T)}
}

func (m *MemStore[T, PT]) Insert(_ context.Context, doc T) (T, error) {
	cp := doc
	p := PT(&cp)

	if uk, ok := any(p).(UniqueKeyed); ok {
		keys := uk.UniqueKeyValues()
		if len(keys) > 0 {
			m.mu.RLock()
			conflict := m.findByUniqueKeyLocked(keys)
			m.mu.RUnlock()
			if conflict {
				return cp, &DuplicateKeyError{Class: className[T](), Keys: keys}
			}
		}
	}

	now := time.Now()
	p.SetID(uuid.NewString())
	p.SetCreatedAt(now)
	p.SetUpdatedAt(now)

	m.mu.Lock()
	m.data[p.GetID()] = cp
	m.mu.Unlock()

	return cp, nil
}

func (m *MemStore[T, PT]) InsertWithID(_ context.Context, id string, doc T) (T, error) {
	cp := doc
	p := PT(&cp)

	now := time.Now()
	p.SetID(id)
	p.SetCreatedAt(now)
	p.SetUpdatedAt(now)

	m.mu.Lock()
	m.data[id] = cp
	m.mu.Unlock()

	return cp, nil
}

func (m *MemStore[T, PT]) findByUniqueKeyLocked(keys map[string]string) bool {
	for _, existing := range m.data {
		p := PT(&existing)
		uk, ok := any(p).(UniqueKeyed)
		if !ok {
			continue
		}
		if sameKeys(uk.UniqueKeyValues(), keys) {
			return true
		}
	}
	return false
}

func sameKeys(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (m *MemStore[T, PT]) Save(_ context.Context, doc T) (T, error) {
	cp := doc
	p := PT(&cp)
	id := p.GetID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[id]; !ok {
		return cp, ErrNotFound
	}

	p.SetUpdatedAt(time.Now())
	m.data[id] = cp
	return cp, nil
}

func (m *MemStore[T, PT]) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.data[id]
	if !ok {
		return false, nil
	}

	p := PT(&existing)
	if sd, ok := any(p).(SoftDeletable); ok {
		sd.MarkDeleted(time.Now(), "", id)
		m.data[id] = existing
		return true, nil
	}

	delete(m.data, id)
	return true, nil
}

func (m *MemStore[T, PT]) Restore(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.data[id]
	if !ok {
		return ErrNotFound
	}

	p := PT(&existing)
	sd, ok := any(p).(SoftDeletable)
	if !ok {
		return nil
	}

	sd.ClearDeleted()
	m.data[id] = existing
	return nil
}

func (m *MemStore[T, PT]) HardDelete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[id]; !ok {
		return false, nil
	}
	delete(m.data, id)
	return true, nil
}

func (m *MemStore[T, PT]) FindByID(_ context.Context, id string) (T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.data[id]
	if !ok {
		var zero T
		return zero, false, nil
	}
	return doc, true, nil
}

func (m *MemStore[T, PT]) Find(_ context.Context, expr Expr) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []T
	for _, doc := range m.data {
		matched, err := matchesOrAll(expr, doc)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *MemStore[T, PT]) DeleteMany(ctx context.Context, expr Expr) (int, error) {
	m.mu.RLock()
	var ids []string
	for id, doc := range m.data {
		matched, err := matchesOrAll(expr, doc)
		if err != nil {
			m.mu.RUnlock()
			return 0, err
		}
		if matched {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	count := 0
	for _, id := range ids {
		if ok, err := m.Delete(ctx, id); err == nil && ok {
			count++
		}
	}
	return count, nil
}

func matchesOrAll[T any](expr Expr, doc T) (bool, error) {
	if expr == nil {
		return true, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return false, err
	}
	return Matches(expr, m), nil
}

func className[T any]() string {
	var zero T
	return reflect.TypeOf(zero).Name()
}
