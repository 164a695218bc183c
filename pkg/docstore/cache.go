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
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	defaultCacheNumCounters = 1e7
	defaultCacheBufferItems = 64
)

// ReadCache is a transparent read-through accelerator in front of
// DualProxy's KV-lookup half of the read path, keyed by document id and
// invalidated on every write/delete through the same DualProxy.
type ReadCache[T any] struct {
	cache *ristretto.Cache[string, T]
}

// NewReadCache builds a ReadCache with maxCost as its cost budget (an
// entry count for this cache, since every entry is charged cost 1).
func NewReadCache[T any](maxCost int64) (*ReadCache[T], error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, T]{
		NumCounters: defaultCacheNumCounters,
		MaxCost:     maxCost,
		BufferItems: defaultCacheBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: build read cache: %w", err)
	}
	return &ReadCache[T]{cache: cache}, nil
}

// Get returns the cached Full document for id, if present.
func (c *ReadCache[T]) Get(id string) (T, bool) {
	return c.cache.Get(id)
}

// Set caches doc under id with cost 1.
func (c *ReadCache[T]) Set(id string, doc T) {
	c.cache.Set(id, doc, 1)
	c.cache.Wait()
}

// Invalidate evicts id from the cache.
func (c *ReadCache[T]) Invalidate(id string) {
	c.cache.Del(id)
}
