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

// Package kvstore is the pluggable key-value substrate every other memcore
// package treats as the authoritative Full-body store. Keys are opaque
// strings; values are opaque byte strings (JSON in practice).
package kvstore

import "context"

// Store is the KV substrate contract. Every method is a suspension point
// and must respect ctx cancellation/deadline.
type Store interface {
	// Get returns the most recently written value for key, or (nil, false)
	// if absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put makes subsequent Get(key) return value. Overwrites.
	Put(ctx context.Context, key string, value []byte) error
	// Delete makes subsequent Get(key) return absent. Returns whether a
	// value was present.
	Delete(ctx context.Context, key string) (bool, error)
	// BatchGet returns a map containing every key whose value is present;
	// missing keys are omitted.
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)
	// BatchDelete returns the count of keys actually removed.
	BatchDelete(ctx context.Context, keys []string) (int, error)
	// Iterate calls fn for every live (key, value) pair exactly once.
	// Tombstoned entries (empty value) are skipped. fn returning an error
	// stops iteration and Iterate returns that error.
	Iterate(ctx context.Context, fn func(key string, value []byte) error) error

	// Kind names the backend for logging and metrics ("inmemory", "redis",
	// "zerog").
	Kind() string
}
