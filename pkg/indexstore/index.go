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

// Package indexstore models the vector and text search backends a
// production deployment would point at a live Milvus collection or an
// Elasticsearch index, and layers the same Lite/Full dual-storage
// discipline docstore uses over whichever backend is wired in.
package indexstore

import "context"

// VectorRecord is one row a VectorIndex stores: an id, its embedding, and
// the Lite metadata fields carried alongside it for filtering.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// VectorMatch is one VectorIndex.Search hit.
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorIndex is the pluggable backend a live Milvus collection (or any
// nearest-neighbor store) would implement.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, rec VectorRecord) error
	Search(ctx context.Context, namespace string, query []float32, topK int, filter map[string]any) ([]VectorMatch, error)
	Delete(ctx context.Context, namespace, id string) error
	// ListIDs enumerates every id in namespace, for the startup validator's
	// reconciliation pass. A live Milvus adapter would implement this with
	// a scroll/iterator query.
	ListIDs(ctx context.Context, namespace string) ([]string, error)
}

// TextRecord is one row a TextIndex stores.
type TextRecord struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// TextMatch is one TextIndex.Search hit.
type TextMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// TextIndex is the pluggable backend a live Elasticsearch index would
// implement.
type TextIndex interface {
	Index(ctx context.Context, namespace string, rec TextRecord) error
	Search(ctx context.Context, namespace, query string, topK int) ([]TextMatch, error)
	// DeleteByQuery removes every row matching filter and returns the ids
	// removed, so the caller can clean up the matching KV bodies.
	DeleteByQuery(ctx context.Context, namespace string, filter map[string]any) ([]string, error)
	// ListIDs enumerates every id in namespace, for the startup validator's
	// reconciliation pass. A live Elasticsearch adapter would implement
	// this with a scroll query.
	ListIDs(ctx context.Context, namespace string) ([]string, error)
}

// VectorFielded is implemented by entity classes that declare which of
// their Lite fields ride along in the vector backend's metadata.
type VectorFielded interface {
	LiteVectorFields() []string
}
