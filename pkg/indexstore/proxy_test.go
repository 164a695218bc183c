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

package indexstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermemos/memcore/pkg/indexstore"
	"github.com/evermemos/memcore/pkg/kvstore"
)

type foresightRecord struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id"`
	Content string `json:"content"`
}

func (f foresightRecord) LiteVectorFields() []string {
	return []string{"id", "group_id"}
}

// TestVectorProxyRoundTripsEveryField: a write through the
// vector-index proxy, followed by a filtered search on id, returns a row
// carrying every field of the original entity, including ones that never
// made it into the backend's own Lite metadata.
func TestVectorProxyRoundTripsEveryField(t *testing.T) {
	ctx := context.Background()
	backend := indexstore.NewMemVectorIndex()
	kv := kvstore.NewInMemory()
	proxy := indexstore.NewVectorDualProxy[foresightRecord]("foresight_vectors", backend, kv)

	rec := foresightRecord{ID: "f1", GroupID: "g1", Content: "full body payload"}
	require.NoError(t, proxy.UpsertVector(ctx, rec.ID, []float32{1, 0, 0}, rec))

	_, docs, err := proxy.SearchVector(ctx, []float32{1, 0, 0}, 5, map[string]any{"id": "f1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, rec, docs[0])
}

// TestVectorSearchReturnsContentNotInLiteFields: three upserts,
// an unfiltered search, every hit carries its content field loaded from
// the KV even though content is not a declared Lite vector field.
func TestVectorSearchReturnsContentNotInLiteFields(t *testing.T) {
	ctx := context.Background()
	backend := indexstore.NewMemVectorIndex()
	kv := kvstore.NewInMemory()
	proxy := indexstore.NewVectorDualProxy[foresightRecord]("foresight_vectors", backend, kv)

	recs := []foresightRecord{
		{ID: "a", GroupID: "g1", Content: "A"},
		{ID: "b", GroupID: "g1", Content: "B"},
		{ID: "c", GroupID: "g1", Content: "C"},
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	for i, rec := range recs {
		require.NoError(t, proxy.UpsertVector(ctx, rec.ID, vectors[i], rec))
	}

	matches, docs, err := proxy.SearchVector(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
	require.Len(t, docs, 3)

	seen := map[string]bool{}
	for _, d := range docs {
		assert.NotEmpty(t, d.Content)
		seen[d.Content] = true
	}
	assert.True(t, seen["A"] && seen["B"] && seen["C"])
}

func TestVectorSearchDropsMissingKVBodyAsDrift(t *testing.T) {
	ctx := context.Background()
	backend := indexstore.NewMemVectorIndex()
	kv := kvstore.NewInMemory()
	proxy := indexstore.NewVectorDualProxy[foresightRecord]("foresight_vectors", backend, kv)

	rec := foresightRecord{ID: "f1", GroupID: "g1", Content: "x"}
	require.NoError(t, proxy.UpsertVector(ctx, rec.ID, []float32{1, 0}, rec))

	_, err := kv.Delete(ctx, "foresight_vectors:f1")
	require.NoError(t, err)

	matches, docs, err := proxy.SearchVector(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Empty(t, docs)
}

func TestTextProxyIndexAndSearch(t *testing.T) {
	ctx := context.Background()
	backend := indexstore.NewMemTextIndex()
	kv := kvstore.NewInMemory()
	proxy := indexstore.NewTextDualProxy[foresightRecord]("foresight_text", backend, kv)

	rec := foresightRecord{ID: "t1", GroupID: "g1", Content: "anticipated next action"}
	require.NoError(t, proxy.IndexText(ctx, rec.ID, rec.Content, rec))

	matches, docs, err := proxy.SearchText(ctx, "anticipated action", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Len(t, docs, 1)
	assert.Equal(t, rec, docs[0])
}

func TestDeleteTextByQueryRemovesBackendAndKV(t *testing.T) {
	ctx := context.Background()
	backend := indexstore.NewMemTextIndex()
	kv := kvstore.NewInMemory()
	proxy := indexstore.NewTextDualProxy[foresightRecord]("foresight_text", backend, kv)

	recs := []foresightRecord{
		{ID: "t1", GroupID: "g1", Content: "planning a trip"},
		{ID: "t2", GroupID: "g2", Content: "planning a meal"},
	}
	for _, rec := range recs {
		require.NoError(t, proxy.IndexText(ctx, rec.ID, rec.Content, rec))
	}

	n, err := proxy.DeleteTextByQuery(ctx, map[string]any{"group_id": "g1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, _, err := proxy.SearchText(ctx, "planning", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "t2", matches[0].ID)

	_, present, err := kv.Get(ctx, "foresight_text:t1")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestVectorDeleteRemovesBackendAndKV(t *testing.T) {
	ctx := context.Background()
	backend := indexstore.NewMemVectorIndex()
	kv := kvstore.NewInMemory()
	proxy := indexstore.NewVectorDualProxy[foresightRecord]("foresight_vectors", backend, kv)

	rec := foresightRecord{ID: "f1", GroupID: "g1"}
	require.NoError(t, proxy.UpsertVector(ctx, rec.ID, []float32{1, 0}, rec))
	require.NoError(t, proxy.DeleteVector(ctx, rec.ID))

	matches, _, err := proxy.SearchVector(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, present, err := kv.Get(ctx, "foresight_vectors:f1")
	require.NoError(t, err)
	assert.False(t, present)
}
