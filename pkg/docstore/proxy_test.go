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

package docstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermemos/memcore/pkg/docstore"
	"github.com/evermemos/memcore/pkg/kvstore"
)

type episodicMemory struct {
	ID         string    `json:"id" lite:"system"`
	CreatedAt  time.Time `json:"created_at" lite:"system"`
	UpdatedAt  time.Time `json:"updated_at" lite:"system"`
	RevisionID string    `json:"revision_id" lite:"system"`

	UserID  string `json:"user_id" lite:"indexed"`
	GroupID string `json:"group_id" lite:"indexed"`

	Subject string `json:"subject"`
	Summary string `json:"summary"`
}

func (e *episodicMemory) GetID() string            { return e.ID }
func (e *episodicMemory) SetID(id string)          { e.ID = id }
func (e *episodicMemory) GetCreatedAt() time.Time  { return e.CreatedAt }
func (e *episodicMemory) SetCreatedAt(t time.Time) { e.CreatedAt = t }
func (e *episodicMemory) GetUpdatedAt() time.Time  { return e.UpdatedAt }
func (e *episodicMemory) SetUpdatedAt(t time.Time) { e.UpdatedAt = t }

func newEpisodicProxy() *docstore.DualProxy[episodicMemory, *episodicMemory] {
	docs := docstore.NewMemStore[episodicMemory, *episodicMemory]()
	kv := kvstore.NewInMemory()
	return docstore.NewDualProxy[episodicMemory, *episodicMemory](docs, kv)
}

// TestDualWriteReadJoinsLiteAndFull: Full-only fields
// survive a round trip through FindByID even though they are never written
// to the document store directly.
func TestDualWriteReadJoinsLiteAndFull(t *testing.T) {
	ctx := context.Background()
	proxy := newEpisodicProxy()

	saved, err := proxy.Insert(ctx, episodicMemory{
		UserID:  "u1",
		GroupID: "g1",
		Subject: "Secret",
		Summary: "only-in-kv",
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, ok, err := proxy.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Secret", got.Subject)
	assert.Equal(t, "only-in-kv", got.Summary)
}

// TestSavePreservesLiteAndFullFields checks that an update keeps the Lite shadow and the KV body in step.
func TestSavePreservesLiteAndFullFields(t *testing.T) {
	ctx := context.Background()
	proxy := newEpisodicProxy()

	saved, err := proxy.Insert(ctx, episodicMemory{UserID: "u1", GroupID: "g1", Subject: "A"})
	require.NoError(t, err)

	saved.Subject = "B"
	saved.Summary = "updated"
	updated, err := proxy.Save(ctx, saved)
	require.NoError(t, err)

	got, ok, err := proxy.FindByID(ctx, updated.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "g1", got.GroupID)
	assert.Equal(t, "B", got.Subject)
	assert.Equal(t, "updated", got.Summary)
}

// TestFindRejectsUnknownField: a query mixing valid Lite
// fields under $and with one unknown field anywhere in the tree fails
// validation and names the offending field.
func TestFindRejectsUnknownField(t *testing.T) {
	ctx := context.Background()
	proxy := newEpisodicProxy()

	_, err := proxy.Find(ctx, docstore.And(
		docstore.Eq("user_id", "u"),
		docstore.Or(docstore.Eq("group_id", "g"), docstore.Eq("unknown_field", 1)),
	))
	require.Error(t, err)

	var qErr *docstore.LiteStorageQueryError
	require.ErrorAs(t, err, &qErr)
	assert.Contains(t, qErr.Fields, "unknown_field")
	assert.Contains(t, err.Error(), "unknown_field")
	assert.Contains(t, err.Error(), "declare the field as indexed")
	assert.Contains(t, err.Error(), "query_fields")
}

func TestFindAcceptsValidAndOrTree(t *testing.T) {
	ctx := context.Background()
	proxy := newEpisodicProxy()

	_, err := proxy.Insert(ctx, episodicMemory{UserID: "u1", GroupID: "g1"})
	require.NoError(t, err)

	rows, err := proxy.Find(ctx, docstore.And(
		docstore.Eq("user_id", "u1"),
		docstore.Or(docstore.Eq("group_id", "g1"), docstore.Eq("group_id", "g2")),
	))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// TestFindDropsRowsWithMissingKVBody covers the drift path of the read
// contract: a Lite row whose KV body was deleted out from under the proxy
// is excluded (and logged as drift), never stubbed.
func TestFindDropsRowsWithMissingKVBody(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore[episodicMemory, *episodicMemory]()
	kv := kvstore.NewInMemory()
	proxy := docstore.NewDualProxy[episodicMemory, *episodicMemory](docs, kv)

	saved, err := proxy.Insert(ctx, episodicMemory{UserID: "u1", GroupID: "g1"})
	require.NoError(t, err)

	_, err = kv.Delete(ctx, saved.ID)
	require.NoError(t, err)

	rows, err := proxy.Find(ctx, docstore.Eq("user_id", "u1"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, ok, err := proxy.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRemovesLiteAndFull(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore[episodicMemory, *episodicMemory]()
	kv := kvstore.NewInMemory()
	proxy := docstore.NewDualProxy[episodicMemory, *episodicMemory](docs, kv)

	saved, err := proxy.Insert(ctx, episodicMemory{UserID: "u1", GroupID: "g1"})
	require.NoError(t, err)

	existed, err := proxy.HardDelete(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok, err := proxy.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, present, err := kv.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.False(t, present)
}

// TestFullStorageModeKeepsFullRecordInDocStore exercises the
// FULL_STORAGE_MODE toggle: with full storage on, the document-store row
// carries the complete record, and reads still serve Full bodies from
// the KV.
func TestFullStorageModeKeepsFullRecordInDocStore(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore[episodicMemory, *episodicMemory]()
	kv := kvstore.NewInMemory()
	proxy := docstore.NewDualProxy[episodicMemory, *episodicMemory](docs, kv).WithFullStorage(true)

	saved, err := proxy.Insert(ctx, episodicMemory{UserID: "u1", GroupID: "g1", Subject: "kept"})
	require.NoError(t, err)

	row, ok, err := docs.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", row.Subject)

	got, ok, err := proxy.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", got.Subject)
}

// TestReadCacheServesRepeatReadsAndInvalidatesOnWrite: a cached FindByID
// result is evicted by a Save through the same proxy, so readers never
// see a stale Full body.
func TestReadCacheServesRepeatReadsAndInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore[episodicMemory, *episodicMemory]()
	kv := kvstore.NewInMemory()

	cache, err := docstore.NewReadCache[episodicMemory](64)
	require.NoError(t, err)
	proxy := docstore.NewDualProxy[episodicMemory, *episodicMemory](docs, kv).WithCache(cache)

	saved, err := proxy.Insert(ctx, episodicMemory{UserID: "u1", GroupID: "g1", Summary: "v1"})
	require.NoError(t, err)

	got, ok, err := proxy.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", got.Summary)

	got.Summary = "v2"
	_, err = proxy.Save(ctx, got)
	require.NoError(t, err)

	again, ok, err := proxy.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", again.Summary)
}

func TestLiteProjectionOmitsFullOnlyFields(t *testing.T) {
	docs := docstore.NewMemStore[episodicMemory, *episodicMemory]()
	kv := kvstore.NewInMemory()
	proxy := docstore.NewDualProxy[episodicMemory, *episodicMemory](docs, kv)

	ctx := context.Background()
	saved, err := proxy.Insert(ctx, episodicMemory{UserID: "u1", GroupID: "g1", Subject: "hidden"})
	require.NoError(t, err)

	lite, ok, err := docs.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, lite.Subject, "subject must not leak into the document store's Lite row")

	raw, present, err := kv.Get(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, present)

	var full map[string]any
	require.NoError(t, json.Unmarshal(raw, &full))
	assert.Equal(t, "hidden", full["subject"])
}
