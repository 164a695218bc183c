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

package window_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermemos/memcore/pkg/docstore"
	"github.com/evermemos/memcore/pkg/kvstore"
	"github.com/evermemos/memcore/pkg/memtypes"
	"github.com/evermemos/memcore/pkg/window"
)

// TestIngestAndWindowConfirmation: confirming two of three
// logged messages advances exactly those two to Accumulating, leaving the
// third Logged, ordered oldest-first by created_at.
func TestIngestAndWindowConfirmation(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore[memtypes.RawRequestLog, *memtypes.RawRequestLog]()
	kv := kvstore.NewInMemory()
	proxy := docstore.NewDualProxy[memtypes.RawRequestLog, *memtypes.RawRequestLog](docs, kv)
	repo := window.NewRequestLogRepository(proxy)

	for _, mid := range []string{"m1", "m2", "m3"} {
		_, err := proxy.Insert(ctx, memtypes.RawRequestLog{
			GroupID:    "g",
			MessageID:  mid,
			SyncStatus: memtypes.SyncStatusLogged,
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	n, err := repo.ConfirmAccumulationByMessageIDs(ctx, "g", []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := repo.FetchUnprocessed(ctx, "g", 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byMessageID := map[string]memtypes.SyncStatus{}
	for _, r := range rows {
		byMessageID[r.MessageID] = r.SyncStatus
	}
	assert.Equal(t, memtypes.SyncStatusAccumulating, byMessageID["m1"])
	assert.Equal(t, memtypes.SyncStatusAccumulating, byMessageID["m2"])
	assert.Equal(t, memtypes.SyncStatusLogged, byMessageID["m3"])

	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].CreatedAt.Before(rows[i-1].CreatedAt))
	}
}

// TestWindowDrain: mark_as_used drains every remaining row to
// Consumed, emptying FetchUnprocessed.
func TestWindowDrain(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore[memtypes.RawRequestLog, *memtypes.RawRequestLog]()
	kv := kvstore.NewInMemory()
	proxy := docstore.NewDualProxy[memtypes.RawRequestLog, *memtypes.RawRequestLog](docs, kv)
	repo := window.NewRequestLogRepository(proxy)

	for _, mid := range []string{"m1", "m2", "m3"} {
		_, err := proxy.Insert(ctx, memtypes.RawRequestLog{GroupID: "g", MessageID: mid, SyncStatus: memtypes.SyncStatusLogged})
		require.NoError(t, err)
	}
	_, err := repo.ConfirmAccumulationByMessageIDs(ctx, "g", []string{"m1", "m2"})
	require.NoError(t, err)

	n, err := repo.MarkAsUsedByGroupID(ctx, "g", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := repo.FetchUnprocessed(ctx, "g", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	consumed, err := proxy.Find(ctx, docstore.And(
		docstore.Eq("group_id", "g"),
		docstore.Eq("sync_status", int(memtypes.SyncStatusConsumed)),
	))
	require.NoError(t, err)
	assert.Len(t, consumed, 3)
}

// TestSyncStatusTransitionsStayMonotonic: the observed sequence
// of transitions for a fixed message id is a prefix of {-1->0->1, -1->1}.
func TestSyncStatusTransitionsStayMonotonic(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore[memtypes.RawRequestLog, *memtypes.RawRequestLog]()
	kv := kvstore.NewInMemory()
	proxy := docstore.NewDualProxy[memtypes.RawRequestLog, *memtypes.RawRequestLog](docs, kv)
	repo := window.NewRequestLogRepository(proxy)

	_, err := proxy.Insert(ctx, memtypes.RawRequestLog{GroupID: "g", MessageID: "m1", SyncStatus: memtypes.SyncStatusLogged})
	require.NoError(t, err)

	observed := []memtypes.SyncStatus{memtypes.SyncStatusLogged}

	_, err = repo.ConfirmAccumulationByMessageIDs(ctx, "g", []string{"m1"})
	require.NoError(t, err)
	rows, err := repo.FetchUnprocessed(ctx, "g", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	observed = append(observed, rows[0].SyncStatus)

	_, err = repo.MarkAsUsedByGroupID(ctx, "g", nil)
	require.NoError(t, err)
	all, err := proxy.Find(ctx, docstore.Eq("group_id", "g"))
	require.NoError(t, err)
	require.Len(t, all, 1)
	observed = append(observed, all[0].SyncStatus)

	assert.Equal(t, []memtypes.SyncStatus{
		memtypes.SyncStatusLogged,
		memtypes.SyncStatusAccumulating,
		memtypes.SyncStatusConsumed,
	}, observed)
}

// TestConfirmAccumulationIsPreciseToMessageIDs verifies a concurrent
// group's rows are untouched by a confirm call scoped to a different group.
func TestConfirmAccumulationIsPreciseToMessageIDs(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemStore[memtypes.RawRequestLog, *memtypes.RawRequestLog]()
	kv := kvstore.NewInMemory()
	proxy := docstore.NewDualProxy[memtypes.RawRequestLog, *memtypes.RawRequestLog](docs, kv)
	repo := window.NewRequestLogRepository(proxy)

	_, err := proxy.Insert(ctx, memtypes.RawRequestLog{GroupID: "g1", MessageID: "m1", SyncStatus: memtypes.SyncStatusLogged})
	require.NoError(t, err)
	_, err = proxy.Insert(ctx, memtypes.RawRequestLog{GroupID: "g2", MessageID: "m1", SyncStatus: memtypes.SyncStatusLogged})
	require.NoError(t, err)

	n, err := repo.ConfirmAccumulationByMessageIDs(ctx, "g1", []string{"m1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	g2rows, err := repo.FetchUnprocessed(ctx, "g2", 10)
	require.NoError(t, err)
	require.Len(t, g2rows, 1)
	assert.Equal(t, memtypes.SyncStatusLogged, g2rows[0].SyncStatus)
}
