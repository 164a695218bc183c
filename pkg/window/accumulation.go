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

// Package window implements the accumulation log's conditional state
// machine and the per-request status channel.
package window

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/evermemos/memcore/pkg/docstore"
	"github.com/evermemos/memcore/pkg/memtypes"
)

const lockShardCount = 64

// RequestLogRepository wraps a docstore.DualProxy[RawRequestLog] and
// implements the accumulation log's conditional update primitives. Each
// operation is guarded by a per-group_id lock drawn from a fixed table of
// shards (xxhash over group_id), avoiding one global lock while keeping
// each group's sync_status transitions strictly monotonic.
type RequestLogRepository struct {
	proxy *docstore.DualProxy[memtypes.RawRequestLog, *memtypes.RawRequestLog]
	locks [lockShardCount]sync.Mutex
}

// NewRequestLogRepository wraps proxy.
func NewRequestLogRepository(proxy *docstore.DualProxy[memtypes.RawRequestLog, *memtypes.RawRequestLog]) *RequestLogRepository {
	return &RequestLogRepository{proxy: proxy}
}

func (r *RequestLogRepository) lockFor(groupID string) *sync.Mutex {
	shard := xxhash.Sum64String(groupID) % lockShardCount
	return &r.locks[shard]
}

// ConfirmAccumulationByMessageIDs advances sync_status from Logged to
// Accumulating for exactly the rows matching group_id, message_id ∈ ids,
// and sync_status = Logged. A slow concurrent ingest racing on the same
// group never advances a row outside this precise set.
func (r *RequestLogRepository) ConfirmAccumulationByMessageIDs(ctx context.Context, groupID string, messageIDs []string) (int, error) {
	lock := r.lockFor(groupID)
	lock.Lock()
	defer lock.Unlock()

	wanted := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = struct{}{}
	}

	rows, err := r.proxy.Find(ctx, docstore.And(
		docstore.Eq("group_id", groupID),
		docstore.Eq("sync_status", int(memtypes.SyncStatusLogged)),
	))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		if _, ok := wanted[row.MessageID]; !ok {
			continue
		}
		row.SyncStatus = memtypes.SyncStatusAccumulating
		if _, err := r.proxy.Save(ctx, row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ConfirmAccumulationByGroupID advances every Logged row for group_id to
// Accumulating, without a message-id filter. Intended only for offline
// repair; production ingest must prefer ConfirmAccumulationByMessageIDs.
func (r *RequestLogRepository) ConfirmAccumulationByGroupID(ctx context.Context, groupID string) (int, error) {
	lock := r.lockFor(groupID)
	lock.Lock()
	defer lock.Unlock()

	rows, err := r.proxy.Find(ctx, docstore.And(
		docstore.Eq("group_id", groupID),
		docstore.Eq("sync_status", int(memtypes.SyncStatusLogged)),
	))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		row.SyncStatus = memtypes.SyncStatusAccumulating
		if _, err := r.proxy.Save(ctx, row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// MarkAsUsedByGroupID advances every row for group_id whose sync_status is
// Logged or Accumulating, and whose message_id is not in excludeMessageIDs,
// to Consumed, draining the window once its extraction has completed.
func (r *RequestLogRepository) MarkAsUsedByGroupID(ctx context.Context, groupID string, excludeMessageIDs []string) (int, error) {
	lock := r.lockFor(groupID)
	lock.Lock()
	defer lock.Unlock()

	excluded := make(map[string]struct{}, len(excludeMessageIDs))
	for _, id := range excludeMessageIDs {
		excluded[id] = struct{}{}
	}

	rows, err := r.proxy.Find(ctx, docstore.And(
		docstore.Eq("group_id", groupID),
		docstore.In("sync_status", int(memtypes.SyncStatusLogged), int(memtypes.SyncStatusAccumulating)),
	))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		if _, ok := excluded[row.MessageID]; ok {
			continue
		}
		row.SyncStatus = memtypes.SyncStatusConsumed
		if _, err := r.proxy.Save(ctx, row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// FetchUnprocessed returns up to limit rows for group_id whose sync_status
// is Logged or Accumulating, ordered oldest-first by created_at. The
// extractor's primary read.
func (r *RequestLogRepository) FetchUnprocessed(ctx context.Context, groupID string, limit int) ([]memtypes.RawRequestLog, error) {
	rows, err := r.proxy.Find(ctx, docstore.And(
		docstore.Eq("group_id", groupID),
		docstore.In("sync_status", int(memtypes.SyncStatusLogged), int(memtypes.SyncStatusAccumulating)),
	))
	if err != nil {
		return nil, err
	}
	return sortAndLimit(rows, limit), nil
}

// FetchByWindow returns up to limit rows for group_id created within
// [start, end), excluding excludeMessageIDs, ordered oldest-first.
func (r *RequestLogRepository) FetchByWindow(ctx context.Context, groupID string, start, end time.Time, limit int, excludeMessageIDs []string) ([]memtypes.RawRequestLog, error) {
	rows, err := r.proxy.Find(ctx, docstore.Eq("group_id", groupID))
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(excludeMessageIDs))
	for _, id := range excludeMessageIDs {
		excluded[id] = struct{}{}
	}

	var filtered []memtypes.RawRequestLog
	for _, row := range rows {
		if row.CreatedAt.Before(start) || !row.CreatedAt.Before(end) {
			continue
		}
		if _, ok := excluded[row.MessageID]; ok {
			continue
		}
		filtered = append(filtered, row)
	}

	return sortAndLimit(filtered, limit), nil
}

func sortAndLimit(rows []memtypes.RawRequestLog, limit int) []memtypes.RawRequestLog {
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
