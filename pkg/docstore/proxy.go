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
	"errors"
	"fmt"
	"reflect"

	"k8s.io/klog/v2"

	"github.com/evermemos/memcore/pkg/kvstore"
	"github.com/evermemos/memcore/pkg/litefield"
	"github.com/evermemos/memcore/pkg/utils"
)

var errDrift = errors.New("docstore: lite row present but kv body missing")

// DualProxy enforces the dual-storage discipline: every repository is
// written against *DualProxy[T], never against the raw Store[T]. Writes
// split a Full document into a Lite shadow (document store) and a Full
// body (KV); reads join the Lite id stream with a batch KV lookup.
type DualProxy[T any, PT interface {
	*T
	Identifiable
}] struct {
	docs        Store[T]
	kv          kvstore.Store
	schema      litefield.Schema
	cache       *ReadCache[T]
	fullStorage bool
}

// NewDualProxy derives T's Lite schema once and wraps docs + kv.
func NewDualProxy[T any, PT interface {
	*T
	Identifiable
}](docs Store[T], kv kvstore.Store) *DualProxy[T, PT] {
	var zero T
	return &DualProxy[T, PT]{
		docs:   docs,
		kv:     kv,
		schema: litefield.Extract(reflect.TypeOf(zero)),
	}
}

// WithCache attaches a read-through cache to the KV half of the read path.
func (p *DualProxy[T, PT]) WithCache(cache *ReadCache[T]) *DualProxy[T, PT] {
	p.cache = cache
	return p
}

// WithFullStorage controls the FULL_STORAGE_MODE toggle: when enabled,
// writes store the complete record in the document store in addition to
// the KV, instead of only the Lite projection. The read path is unchanged
// either way; Full bodies are always served from the KV.
func (p *DualProxy[T, PT]) WithFullStorage(enabled bool) *DualProxy[T, PT] {
	p.fullStorage = enabled
	return p
}

// Insert builds the Lite shadow, writes it to the document store
// (capturing the minted id and timestamps), then writes the Full body to
// the KV at that id. Step 2 (KV write) is sequential with step 1, not
// atomic with it: on KV failure the document-store row is not rolled
// back, and drift is left for the startup validator to repair.
func (p *DualProxy[T, PT]) Insert(ctx context.Context, full T) (T, error) {
	shadow, err := p.shadowOf(full)
	if err != nil {
		var zero T
		return zero, err
	}

	saved, err := p.docs.Insert(ctx, shadow)
	if err != nil {
		return saved, err
	}

	pFull := PT(&full)
	pSaved := PT(&saved)
	pFull.SetID(pSaved.GetID())
	pFull.SetCreatedAt(pSaved.GetCreatedAt())
	pFull.SetUpdatedAt(pSaved.GetUpdatedAt())

	if err := p.putFull(ctx, pFull.GetID(), full); err != nil {
		return full, err
	}
	return full, nil
}

// Upsert behaves like Insert, except a DuplicateKeyError on a class with a
// declared unique composite key is caught and translated into a
// re-find-then-update: callers of Upsert never see DuplicateKeyError.
func (p *DualProxy[T, PT]) Upsert(ctx context.Context, full T) (T, error) {
	saved, err := p.Insert(ctx, full)

	var dupErr *DuplicateKeyError
	if !errors.As(err, &dupErr) {
		return saved, err
	}

	pFull := PT(&full)
	uk, ok := any(pFull).(UniqueKeyed)
	if !ok {
		return saved, err
	}

	var exprs []Expr
	for field, value := range uk.UniqueKeyValues() {
		exprs = append(exprs, Eq(field, value))
	}

	existingRows, ferr := p.docs.Find(ctx, And(exprs...))
	if ferr != nil {
		return saved, ferr
	}
	if len(existingRows) == 0 {
		return saved, err
	}

	existing := existingRows[0]
	pExisting := PT(&existing)
	pFull.SetID(pExisting.GetID())
	pFull.SetCreatedAt(pExisting.GetCreatedAt())

	return p.Save(ctx, full)
}

// Save updates an existing Full document: Lite shadow first, then KV body.
func (p *DualProxy[T, PT]) Save(ctx context.Context, full T) (T, error) {
	shadow, err := p.shadowOf(full)
	if err != nil {
		var zero T
		return zero, err
	}
	pFull := PT(&full)
	pShadow := PT(&shadow)
	pShadow.SetID(pFull.GetID())

	saved, err := p.docs.Save(ctx, shadow)
	if err != nil {
		return saved, err
	}

	pSaved := PT(&saved)
	pFull.SetUpdatedAt(pSaved.GetUpdatedAt())

	if err := p.putFull(ctx, pFull.GetID(), full); err != nil {
		return full, err
	}
	return full, nil
}

// Delete removes the document-store row first, then the KV body, the
// mirror of the write path's ordering.
func (p *DualProxy[T, PT]) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := p.docs.Delete(ctx, id)
	if err != nil || !existed {
		return existed, err
	}
	if _, err := p.kv.Delete(ctx, id); err != nil {
		return existed, err
	}
	p.invalidate(id)
	return true, nil
}

// Restore reverses a soft delete on the document-store row only. The KV
// Full body that Delete removed is not recreated, so until the next Save
// writes it again the restored row has no KV body and reads drop it as
// drift.
func (p *DualProxy[T, PT]) Restore(ctx context.Context, id string) error {
	err := p.docs.Restore(ctx, id)
	p.invalidate(id)
	return err
}

// HardDelete physically removes both the document-store row and the KV
// body, regardless of soft-delete support.
func (p *DualProxy[T, PT]) HardDelete(ctx context.Context, id string) (bool, error) {
	existed, err := p.docs.HardDelete(ctx, id)
	if err != nil || !existed {
		return existed, err
	}
	if _, err := p.kv.Delete(ctx, id); err != nil {
		return existed, err
	}
	p.invalidate(id)
	return true, nil
}

// FindByID fetches the Lite row, then the KV Full body. A missing Lite row
// is absent; a missing KV body for a present Lite row is drift, logged and
// reported as absent per the read-path contract, never a stub.
func (p *DualProxy[T, PT]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T

	if p.cache != nil {
		if cached, ok := p.cache.Get(id); ok {
			return cached, true, nil
		}
	}

	_, ok, err := p.docs.FindByID(ctx, id)
	if err != nil || !ok {
		return zero, false, err
	}

	full, ok, err := p.loadFull(ctx, id)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		klog.FromContext(ctx).Error(errDrift, "lite row present but kv body absent", "id", id)
		return zero, false, nil
	}

	if p.cache != nil {
		p.cache.Set(id, full)
	}
	return full, true, nil
}

// Find validates expr against the Lite schema, runs it against the
// document store, then batch-loads Full bodies for every hit id. Hits
// whose KV body is missing are dropped and logged as drift.
func (p *DualProxy[T, PT]) Find(ctx context.Context, expr Expr) ([]T, error) {
	if err := Validate(expr, p.schema); err != nil {
		return nil, err
	}

	liteRows, err := p.docs.Find(ctx, expr)
	if err != nil {
		return nil, err
	}
	if len(liteRows) == 0 {
		return nil, nil
	}

	ids := utils.SliceMap(liteRows, func(row T) string { return PT(&row).GetID() })

	bodies, err := p.kv.BatchGet(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(liteRows))
	for _, id := range ids {
		raw, ok := bodies[id]
		if !ok {
			klog.FromContext(ctx).Error(errDrift, "lite row present but kv body absent", "id", id)
			continue
		}
		var full T
		if err := json.Unmarshal(raw, &full); err != nil {
			return nil, fmt.Errorf("docstore: unmarshal full body for %s: %w", id, err)
		}
		out = append(out, full)
	}
	return out, nil
}

// DeleteMany validates expr, deletes every matching document-store row,
// then best-effort removes the corresponding KV bodies.
func (p *DualProxy[T, PT]) DeleteMany(ctx context.Context, expr Expr) (int, error) {
	if err := Validate(expr, p.schema); err != nil {
		return 0, err
	}

	liteRows, err := p.docs.Find(ctx, expr)
	if err != nil {
		return 0, err
	}
	ids := utils.SliceMap(liteRows, func(row T) string { return PT(&row).GetID() })

	n, err := p.docs.DeleteMany(ctx, expr)
	if err != nil {
		return n, err
	}

	if _, err := p.kv.BatchDelete(ctx, ids); err != nil {
		klog.FromContext(ctx).Error(err, "batch kv delete failed after document deletion", "count", len(ids))
	}
	for _, id := range ids {
		p.invalidate(id)
	}
	return n, nil
}

// shadowOf is the document-store image of a write: the Lite projection in
// the canonical mode, or the complete record when full-storage mode is on.
func (p *DualProxy[T, PT]) shadowOf(full T) (T, error) {
	if p.fullStorage {
		return full, nil
	}
	return p.projectLite(full)
}

func (p *DualProxy[T, PT]) projectLite(full T) (T, error) {
	var lite T

	liteData, err := litefield.ExtractLiteData(full, p.schema)
	if err != nil {
		return lite, fmt.Errorf("docstore: project lite fields: %w", err)
	}

	raw, err := json.Marshal(liteData)
	if err != nil {
		return lite, fmt.Errorf("docstore: marshal lite projection: %w", err)
	}
	if err := json.Unmarshal(raw, &lite); err != nil {
		return lite, fmt.Errorf("docstore: unmarshal lite projection: %w", err)
	}
	return lite, nil
}

func (p *DualProxy[T, PT]) putFull(ctx context.Context, id string, full T) error {
	raw, err := json.Marshal(full)
	if err != nil {
		return fmt.Errorf("docstore: marshal full body for %s: %w", id, err)
	}
	if err := p.kv.Put(ctx, id, raw); err != nil {
		return fmt.Errorf("docstore: write full body for %s: %w", id, err)
	}
	p.invalidate(id)
	return nil
}

func (p *DualProxy[T, PT]) loadFull(ctx context.Context, id string) (T, bool, error) {
	var full T

	raw, ok, err := p.kv.Get(ctx, id)
	if err != nil || !ok {
		return full, false, err
	}
	if err := json.Unmarshal(raw, &full); err != nil {
		return full, false, fmt.Errorf("docstore: unmarshal full body for %s: %w", id, err)
	}
	return full, true, nil
}

func (p *DualProxy[T, PT]) invalidate(id string) {
	if p.cache != nil {
		p.cache.Invalidate(id)
	}
}
