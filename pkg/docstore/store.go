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

// Package docstore is the document-store half of the dual-storage
// coordinator: the indexed Lite shadow lives here, while the Full body
// lives in kvstore. Every repository is written against *DualProxy[T],
// never against a raw Store[T].
package docstore

import (
	"context"
	"time"
)

// Identifiable is implemented by every dual-storage entity's pointer
// receiver (memtypes.SystemFields embeds the fields these methods read and
// write). The document store mints the id and timestamps; a Store[T]
// implementation copies them back through these setters.
type Identifiable interface {
	GetID() string
	SetID(id string)
	GetCreatedAt() time.Time
	SetCreatedAt(t time.Time)
	GetUpdatedAt() time.Time
	SetUpdatedAt(t time.Time)
}

// SoftDeletable is implemented by entities whose class declares soft
// delete (memtypes.SoftDelete's promoted methods). MemStore uses this to
// decide whether Delete soft-deletes or must hard-delete instead.
type SoftDeletable interface {
	IsDeleted() bool
	MarkDeleted(at time.Time, by, id string)
	ClearDeleted()
}

// Store is the document-store model contract a backing implementation
// must satisfy. docstore.NewMemStore[T]() is the in-memory reference
// implementation; DualProxy[T] is what every repository is actually
// written against.
type Store[T any] interface {
	// Insert assigns an id and audit timestamps to doc and persists it.
	Insert(ctx context.Context, doc T) (T, error)
	// InsertWithID persists doc under a caller-supplied id instead of
	// minting a new one, stamping audit timestamps as Insert does. Used
	// by the startup validator to reconstruct a Lite row from an
	// authoritative KV body without losing the original id.
	InsertWithID(ctx context.Context, id string, doc T) (T, error)
	// Save updates an existing row in place by its id.
	Save(ctx context.Context, doc T) (T, error)
	// Delete soft-deletes a row if the class supports it, else hard-deletes.
	Delete(ctx context.Context, id string) (bool, error)
	// Restore reverses a soft delete.
	Restore(ctx context.Context, id string) error
	// HardDelete physically removes a row regardless of soft-delete support.
	HardDelete(ctx context.Context, id string) (bool, error)
	// FindByID returns the row with the given id, or (zero, false) if absent.
	FindByID(ctx context.Context, id string) (T, bool, error)
	// Find returns every row matching expr, in the store's natural order.
	Find(ctx context.Context, expr Expr) ([]T, error)
	// DeleteMany deletes every row matching expr and returns the count.
	DeleteMany(ctx context.Context, expr Expr) (int, error)
}
