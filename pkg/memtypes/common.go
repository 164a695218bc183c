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

// Package memtypes declares the entity classes the persistence substrate
// knows about. Every dual-storage class embeds SystemFields (the id and
// audit timestamps the document store mints) and, where it supports soft
// delete, SoftDelete. Lite-ness of every other field is carried entirely
// by the `lite:"indexed"` / `lite:"query"` struct tags litefield reads.
package memtypes

import "time"

// SystemFields are present on every dual-storage entity. The document
// store mints ID and stamps the timestamps on insert/save; callers never
// set them directly.
type SystemFields struct {
	ID         string    `json:"id" lite:"system"`
	CreatedAt  time.Time `json:"created_at" lite:"system"`
	UpdatedAt  time.Time `json:"updated_at" lite:"system"`
	RevisionID string    `json:"revision_id" lite:"system"`
}

// GetID returns the entity's id.
func (s *SystemFields) GetID() string { return s.ID }

// SetID sets the entity's id, called by the document store on insert.
func (s *SystemFields) SetID(id string) { s.ID = id }

// GetCreatedAt returns the creation timestamp.
func (s *SystemFields) GetCreatedAt() time.Time { return s.CreatedAt }

// SetCreatedAt stamps the creation timestamp, called by the document store
// on insert.
func (s *SystemFields) SetCreatedAt(t time.Time) { s.CreatedAt = t }

// GetUpdatedAt returns the last-modified timestamp.
func (s *SystemFields) GetUpdatedAt() time.Time { return s.UpdatedAt }

// SetUpdatedAt stamps the last-modified timestamp, called by the document
// store on every insert/save.
func (s *SystemFields) SetUpdatedAt(t time.Time) { s.UpdatedAt = t }

// SoftDelete is embedded by classes that support Restore/HardDelete rather
// than only physical delete.
type SoftDelete struct {
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty"`
	DeletedID *string    `json:"deleted_id,omitempty"`
}

// IsDeleted reports whether the row is currently soft-deleted.
func (s *SoftDelete) IsDeleted() bool { return s.DeletedAt != nil }

// MarkDeleted soft-deletes the row.
func (s *SoftDelete) MarkDeleted(at time.Time, by, id string) {
	s.DeletedAt = &at
	s.DeletedBy = &by
	s.DeletedID = &id
}

// ClearDeleted reverses a soft delete.
func (s *SoftDelete) ClearDeleted() {
	s.DeletedAt = nil
	s.DeletedBy = nil
	s.DeletedID = nil
}

// UniqueKeyed is implemented by classes whose document store row must be
// unique per a composite key (conversation status, user profile, cluster
// state). docstore.MemStore checks this on Insert and returns
// DuplicateKeyError on a conflict.
type UniqueKeyed interface {
	UniqueKeyValues() map[string]string
}
