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
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Save and Restore when no row with the given id
// exists; lookups such as FindByID and Find report absence with false or an
// empty slice instead.
var ErrNotFound = errors.New("docstore: not found")

// DuplicateKeyError is returned by Insert when a class declares a unique
// composite key and a row with the same key values already exists.
// Upsert catches this internally and re-finds-then-updates, so callers of
// Upsert never see it.
type DuplicateKeyError struct {
	Class string
	Keys  map[string]string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("docstore: duplicate key for %s: %v", e.Class, e.Keys)
}

// LiteStorageQueryError is fatal and never swallowed: it names every field
// a query referenced that is not part of the class's Lite schema, and both
// remedies.
type LiteStorageQueryError struct {
	Fields []string
}

func (e *LiteStorageQueryError) Error() string {
	return fmt.Sprintf(
		"docstore: query referenced field(s) not in the Lite schema: %s; "+
			"declare the field as indexed on the class, or add it to the class's query_fields",
		strings.Join(e.Fields, ", "),
	)
}
