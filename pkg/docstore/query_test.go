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
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermemos/memcore/pkg/docstore"
	"github.com/evermemos/memcore/pkg/litefield"
)

type queryTestDoc struct {
	ID      string `json:"id" lite:"system"`
	UserID  string `json:"user_id" lite:"indexed"`
	GroupID string `json:"group_id" lite:"indexed"`
	Secret  string `json:"secret"`
}

func queryTestSchema() litefield.Schema {
	return litefield.Extract(reflect.TypeOf(queryTestDoc{}))
}

// TestValidateAcceptsNestedIndexedFields: every Lite field
// reference, however deeply nested under $and/$or/$not, passes.
func TestValidateAcceptsNestedIndexedFields(t *testing.T) {
	schema := queryTestSchema()
	expr := docstore.And(
		docstore.Eq("user_id", "u1"),
		docstore.Not(docstore.Or(
			docstore.Eq("group_id", "g1"),
			docstore.In("group_id", "g2", "g3"),
		)),
	)
	assert.NoError(t, docstore.Validate(expr, schema))
}

// TestValidateRejectsNestedUnknownField: an $elemMatch deep inside a
// nested $and/$or tree, whose array field and inner field are both
// unknown, still fails, naming both fields.
func TestValidateRejectsNestedUnknownField(t *testing.T) {
	schema := queryTestSchema()
	expr := docstore.And(
		docstore.Eq("user_id", "u1"),
		docstore.Or(
			docstore.Eq("group_id", "g1"),
			docstore.ElemMatch("tags", docstore.Eq("secret", "x")),
		),
	)

	err := docstore.Validate(expr, schema)
	require.Error(t, err)

	var qErr *docstore.LiteStorageQueryError
	require.ErrorAs(t, err, &qErr)
	assert.Contains(t, qErr.Fields, "tags")
	assert.Contains(t, qErr.Fields, "secret")
}

func TestMatchesEvaluatesAndOrNot(t *testing.T) {
	doc := map[string]any{"user_id": "u1", "group_id": "g1"}

	assert.True(t, docstore.Matches(docstore.And(
		docstore.Eq("user_id", "u1"),
		docstore.Eq("group_id", "g1"),
	), doc))

	assert.False(t, docstore.Matches(docstore.And(
		docstore.Eq("user_id", "u1"),
		docstore.Eq("group_id", "g2"),
	), doc))

	assert.True(t, docstore.Matches(docstore.Not(docstore.Eq("group_id", "g2")), doc))

	assert.True(t, docstore.Matches(docstore.Or(
		docstore.Eq("group_id", "g2"),
		docstore.In("user_id", "u0", "u1"),
	), doc))
}

func TestMatchesGtComparesTimestampsLexically(t *testing.T) {
	doc := map[string]any{"created_at": "2026-02-01T00:00:00Z"}
	assert.True(t, docstore.Matches(docstore.Gt("created_at", "2026-01-01T00:00:00Z"), doc))
	assert.False(t, docstore.Matches(docstore.Gt("created_at", "2026-03-01T00:00:00Z"), doc))
}
