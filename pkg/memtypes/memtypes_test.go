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

package memtypes_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evermemos/memcore/pkg/litefield"
	"github.com/evermemos/memcore/pkg/memtypes"
)

func TestRawRequestLogSchemaHasAccumulationFields(t *testing.T) {
	schema := litefield.Extract(reflect.TypeOf(memtypes.RawRequestLog{}))
	for _, f := range []string{"group_id", "message_id", "sync_status"} {
		assert.True(t, schema.Has(f))
	}
	assert.False(t, schema.Has("content"))
}

func TestEpisodicMemoryLiteVectorFieldsExcludeDisplayFields(t *testing.T) {
	fields := memtypes.EpisodicMemory{}.LiteVectorFields()
	assert.Contains(t, fields, "vector")
	assert.Contains(t, fields, "user_id")
	assert.NotContains(t, fields, "summary")
}

func TestConversationStatusUniqueKeyIsGroupID(t *testing.T) {
	cs := memtypes.ConversationStatus{GroupID: "g1"}
	assert.Equal(t, map[string]string{"group_id": "g1"}, cs.UniqueKeyValues())
}

func TestUserProfileUniqueKeyIsComposite(t *testing.T) {
	up := memtypes.UserProfile{UserID: "u1", GroupID: "g1"}
	assert.Equal(t, map[string]string{"user_id": "u1", "group_id": "g1"}, up.UniqueKeyValues())
}

func TestEventLogAndForesightCarryParentLinkage(t *testing.T) {
	evSchema := litefield.Extract(reflect.TypeOf(memtypes.EventLogRecord{}))
	assert.True(t, evSchema.Has("parent_id"))
	assert.True(t, evSchema.Has("parent_type"))

	fsSchema := litefield.Extract(reflect.TypeOf(memtypes.ForesightRecord{}))
	assert.True(t, fsSchema.Has("parent_id"))
	assert.True(t, fsSchema.Has("parent_type"))
}
