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

package memtypes

import (
	"reflect"
	"time"

	"github.com/evermemos/memcore/pkg/litefield"
)

// ConversationMeta is static descriptive information about a conversation
// group. It is upserted by GroupID and updated in place, never versioned.
type ConversationMeta struct {
	SystemFields

	GroupID string `json:"group_id" lite:"indexed"`
	Scene   string `json:"scene" lite:"indexed"`

	Name            string         `json:"name"`
	Description     string         `json:"description"`
	SceneDesc       string         `json:"scene_desc"`
	UserDetails     map[string]any `json:"user_details"`
	Tags            []string       `json:"tags"`
	DefaultTimezone string         `json:"default_timezone"`
	Version         string         `json:"version"`
}

func init() {
	litefield.MustRegister(reflect.TypeOf(ConversationMeta{}))
}

// ConversationStatus tracks the windows the extractor has already
// processed for a group. Exactly one row exists per GroupID; its
// three timestamps follow last-write-wins per field, deliberately
// without monotonicity enforcement.
type ConversationStatus struct {
	SystemFields

	GroupID string `json:"group_id" lite:"indexed"`

	OldMsgStartTime time.Time `json:"old_msg_start_time"`
	NewMsgStartTime time.Time `json:"new_msg_start_time"`
	LastMemcellTime time.Time `json:"last_memcell_time"`
}

// UniqueKeyValues reports the composite uniqueness constraint: at
// most one conversation-status row per group_id.
func (c ConversationStatus) UniqueKeyValues() map[string]string {
	return map[string]string{"group_id": c.GroupID}
}

func init() {
	litefield.MustRegister(reflect.TypeOf(ConversationStatus{}))
}
