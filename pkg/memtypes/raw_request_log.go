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

// SyncStatus is the three-state accumulation marker on RawRequestLog.
type SyncStatus int

const (
	// SyncStatusLogged means the request handler has persisted the raw
	// message; no downstream commitment yet.
	SyncStatusLogged SyncStatus = -1
	// SyncStatusAccumulating means the caller has confirmed the message
	// belongs to an active extraction window.
	SyncStatusAccumulating SyncStatus = 0
	// SyncStatusConsumed means the extraction window for this group has
	// drained and the message has been incorporated into derived memory.
	SyncStatusConsumed SyncStatus = 1
)

// RawRequestLog is the per-group append-only accumulation log entry. It is
// never deleted in the happy path, only consumed.
type RawRequestLog struct {
	SystemFields

	GroupID           string     `json:"group_id" lite:"indexed"`
	RequestID         string     `json:"request_id" lite:"indexed"`
	UserID            string     `json:"user_id" lite:"indexed"`
	EventID           string     `json:"event_id" lite:"indexed"`
	MessageID         string     `json:"message_id" lite:"indexed"`
	MessageCreateTime time.Time  `json:"message_create_time" lite:"indexed"`
	SyncStatus        SyncStatus `json:"sync_status" lite:"indexed"`

	Content     string   `json:"content"`
	Sender      string   `json:"sender"`
	SenderName  string   `json:"sender_name"`
	Role        string   `json:"role"`
	ReferList   []string `json:"refer_list"`
	RawInput    any      `json:"raw_input"`
	RawInputStr string   `json:"raw_input_str"`
	Version     string   `json:"version"`
	Endpoint    string   `json:"endpoint"`
	Method      string   `json:"method"`
	URL         string   `json:"url"`
}

func init() {
	litefield.MustRegister(reflect.TypeOf(RawRequestLog{}))
}
