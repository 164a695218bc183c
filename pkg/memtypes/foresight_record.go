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

// ForesightRecord is a prospective memory record referencing its episodic
// parent via ParentID/ParentType. Deleting the parent does not delete
// this record; no delete in memcore follows ParentID.
type ForesightRecord struct {
	SystemFields
	SoftDelete

	UserID     string    `json:"user_id" lite:"indexed"`
	GroupID    string    `json:"group_id" lite:"indexed"`
	ParentID   string    `json:"parent_id" lite:"indexed"`
	ParentType string    `json:"parent_type" lite:"indexed"`
	StartTime  time.Time `json:"start_time" lite:"indexed"`
	EndTime    time.Time `json:"end_time" lite:"indexed"`

	Content      string    `json:"content"`
	Evidence     []string  `json:"evidence"`
	UserName     string    `json:"user_name"`
	GroupName    string    `json:"group_name"`
	Participants []string  `json:"participants"`
	DurationDays float64   `json:"duration_days"`
	Extend       any       `json:"extend"`
	Vector       []float32 `json:"vector"`
	VectorModel  string    `json:"vector_model"`
}

// LiteVectorFields is the vector-index Lite projection.
func (ForesightRecord) LiteVectorFields() []string {
	return []string{"id", "user_id", "group_id", "parent_id", "parent_type", "start_time", "end_time", "vector"}
}

func init() {
	litefield.MustRegister(reflect.TypeOf(ForesightRecord{}))
}
