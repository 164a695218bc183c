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

// EpisodicMemory is a derived memory record born on extraction. Event log
// and foresight records reference it via ParentID; deleting it does not
// remove them, since no delete in memcore follows ParentID.
type EpisodicMemory struct {
	SystemFields
	SoftDelete

	UserID         string    `json:"user_id" lite:"indexed"`
	GroupID        string    `json:"group_id" lite:"indexed"`
	Timestamp      time.Time `json:"timestamp" lite:"indexed"`
	Keywords       []string  `json:"keywords" lite:"indexed"`
	LinkedEntities []string  `json:"linked_entities" lite:"indexed"`

	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Subject      string    `json:"subject"`
	Episode      string    `json:"episode"`
	Participants []string  `json:"participants"`
	Type         string    `json:"type"`
	Extend       any       `json:"extend"`
	Vector       []float32 `json:"vector"`
	VectorModel  string    `json:"vector_model"`
}

// LiteVectorFields is the vector-index Lite projection: the vector column
// plus the columns used in filter expressions and a compact metadata view.
// indexstore.IndexDualProxy writes exactly this subset into the backend.
func (EpisodicMemory) LiteVectorFields() []string {
	return []string{"id", "user_id", "group_id", "timestamp", "keywords", "vector"}
}

func init() {
	litefield.MustRegister(reflect.TypeOf(EpisodicMemory{}))
}
