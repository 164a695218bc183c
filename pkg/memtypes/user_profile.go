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

	"github.com/evermemos/memcore/pkg/litefield"
)

// UserProfile is the accumulated behavioral/preference profile for a user
// within a conversation group. At most one row exists per (user_id,
// group_id).
type UserProfile struct {
	SystemFields

	UserID  string `json:"user_id" lite:"indexed"`
	GroupID string `json:"group_id" lite:"indexed"`

	ProfileData        map[string]any `json:"profile_data"`
	Scenario           string         `json:"scenario"`
	Confidence         float64        `json:"confidence"`
	Version            string         `json:"version"`
	ClusterIDs         []string       `json:"cluster_ids"`
	MemcellCount       int            `json:"memcell_count"`
	LastUpdatedCluster string         `json:"last_updated_cluster"`
}

// CompositeIndexes names the composite unique key (user_id, group_id) so
// litefield's derivation rule 4 includes both fields in the Lite set (they
// already are, via their own lite:"indexed" tags, but the declaration
// keeps the composite relationship explicit).
func (UserProfile) CompositeIndexes() [][]string {
	return [][]string{{"user_id", "group_id"}}
}

// UniqueKeyValues reports the composite uniqueness constraint.
func (u UserProfile) UniqueKeyValues() map[string]string {
	return map[string]string{"user_id": u.UserID, "group_id": u.GroupID}
}

func init() {
	litefield.MustRegister(reflect.TypeOf(UserProfile{}))
}
