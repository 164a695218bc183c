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

// ClusterState is the clustering engine's persisted incremental state for
// a conversation group. Exactly one row exists per GroupID.
type ClusterState struct {
	SystemFields

	GroupID string `json:"group_id" lite:"indexed"`

	EventIDs         []string             `json:"event_ids"`
	Timestamps       []int64              `json:"timestamps"`
	ClusterIDs       []string             `json:"cluster_ids"`
	EventIDToCluster map[string]string    `json:"eventid_to_cluster"`
	NextClusterIdx   int                  `json:"next_cluster_idx"`
	ClusterCentroids map[string][]float32 `json:"cluster_centroids"`
	ClusterCounts    map[string]int       `json:"cluster_counts"`
	ClusterLastTS    map[string]int64     `json:"cluster_last_ts"`
}

// UniqueKeyValues reports the uniqueness constraint: at most one
// cluster-state row per group_id.
func (c ClusterState) UniqueKeyValues() map[string]string {
	return map[string]string{"group_id": c.GroupID}
}

func init() {
	litefield.MustRegister(reflect.TypeOf(ClusterState{}))
}
