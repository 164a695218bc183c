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

// CoreMemory is a versioned, user-scoped profile document. Only one row
// per user carries IsLatest=true; prior versions are retained for history.
type CoreMemory struct {
	SystemFields

	UserID   string `json:"user_id" lite:"indexed"`
	Version  int    `json:"version" lite:"indexed"`
	IsLatest bool   `json:"is_latest" lite:"indexed"`

	Content string `json:"content"`
}

func init() {
	litefield.MustRegister(reflect.TypeOf(CoreMemory{}))
}
