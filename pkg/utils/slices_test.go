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

package utils_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermemos/memcore/pkg/utils"
)

func TestSliceMap(t *testing.T) {
	cases := []struct {
		name  string
		slice []string
		fn    func(string) string
		want  []string
	}{
		{
			name:  "nil stays nil",
			slice: nil,
			want:  nil,
		},
		{
			name:  "empty stays empty",
			slice: []string{},
			want:  []string{},
		},
		{
			name:  "prefix ids into kv keys",
			slice: []string{"id-1", "id-2"},
			fn: func(id string) string {
				return "episodic_memory_vectors:" + id
			},
			want: []string{"episodic_memory_vectors:id-1", "episodic_memory_vectors:id-2"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, utils.SliceMap(c.slice, c.fn))
		})
	}
}

func TestSliceMapE(t *testing.T) {
	cases := []struct {
		name      string
		slice     []string
		fn        func(string) (int, error)
		want      []int
		wantError bool
	}{
		{
			name:  "nil stays nil",
			slice: nil,
			want:  nil,
		},
		{
			name:  "empty stays empty",
			slice: []string{},
			want:  []int{},
		},
		{
			name:      "first bad element stops the loop",
			slice:     []string{"1", "a", "3"},
			fn:        strconv.Atoi,
			wantError: true,
		},
		{
			name:  "all elements convert",
			slice: []string{"-1", "0", "1"},
			fn:    strconv.Atoi,
			want:  []int{-1, 0, 1},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := utils.SliceMapE(c.slice, c.fn)
			if c.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}
