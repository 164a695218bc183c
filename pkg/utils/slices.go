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

// Package utils holds small generic helpers shared across memcore's
// packages; the dual-storage proxies use SliceMap to turn Lite-row slices
// into the id and KV-key slices their batch lookups take.
package utils

// SliceMap returns fn applied to every element of slice, preserving
// order. A nil slice maps to nil, not an empty slice.
func SliceMap[In, Out any](slice []In, fn func(In) Out) []Out {
	if slice == nil {
		return nil
	}

	out := make([]Out, len(slice))
	for i, elt := range slice {
		out[i] = fn(elt)
	}

	return out
}

// SliceMapE is SliceMap for fallible fn: the first error stops the loop
// and is returned with a nil result.
func SliceMapE[In, Out any](slice []In, fn func(In) (Out, error)) ([]Out, error) {
	if slice == nil {
		return nil, nil
	}

	out := make([]Out, 0, len(slice))
	for i := range slice {
		res, err := fn(slice[i])
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}

	return out, nil
}
