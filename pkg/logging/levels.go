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

// Package logging defines the klog verbosity levels shared across memcore
// packages so call sites agree on what counts as DEBUG versus TRACE noise.
package logging

// Verbosity levels passed to klog.FromContext(ctx).V(level).
const (
	// DEBUG covers per-call traces useful while diagnosing drift or a
	// misbehaving backend: one line per KV op, per proxy write, etc.
	DEBUG = 2
	// TRACE covers per-key/per-row detail, noisy enough to stay off by
	// default even in a debug build.
	TRACE = 4
)
