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

package window

import "context"

// TenantKeyPrefixProvider supplies the namespace used to scope cluster
// cache keys for the status channel. Enterprise builds derive this from
// request headers (org/space identifiers); DefaultTenantKeyPrefixProvider
// is the single-tenant default.
type TenantKeyPrefixProvider interface {
	Prefix(ctx context.Context) string
}

// DefaultTenantKeyPrefixProvider always returns "default".
type DefaultTenantKeyPrefixProvider struct{}

func (DefaultTenantKeyPrefixProvider) Prefix(context.Context) string { return "default" }
