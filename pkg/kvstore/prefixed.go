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

package kvstore

import (
	"context"
	"fmt"
	"strings"
)

// Prefixed gives one entity class its own logical keyspace over a shared
// physical Store, the same "{namespace}:{id}" scheme indexstore applies to
// vector/text collections, generalized so every document class can share
// one physical KV connection (the lifespan "primary bean") without one
// class's reconciliation pass mistaking another class's rows for its own.
type Prefixed struct {
	inner  Store
	prefix string
}

var _ Store = (*Prefixed)(nil)

// NewPrefixed wraps inner so every key is namespaced under prefix.
func NewPrefixed(inner Store, prefix string) *Prefixed {
	return &Prefixed{inner: inner, prefix: prefix}
}

func (p *Prefixed) key(k string) string { return fmt.Sprintf("%s:%s", p.prefix, k) }

func (p *Prefixed) strip(k string) (string, bool) {
	full := p.prefix + ":"
	if !strings.HasPrefix(k, full) {
		return "", false
	}
	return k[len(full):], true
}

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.inner.Get(ctx, p.key(key))
}

func (p *Prefixed) Put(ctx context.Context, key string, value []byte) error {
	return p.inner.Put(ctx, p.key(key), value)
}

func (p *Prefixed) Delete(ctx context.Context, key string) (bool, error) {
	return p.inner.Delete(ctx, p.key(key))
}

func (p *Prefixed) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = p.key(k)
	}
	raw, err := p.inner.BatchGet(ctx, prefixed)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		if bare, ok := p.strip(k); ok {
			out[bare] = v
		}
	}
	return out, nil
}

func (p *Prefixed) BatchDelete(ctx context.Context, keys []string) (int, error) {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = p.key(k)
	}
	return p.inner.BatchDelete(ctx, prefixed)
}

// Iterate only visits keys namespaced under this prefix, handing fn the
// bare (unprefixed) key so callers never see the namespace.
func (p *Prefixed) Iterate(ctx context.Context, fn func(key string, value []byte) error) error {
	return p.inner.Iterate(ctx, func(key string, value []byte) error {
		bare, ok := p.strip(key)
		if !ok {
			return nil
		}
		return fn(bare, value)
	})
}

func (p *Prefixed) Kind() string { return p.inner.Kind() }

// Flush delegates to inner when inner is a Flusher, so a Prefixed view
// over a chain-backed KV still satisfies lifespan's shutdown check.
func (p *Prefixed) Flush(ctx context.Context) error {
	if f, ok := p.inner.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}
