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
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChainBackend models the remote stream as a plain map, so tests can
// exercise Chain's retry/async/flush plumbing without a real CLI binary.
type fakeChainBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeChainBackend() *fakeChainBackend {
	return &fakeChainBackend{data: make(map[string]string)}
}

func (f *fakeChainBackend) runner() chainCommandRunner {
	return func(_ context.Context, _ time.Duration, args []string) (string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch args[0] {
		case "kv-write":
			key, value := "", ""
			for i := 0; i < len(args)-1; i++ {
				switch args[i] {
				case "--stream-keys":
					key = args[i+1]
				case "--stream-values":
					value = args[i+1]
				}
			}
			f.data[key] = value
			return "ok", nil

		case "kv-read":
			keys := splitCSV(lastArg(args, "--stream-keys"))
			resp := make(map[string]string, len(keys))
			for _, k := range keys {
				resp[k] = f.data[k]
			}
			out, err := json.Marshal(resp)
			return string(out), err
		}

		return "", fmt.Errorf("unsupported fake command: %v", args)
	}
}

func lastArg(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func newTestChain(t *testing.T) (*Chain, *fakeChainBackend) {
	t.Helper()
	t.Setenv(ZeroGWalletEnvVar, "test-wallet-key")

	backend := newFakeChainBackend()
	c, err := NewChain(ChainConfig{
		Nodes:    "node-a",
		ReadNode: "node-a",
		RPCURL:   "http://localhost:1234",
		StreamID: "stream-1",
	})
	require.NoError(t, err)
	c.run = backend.runner()
	return c, backend
}

func TestChainPutFlushGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestChain(t)
	t.Cleanup(func() { _ = c.Close(ctx) })

	require.NoError(t, c.Put(ctx, "doc-1", []byte(`{"a":1}`)))
	require.NoError(t, c.Flush(ctx))

	v, ok, err := c.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(v))
}

func TestChainDeleteIsTombstoneAfterFlush(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestChain(t)
	t.Cleanup(func() { _ = c.Close(ctx) })

	require.NoError(t, c.Put(ctx, "doc-1", []byte(`{"a":1}`)))
	_, err := c.Delete(ctx, "doc-1")
	require.NoError(t, err)
	require.NoError(t, c.Flush(ctx))

	_, ok, err := c.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChainEncodeDecodeValueRoundTrip(t *testing.T) {
	original := []byte(`{"b": 2, "a": 1}`)
	encoded, err := encodeChainValue(original)
	require.NoError(t, err)

	decoded, err := decodeChainValue(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(original), string(decoded))
}

func TestChainRequiresWalletEnvVar(t *testing.T) {
	t.Setenv(ZeroGWalletEnvVar, "")
	_, err := NewChain(ChainConfig{
		Nodes: "a", ReadNode: "a", RPCURL: "http://x", StreamID: "s",
	})
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestChainFlushIsIdempotentWhenEmpty(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestChain(t)
	t.Cleanup(func() { _ = c.Close(ctx) })

	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Flush(ctx))
}
