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

package kvstore_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/evermemos/memcore/pkg/kvstore"
)

func newTestRedis(t *testing.T) *kvstore.Redis {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	store, err := kvstore.NewRedis(&kvstore.RedisConfig{Address: server.Addr()})
	require.NoError(t, err)
	return store
}

func TestRedisRoundTrip(t *testing.T) {
	testStoreRoundTrip(t, newTestRedis(t))
}

func TestRedisBatchAndIterate(t *testing.T) {
	testStoreBatchAndIterate(t, newTestRedis(t))
}

func TestRedisKind(t *testing.T) {
	require.Equal(t, "redis", newTestRedis(t).Kind())
}
