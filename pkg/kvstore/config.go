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
	"os"

	"k8s.io/klog/v2"
)

// Environment variable names read by FromEnv.
const (
	EnvKVStorageType = "KV_STORAGE_TYPE"

	EnvRedisAddress = "REDIS_ADDRESS"

	EnvZeroGNodes    = "ZEROG_NODES"
	EnvZeroGReadNode = "ZEROG_READ_NODE"
	EnvZeroGRPCURL   = "ZEROG_RPC_URL"
	EnvZeroGStreamID = "ZEROG_STREAM_ID"
)

// FromEnv builds the KV substrate named by EnvKVStorageType ("inmemory",
// "redis", or "zerog"), defaulting to "inmemory" when unset or
// unrecognized. An unrecognized value is logged at the default level; an
// unset one only at verbosity 1. The returned Store is always wrapped with
// Instrumented.
func FromEnv(ctx context.Context) (Store, error) {
	kind := os.Getenv(EnvKVStorageType)

	switch kind {
	case "redis":
		cfg := DefaultRedisConfig()
		if addr := os.Getenv(EnvRedisAddress); addr != "" {
			cfg.Address = addr
		}
		store, err := NewRedis(cfg)
		if err != nil {
			return nil, err
		}
		return NewInstrumented(store), nil

	case "zerog":
		cfg := ChainConfig{
			Nodes:      os.Getenv(EnvZeroGNodes),
			ReadNode:   os.Getenv(EnvZeroGReadNode),
			RPCURL:     os.Getenv(EnvZeroGRPCURL),
			StreamID:   os.Getenv(EnvZeroGStreamID),
			Timeout:    defaultChainTimeout,
			MaxRetries: defaultChainMaxRetries,
		}
		store, err := NewChain(cfg)
		if err != nil {
			return nil, err
		}
		return NewInstrumented(store), nil

	case "", "inmemory":
		if kind == "" {
			klog.FromContext(ctx).V(1).Info(EnvKVStorageType + " unset, defaulting to inmemory")
		}
		return NewInstrumented(NewInMemory()), nil

	default:
		klog.FromContext(ctx).Info("unrecognized "+EnvKVStorageType+", defaulting to inmemory", "value", kind)
		return NewInstrumented(NewInMemory()), nil
	}
}
