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

// Package lifespan wires the process-wide KV singleton, every entity's
// repository, and the startup validator into one Runtime, and tears them
// down again on shutdown.
package lifespan

import (
	"context"
	"os"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	"github.com/evermemos/memcore/pkg/docstore"
	"github.com/evermemos/memcore/pkg/indexstore"
	"github.com/evermemos/memcore/pkg/kvstore"
	"github.com/evermemos/memcore/pkg/memtypes"
	"github.com/evermemos/memcore/pkg/metrics"
	"github.com/evermemos/memcore/pkg/validator"
	"github.com/evermemos/memcore/pkg/window"
)

// Environment variable names read by Start.
const (
	EnvBootstrapMode      = "BOOTSTRAP_MODE"
	EnvStartupSyncEnabled = "STARTUP_SYNC_ENABLED"
	EnvStartupSyncDays    = "STARTUP_SYNC_DAYS"
	EnvStartupSyncMilvus  = "STARTUP_SYNC_MILVUS"
	EnvStartupSyncES      = "STARTUP_SYNC_ES"
	EnvFullStorageMode    = "FULL_STORAGE_MODE"
)

// Logical base names for the vector collections and text indices; the KV
// keys the index proxies form are "{name}:{id}".
const (
	episodicVectorCollection  = "episodic_memory_vectors"
	eventLogVectorCollection  = "event_log_vectors"
	foresightVectorCollection = "foresight_vectors"

	episodicTextIndex  = "episodic_memory_text"
	eventLogTextIndex  = "event_log_text"
	foresightTextIndex = "foresight_text"
)

var (
	primaryOnce sync.Once
	primaryKV   kvstore.Store
	primaryErr  error
)

// primaryBean returns the process-wide KV singleton, building it from
// kvstore.FromEnv on first call. Every Runtime in the process, and every
// repository it wires, shares this one instance.
func primaryBean(ctx context.Context) (kvstore.Store, error) {
	primaryOnce.Do(func() {
		primaryKV, primaryErr = kvstore.FromEnv(ctx)
	})
	return primaryKV, primaryErr
}

// Config overrides lifespan.Start's environment-driven defaults. The zero
// value reads everything from the environment.
type Config struct {
	// SkipValidator forces the startup validator off regardless of
	// BOOTSTRAP_MODE/STARTUP_SYNC_ENABLED. Tests use this to avoid the
	// background goroutine racing the test's own assertions.
	SkipValidator bool
	// TenantKeyPrefixProvider is injected into the status channel, which
	// resolves it per call to scope its cache keys; defaults to
	// window.DefaultTenantKeyPrefixProvider.
	TenantKeyPrefixProvider window.TenantKeyPrefixProvider
	// ClusterCache is the pooled cluster-cache connection backing the
	// request-status channel. When nil, Start falls back to the primary
	// KV's own connection if that KV is Redis-backed; otherwise the
	// status channel is left unwired and a log line records why.
	ClusterCache *redis.Client
}

// Runtime is the fully wired set of repositories a process needs, plus
// the handle Shutdown uses to drain the KV before exit.
type Runtime struct {
	KV kvstore.Store

	RequestLogs          *window.RequestLogRepository
	Conversations        *docstore.DualProxy[memtypes.ConversationMeta, *memtypes.ConversationMeta]
	ConversationStatuses *docstore.DualProxy[memtypes.ConversationStatus, *memtypes.ConversationStatus]
	ClusterStates        *docstore.DualProxy[memtypes.ClusterState, *memtypes.ClusterState]
	UserProfiles         *docstore.DualProxy[memtypes.UserProfile, *memtypes.UserProfile]
	CoreMemories         *docstore.DualProxy[memtypes.CoreMemory, *memtypes.CoreMemory]
	EpisodicMemories     *docstore.DualProxy[memtypes.EpisodicMemory, *memtypes.EpisodicMemory]
	EventLog             *docstore.DualProxy[memtypes.EventLogRecord, *memtypes.EventLogRecord]
	Foresight            *docstore.DualProxy[memtypes.ForesightRecord, *memtypes.ForesightRecord]

	EpisodicVectors  *indexstore.IndexDualProxy[memtypes.EpisodicMemory]
	EventLogVectors  *indexstore.IndexDualProxy[memtypes.EventLogRecord]
	ForesightVectors *indexstore.IndexDualProxy[memtypes.ForesightRecord]

	EpisodicTexts  *indexstore.IndexDualProxy[memtypes.EpisodicMemory]
	EventLogTexts  *indexstore.IndexDualProxy[memtypes.EventLogRecord]
	ForesightTexts *indexstore.IndexDualProxy[memtypes.ForesightRecord]

	// StatusChannel is the per-request status record in the cluster
	// cache. The ingest handlers embedding this Runtime touch it on
	// request start/success/failure; it is nil when no cluster cache is
	// reachable (see Config.ClusterCache).
	StatusChannel *window.StatusChannel

	TenantKeyPrefixProvider window.TenantKeyPrefixProvider

	validatorDone <-chan []validator.SyncResult
}

// Start selects the KV backend (once per process), wires every
// repository over it, and, unless BOOTSTRAP_MODE is true or
// STARTUP_SYNC_ENABLED is false, launches the startup validator as a
// detached goroutine that never blocks this call. It returns once wiring
// completes; the validator pass itself runs concurrently in the
// background and never delays startup.
func Start(ctx context.Context, cfg Config) (*Runtime, error) {
	metrics.Register()

	kv, err := primaryBean(ctx)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{KV: kv, TenantKeyPrefixProvider: cfg.TenantKeyPrefixProvider}
	if rt.TenantKeyPrefixProvider == nil {
		rt.TenantKeyPrefixProvider = window.DefaultTenantKeyPrefixProvider{}
	}

	if cache := clusterCacheClient(cfg, kv); cache != nil {
		rt.StatusChannel = window.NewStatusChannel(cache, rt.TenantKeyPrefixProvider)
	} else {
		klog.FromContext(ctx).Info("no cluster cache available, request-status channel unwired",
			"kv_backend", kv.Kind())
	}

	// Each entity class gets its own logical keyspace over the one shared
	// physical KV connection, so one class's reconciliation pass never
	// mistakes another class's rows for its own.
	requestLogKV := kvstore.NewPrefixed(kv, "raw_request_log")
	conversationKV := kvstore.NewPrefixed(kv, "conversation_meta")
	conversationStatusKV := kvstore.NewPrefixed(kv, "conversation_status")
	clusterStateKV := kvstore.NewPrefixed(kv, "cluster_state")
	userProfileKV := kvstore.NewPrefixed(kv, "user_profile")
	coreMemoryKV := kvstore.NewPrefixed(kv, "core_memory")
	episodicKV := kvstore.NewPrefixed(kv, "episodic_memory")
	eventLogKV := kvstore.NewPrefixed(kv, "event_log_record")
	foresightKV := kvstore.NewPrefixed(kv, "foresight_record")

	requestLogDocs := docstore.NewMemStore[memtypes.RawRequestLog, *memtypes.RawRequestLog]()
	conversationDocs := docstore.NewMemStore[memtypes.ConversationMeta, *memtypes.ConversationMeta]()
	conversationStatusDocs := docstore.NewMemStore[memtypes.ConversationStatus, *memtypes.ConversationStatus]()
	clusterStateDocs := docstore.NewMemStore[memtypes.ClusterState, *memtypes.ClusterState]()
	userProfileDocs := docstore.NewMemStore[memtypes.UserProfile, *memtypes.UserProfile]()
	coreMemoryDocs := docstore.NewMemStore[memtypes.CoreMemory, *memtypes.CoreMemory]()
	episodicDocs := docstore.NewMemStore[memtypes.EpisodicMemory, *memtypes.EpisodicMemory]()
	eventLogDocs := docstore.NewMemStore[memtypes.EventLogRecord, *memtypes.EventLogRecord]()
	foresightDocs := docstore.NewMemStore[memtypes.ForesightRecord, *memtypes.ForesightRecord]()

	fullStorage := fullStorageMode()

	rt.RequestLogs = window.NewRequestLogRepository(
		docstore.NewDualProxy[memtypes.RawRequestLog, *memtypes.RawRequestLog](requestLogDocs, requestLogKV).WithFullStorage(fullStorage))
	rt.Conversations = docstore.NewDualProxy[memtypes.ConversationMeta, *memtypes.ConversationMeta](conversationDocs, conversationKV).WithFullStorage(fullStorage)
	rt.ConversationStatuses = docstore.NewDualProxy[memtypes.ConversationStatus, *memtypes.ConversationStatus](conversationStatusDocs, conversationStatusKV).WithFullStorage(fullStorage)
	rt.ClusterStates = docstore.NewDualProxy[memtypes.ClusterState, *memtypes.ClusterState](clusterStateDocs, clusterStateKV).WithFullStorage(fullStorage)
	rt.UserProfiles = docstore.NewDualProxy[memtypes.UserProfile, *memtypes.UserProfile](userProfileDocs, userProfileKV).WithFullStorage(fullStorage)
	rt.CoreMemories = docstore.NewDualProxy[memtypes.CoreMemory, *memtypes.CoreMemory](coreMemoryDocs, coreMemoryKV).WithFullStorage(fullStorage)
	rt.EpisodicMemories = docstore.NewDualProxy[memtypes.EpisodicMemory, *memtypes.EpisodicMemory](episodicDocs, episodicKV).WithFullStorage(fullStorage)
	rt.EventLog = docstore.NewDualProxy[memtypes.EventLogRecord, *memtypes.EventLogRecord](eventLogDocs, eventLogKV).WithFullStorage(fullStorage)
	rt.Foresight = docstore.NewDualProxy[memtypes.ForesightRecord, *memtypes.ForesightRecord](foresightDocs, foresightKV).WithFullStorage(fullStorage)

	// Derived-memory classes sit on the retrieval hot path, so their
	// KV-lookup half gets a read-through cache. A cache build failure is
	// not fatal; the proxy just reads the KV directly.
	attachReadCache(ctx, rt.EpisodicMemories)
	attachReadCache(ctx, rt.EventLog)
	attachReadCache(ctx, rt.Foresight)

	episodicVectorBackend := indexstore.NewMemVectorIndex()
	eventLogVectorBackend := indexstore.NewMemVectorIndex()
	foresightVectorBackend := indexstore.NewMemVectorIndex()

	episodicTextBackend := indexstore.NewMemTextIndex()
	eventLogTextBackend := indexstore.NewMemTextIndex()
	foresightTextBackend := indexstore.NewMemTextIndex()

	// Index-proxy bodies key into the shared physical KV under the
	// collection's (or index's) own logical name, never a per-class
	// Prefixed view: the key layout is {base_collection_name}:{id}.
	rt.EpisodicVectors = indexstore.NewVectorDualProxy[memtypes.EpisodicMemory](episodicVectorCollection, episodicVectorBackend, kv)
	rt.EventLogVectors = indexstore.NewVectorDualProxy[memtypes.EventLogRecord](eventLogVectorCollection, eventLogVectorBackend, kv)
	rt.ForesightVectors = indexstore.NewVectorDualProxy[memtypes.ForesightRecord](foresightVectorCollection, foresightVectorBackend, kv)

	rt.EpisodicTexts = indexstore.NewTextDualProxy[memtypes.EpisodicMemory](episodicTextIndex, episodicTextBackend, kv)
	rt.EventLogTexts = indexstore.NewTextDualProxy[memtypes.EventLogRecord](eventLogTextIndex, eventLogTextBackend, kv)
	rt.ForesightTexts = indexstore.NewTextDualProxy[memtypes.ForesightRecord](foresightTextIndex, foresightTextBackend, kv)

	if !cfg.SkipValidator && shouldRunValidator() {
		reconcilers := []validator.Reconciler{
			validator.NewDocStoreReconciler[memtypes.RawRequestLog, *memtypes.RawRequestLog]("raw_request_log", requestLogDocs, requestLogKV),
			validator.NewDocStoreReconciler[memtypes.ConversationMeta, *memtypes.ConversationMeta]("conversation_meta", conversationDocs, conversationKV),
			validator.NewDocStoreReconciler[memtypes.ConversationStatus, *memtypes.ConversationStatus]("conversation_status", conversationStatusDocs, conversationStatusKV),
			validator.NewDocStoreReconciler[memtypes.ClusterState, *memtypes.ClusterState]("cluster_state", clusterStateDocs, clusterStateKV),
			validator.NewDocStoreReconciler[memtypes.UserProfile, *memtypes.UserProfile]("user_profile", userProfileDocs, userProfileKV),
			validator.NewDocStoreReconciler[memtypes.CoreMemory, *memtypes.CoreMemory]("core_memory", coreMemoryDocs, coreMemoryKV),
			validator.NewDocStoreReconciler[memtypes.EpisodicMemory, *memtypes.EpisodicMemory]("episodic_memory", episodicDocs, episodicKV),
			validator.NewDocStoreReconciler[memtypes.EventLogRecord, *memtypes.EventLogRecord]("event_log_record", eventLogDocs, eventLogKV),
			validator.NewDocStoreReconciler[memtypes.ForesightRecord, *memtypes.ForesightRecord]("foresight_record", foresightDocs, foresightKV),
		}
		if syncTargetEnabled(EnvStartupSyncMilvus) {
			reconcilers = append(reconcilers,
				validator.NewVectorIndexReconciler[memtypes.EpisodicMemory]("episodic_memory", episodicVectorCollection, episodicVectorBackend, kv,
					func(d memtypes.EpisodicMemory) []float32 { return d.Vector }),
				validator.NewVectorIndexReconciler[memtypes.EventLogRecord]("event_log_record", eventLogVectorCollection, eventLogVectorBackend, kv,
					func(d memtypes.EventLogRecord) []float32 { return d.Vector }),
				validator.NewVectorIndexReconciler[memtypes.ForesightRecord]("foresight_record", foresightVectorCollection, foresightVectorBackend, kv,
					func(d memtypes.ForesightRecord) []float32 { return d.Vector }),
			)
		}
		if syncTargetEnabled(EnvStartupSyncES) {
			reconcilers = append(reconcilers,
				validator.NewTextIndexReconciler[memtypes.EpisodicMemory]("episodic_memory", episodicTextIndex, episodicTextBackend, kv,
					func(d memtypes.EpisodicMemory) string { return d.Summary }),
				validator.NewTextIndexReconciler[memtypes.EventLogRecord]("event_log_record", eventLogTextIndex, eventLogTextBackend, kv,
					func(d memtypes.EventLogRecord) string { return d.AtomicFact }),
				validator.NewTextIndexReconciler[memtypes.ForesightRecord]("foresight_record", foresightTextIndex, foresightTextBackend, kv,
					func(d memtypes.ForesightRecord) string { return d.Content }),
			)
		}

		done := make(chan []validator.SyncResult, 1)
		rt.validatorDone = done
		v := validator.New(startupSyncDays(), reconcilers...)
		go func() {
			results, err := v.Run(ctx)
			if err != nil {
				klog.FromContext(ctx).Error(err, "startup validator pass failed")
			}
			done <- results
		}()
	}

	return rt, nil
}

// WaitForValidator blocks until the background validator pass launched by
// Start completes, returning its per-reconciler results. Callers that did
// not request the validator (SkipValidator, or it was disabled by
// environment) get (nil, false) immediately.
func (rt *Runtime) WaitForValidator(ctx context.Context) ([]validator.SyncResult, bool) {
	if rt.validatorDone == nil {
		return nil, false
	}
	select {
	case results := <-rt.validatorDone:
		return results, true
	case <-ctx.Done():
		return nil, false
	}
}

// Shutdown flushes the chain-backed KV (if selected) before returning, so
// queued asynchronous writes are durable before the process exits. It is
// a no-op for backends that do not implement kvstore.Flusher.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	if f, ok := rt.KV.(kvstore.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

func shouldRunValidator() bool {
	if os.Getenv(EnvBootstrapMode) == "true" {
		return false
	}
	if v := os.Getenv(EnvStartupSyncEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err == nil {
			return enabled
		}
	}
	return true
}

// clusterCacheClient resolves the connection backing the status channel:
// an injected pooled client wins; otherwise the primary KV's own
// connection is reused when that KV is Redis-backed.
func clusterCacheClient(cfg Config, kv kvstore.Store) *redis.Client {
	if cfg.ClusterCache != nil {
		return cfg.ClusterCache
	}

	unwrapped := kv
	if i, ok := unwrapped.(*kvstore.Instrumented); ok {
		unwrapped = i.Unwrap()
	}
	if r, ok := unwrapped.(*kvstore.Redis); ok {
		return r.Client()
	}
	return nil
}

const readCacheEntries = 4096

func attachReadCache[T any, PT interface {
	*T
	docstore.Identifiable
}](ctx context.Context, proxy *docstore.DualProxy[T, PT]) {
	cache, err := docstore.NewReadCache[T](readCacheEntries)
	if err != nil {
		klog.FromContext(ctx).Error(err, "read cache unavailable, reads go straight to the kv")
		return
	}
	proxy.WithCache(cache)
}

// syncTargetEnabled reads a per-target toggle (STARTUP_SYNC_MILVUS,
// STARTUP_SYNC_ES), defaulting to enabled when unset or malformed.
func syncTargetEnabled(envVar string) bool {
	v := os.Getenv(envVar)
	if v == "" {
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return enabled
}

// fullStorageMode reads FULL_STORAGE_MODE, defaulting to true.
func fullStorageMode() bool {
	v := os.Getenv(EnvFullStorageMode)
	if v == "" {
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return enabled
}

func startupSyncDays() int {
	v := os.Getenv(EnvStartupSyncDays)
	if v == "" {
		return 0
	}
	days, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return days
}
