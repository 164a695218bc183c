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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/klog/v2"
)

const (
	// ZeroGWalletEnvVar is the only place the chain wallet secret may come
	// from. It is never accepted through configuration and never logged.
	ZeroGWalletEnvVar = "ZEROG_WALLET_KEY"

	defaultChainTimeout    = 30 * time.Second
	defaultChainMaxRetries = 3
	chainUploaderWorkers   = 1
)

// ChainConfig holds the configuration for the content-addressed,
// append-only chain-backed KV backend (modelled on 0G-Storage).
type ChainConfig struct {
	// Nodes is the comma-separated set of write endpoints.
	Nodes string
	// ReadNode is the endpoint used for reads.
	ReadNode string
	// RPCURL is the chain RPC endpoint used to submit writes.
	RPCURL string
	// StreamID is the unified stream all documents share.
	StreamID string
	// Timeout bounds a single CLI invocation.
	Timeout time.Duration
	// MaxRetries is the total number of attempts of a single CLI
	// invocation, the first attempt included.
	MaxRetries int
	// ClientBinary is the CLI executable name, overridable for tests.
	ClientBinary string
}

// chainCommandRunner abstracts subprocess execution so tests can stub it
// out without a real CLI binary on PATH.
type chainCommandRunner func(ctx context.Context, timeout time.Duration, args []string) (string, error)

// Chain is a KV backend over a content-addressed, append-only store reached
// through an external command-line client. Values must not contain literal
// newlines or commas, so writers Base64-encode the compact JSON body before
// submission and readers decode it. Deletion is modelled by writing the
// empty string.
type Chain struct {
	cfg        ChainConfig
	walletKey  string
	run        chainCommandRunner
	queue      workqueue.TypedRateLimitingInterface[*chainWrite]
	wg         sync.WaitGroup
	workersWG  sync.WaitGroup
	shutdownMu sync.Mutex
	shutdown   bool
}

var _ Store = (*Chain)(nil)
var _ Flusher = (*Chain)(nil)

// Flusher is implemented by KV backends whose writes are asynchronous from
// the caller's point of view. Flush blocks until every enqueued write is
// durable. Lifespan shutdown must call Flush before the process exits.
type Flusher interface {
	Flush(ctx context.Context) error
}

type chainWrite struct {
	key   string
	value []byte // nil means delete (write empty string)
}

// NewChain constructs a Chain KV backend. The wallet secret is read from
// ZeroGWalletEnvVar; it is a ConfigError for it to be absent.
func NewChain(cfg ChainConfig) (*Chain, error) {
	if cfg.Nodes == "" || cfg.ReadNode == "" || cfg.RPCURL == "" || cfg.StreamID == "" {
		return nil, &ConfigError{Backend: "zerog", Reason: "nodes, read node, rpc url, and stream id are all required"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChainTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultChainMaxRetries
	}
	if cfg.ClientBinary == "" {
		cfg.ClientBinary = "0g-storage-client"
	}

	wallet := os.Getenv(ZeroGWalletEnvVar)
	if wallet == "" {
		return nil, &ConfigError{Backend: "zerog", Reason: ZeroGWalletEnvVar + " environment variable is required"}
	}

	c := &Chain{
		cfg:       cfg,
		walletKey: wallet,
		queue:     workqueue.NewTypedRateLimitingQueue(workqueue.DefaultTypedControllerRateLimiter[*chainWrite]()),
	}
	c.run = c.execCommand

	c.workersWG.Add(chainUploaderWorkers)
	for i := 0; i < chainUploaderWorkers; i++ {
		go c.uploader()
	}

	return c, nil
}

func (c *Chain) Kind() string { return "zerog" }

func (c *Chain) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := c.run(ctx, c.cfg.Timeout, []string{
		"kv-read", "--node", c.cfg.ReadNode, "--stream-id", c.cfg.StreamID, "--stream-keys", key,
	})
	if err != nil {
		klog.FromContext(ctx).Error(err, "chain kv-read failed", "key", key)
		return nil, false, nil //nolint:nilerr // transient backend failures are logged, not propagated
	}

	var resp map[string]string
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		klog.FromContext(ctx).Error(err, "chain kv-read response malformed", "key", key)
		return nil, false, nil
	}

	encoded, ok := resp[key]
	if !ok || encoded == "" {
		return nil, false, nil
	}

	decoded, err := decodeChainValue(encoded)
	if err != nil {
		klog.FromContext(ctx).Error(err, "chain value decode failed", "key", key)
		return nil, false, nil
	}

	return decoded, true, nil
}

// Put enqueues the write for the background uploader and returns
// immediately. Flush blocks until every enqueued write is durable.
func (c *Chain) Put(_ context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	c.enqueue(&chainWrite{key: key, value: cp})
	return nil
}

// Delete is modelled as writing the empty string, enqueued like any other
// write.
func (c *Chain) Delete(_ context.Context, key string) (bool, error) {
	c.enqueue(&chainWrite{key: key, value: nil})
	return true, nil
}

func (c *Chain) enqueue(w *chainWrite) {
	c.shutdownMu.Lock()
	defer c.shutdownMu.Unlock()
	if c.shutdown {
		return
	}
	c.wg.Add(1)
	c.queue.Add(w)
}

func (c *Chain) uploader() {
	defer c.workersWG.Done()
	for {
		w, shutdown := c.queue.Get()
		if shutdown {
			return
		}

		c.processWrite(w)
		c.queue.Forget(w)
		c.queue.Done(w)
		c.wg.Done()
	}
}

func (c *Chain) processWrite(w *chainWrite) {
	ctx := context.Background()

	encoded := ""
	if w.value != nil {
		enc, err := encodeChainValue(w.value)
		if err != nil {
			klog.FromContext(ctx).Error(err, "chain value encode failed", "key", w.key)
			return
		}
		encoded = enc
	}

	_, err := c.run(ctx, c.cfg.Timeout, []string{
		"kv-write", "--node", c.cfg.Nodes, "--key", c.walletKey,
		"--stream-id", c.cfg.StreamID, "--stream-keys", w.key,
		"--stream-values", encoded, "--url", c.cfg.RPCURL,
	})
	if err != nil {
		klog.FromContext(ctx).Error(err, "chain kv-write failed", "key", w.key)
	}
}

func (c *Chain) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	result, err := c.run(ctx, c.cfg.Timeout, []string{
		"kv-read", "--node", c.cfg.ReadNode, "--stream-id", c.cfg.StreamID,
		"--stream-keys", strings.Join(keys, ","),
	})
	if err != nil {
		klog.FromContext(ctx).Error(err, "chain batch kv-read failed", "count", len(keys))
		return out, nil //nolint:nilerr // see Get
	}

	var resp map[string]string
	if err := json.Unmarshal([]byte(result), &resp); err != nil {
		klog.FromContext(ctx).Error(err, "chain batch kv-read response malformed")
		return out, nil
	}

	for k, encoded := range resp {
		if encoded == "" {
			continue // tombstone: treated as absent
		}
		decoded, err := decodeChainValue(encoded)
		if err != nil {
			klog.FromContext(ctx).Error(err, "chain value decode failed in batch", "key", k)
			continue
		}
		out[k] = decoded
	}

	return out, nil
}

func (c *Chain) BatchDelete(_ context.Context, keys []string) (int, error) {
	for _, k := range keys {
		c.enqueue(&chainWrite{key: k, value: nil})
	}
	return len(keys), nil
}

// Iterate is not offered by the chain backend: the stream has no
// full-scan primitive, only point/batch reads by key.
func (c *Chain) Iterate(_ context.Context, _ func(key string, value []byte) error) error {
	return fmt.Errorf("kvstore: chain backend does not support full iteration")
}

// Flush blocks until every enqueued write has been submitted to the chain.
func (c *Chain) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new writes, flushes pending ones, and shuts down
// the uploader workers. Safe to call once during process shutdown.
func (c *Chain) Close(ctx context.Context) error {
	c.shutdownMu.Lock()
	c.shutdown = true
	c.shutdownMu.Unlock()

	err := c.Flush(ctx)
	c.queue.ShutDown()
	c.workersWG.Wait()
	return err
}

// execCommand runs the CLI client with exponential backoff on timeout or
// non-zero exit, bounded by cfg.MaxRetries.
func (c *Chain) execCommand(ctx context.Context, timeout time.Duration, args []string) (string, error) {
	var result string

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(callCtx, c.cfg.ClientBinary, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("chain client command failed: %w: %s", err, stderr.String())
		}

		result = strings.TrimSpace(stdout.String())
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries-1))
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}

	return result, nil
}

// encodeChainValue compacts the JSON body and Base64-encodes it so it
// contains neither a literal newline nor a comma.
func encodeChainValue(value []byte) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return "", fmt.Errorf("kvstore: compact chain value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(compact.Bytes()), nil
}

// decodeChainValue reverses encodeChainValue and validates the result is
// well-formed JSON.
func decodeChainValue(encoded string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("kvstore: base64 decode chain value: %w", err)
	}
	if !json.Valid(decoded) {
		return nil, fmt.Errorf("kvstore: decoded chain value is not valid JSON")
	}
	return decoded, nil
}
