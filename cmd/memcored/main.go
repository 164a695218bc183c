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

// Command memcored wires the persistence substrate up and tears it down
// again. It exposes no HTTP surface of its own: the ingest handlers,
// extraction pipeline, and retrieval ranking live in other services and
// are expected to embed pkg/lifespan the same way.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/evermemos/memcore/pkg/lifespan"
	"github.com/evermemos/memcore/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := klog.Background()
	ctx = klog.NewContext(ctx, logger)

	rt, err := lifespan.Start(ctx, lifespan.Config{})
	if err != nil {
		logger.Error(err, "lifespan start failed")
		os.Exit(1)
	}

	logger.Info("memcore runtime started", "kv_backend", rt.KV.Kind())
	metrics.StartLogging(ctx, time.Minute)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rt.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "shutdown flush failed")
		os.Exit(1)
	}
}
