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

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const statusChannelTTL = time.Hour

// StatusUpdate carries the fields of one status-channel touch. Status is
// always written; every other field is written only when non-nil, so a
// later touch (e.g. "success" carrying only EndTime) never erases a field
// an earlier touch recorded (e.g. the "start" touch's StartTime).
type StatusUpdate struct {
	Status       string
	URL          *string
	Method       *string
	HTTPCode     *int
	TimeMS       *int64
	ErrorMessage *string
	StartTime    *time.Time
	EndTime      *time.Time
}

// RequestStatus is the per-request hash record read back from the cluster
// cache, accumulated across every touch of the request's lifecycle.
type RequestStatus struct {
	Status       string
	URL          string
	Method       string
	HTTPCode     int
	TimeMS       int64
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
	// TTLSeconds is populated only on Get, from the key's remaining TTL.
	TTLSeconds int64
}

// StatusChannel maintains best-effort, TTL-bounded status records at
// request_status:{tenant_key_prefix}:{request_id}. The tenant key prefix
// is resolved per call from the injected provider. Write failures are
// logged, never propagated: a status-channel outage must not affect the
// caller that owned the original request.
type StatusChannel struct {
	client  *redis.Client
	tenants TenantKeyPrefixProvider
}

// NewStatusChannel wraps an already-connected Redis client. A nil tenants
// provider falls back to DefaultTenantKeyPrefixProvider.
func NewStatusChannel(client *redis.Client, tenants TenantKeyPrefixProvider) *StatusChannel {
	if tenants == nil {
		tenants = DefaultTenantKeyPrefixProvider{}
	}
	return &StatusChannel{client: client, tenants: tenants}
}

func statusKey(tenantKeyPrefix, requestID string) string {
	return fmt.Sprintf("request_status:%s:%s", tenantKeyPrefix, requestID)
}

// Write HSETs only the fields populated on update and EXPIREs the key, in
// a single pipeline.
func (c *StatusChannel) Write(ctx context.Context, requestID string, update StatusUpdate) {
	key := statusKey(c.tenants.Prefix(ctx), requestID)

	fields := map[string]any{"status": update.Status}
	if update.URL != nil {
		fields["url"] = *update.URL
	}
	if update.Method != nil {
		fields["method"] = *update.Method
	}
	if update.HTTPCode != nil {
		fields["http_code"] = *update.HTTPCode
	}
	if update.TimeMS != nil {
		fields["time_ms"] = *update.TimeMS
	}
	if update.ErrorMessage != nil {
		fields["error_message"] = *update.ErrorMessage
	}
	if update.StartTime != nil {
		fields["start_time"] = update.StartTime.Format(time.RFC3339Nano)
	}
	if update.EndTime != nil {
		fields["end_time"] = update.EndTime.Format(time.RFC3339Nano)
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, statusChannelTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		klog.FromContext(ctx).Error(err, "status channel write failed", "key", key)
	}
}

// Get reads the hash and its remaining TTL in a single pipeline, coercing
// numeric fields back to integers. ok is false if the key is absent.
func (c *StatusChannel) Get(ctx context.Context, requestID string) (RequestStatus, bool) {
	key := statusKey(c.tenants.Prefix(ctx), requestID)

	pipe := c.client.Pipeline()
	hgetall := pipe.HGetAll(ctx, key)
	ttl := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		klog.FromContext(ctx).Error(err, "status channel read failed", "key", key)
		return RequestStatus{}, false
	}

	fields, err := hgetall.Result()
	if err != nil || len(fields) == 0 {
		return RequestStatus{}, false
	}

	httpCode, _ := strconv.Atoi(fields["http_code"])
	timeMS, _ := strconv.ParseInt(fields["time_ms"], 10, 64)
	startTime, _ := time.Parse(time.RFC3339Nano, fields["start_time"])
	endTime, _ := time.Parse(time.RFC3339Nano, fields["end_time"])

	return RequestStatus{
		Status:       fields["status"],
		URL:          fields["url"],
		Method:       fields["method"],
		HTTPCode:     httpCode,
		TimeMS:       timeMS,
		ErrorMessage: fields["error_message"],
		StartTime:    startTime,
		EndTime:      endTime,
		TTLSeconds:   int64(ttl.Val().Seconds()),
	}, true
}
