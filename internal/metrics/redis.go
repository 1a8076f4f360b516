package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/store"
	"github.com/redis/go-redis/v9"
)

// RedisRecorder keeps cheap daily counters per project so the dashboard can
// show today's traffic without scanning the submissions table. A nil recorder
// is valid and records nothing.
type RedisRecorder struct {
	rdb    *redis.Client
	dayTTL time.Duration
}

type RecorderOption func(*RedisRecorder)

func WithDayTTL(ttl time.Duration) RecorderOption {
	return func(r *RedisRecorder) {
		if ttl > 0 {
			r.dayTTL = ttl
		}
	}
}

func NewRedisRecorder(rdb *redis.Client, opts ...RecorderOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:    rdb,
		dayTTL: 90 * 24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ObserveSubmission records one intake attempt. mailEvent is one of the
// store.MailEvent* values, or empty when no mail log was written.
func (r *RedisRecorder) ObserveSubmission(ctx context.Context, projectID int, spam bool, mailEvent string, ts time.Time) {
	if r == nil || r.rdb == nil {
		return
	}
	date := ts.UTC().Format("2006-01-02")

	pipe := r.rdb.Pipeline()
	expire := map[string]time.Duration{}

	subsDayKey := fmt.Sprintf("metrics:submissions:%d:%s", projectID, date)
	pipe.Incr(ctx, subsDayKey)
	expire[subsDayKey] = r.dayTTL
	pipe.Incr(ctx, fmt.Sprintf("metrics:submissions:%d:total", projectID))

	if spam {
		spamDayKey := fmt.Sprintf("metrics:spam:%d:%s", projectID, date)
		pipe.Incr(ctx, spamDayKey)
		expire[spamDayKey] = r.dayTTL
		pipe.Incr(ctx, fmt.Sprintf("metrics:spam:%d:total", projectID))
	}

	switch mailEvent {
	case store.MailEventDelivered:
		key := fmt.Sprintf("metrics:delivered:%d:%s", projectID, date)
		pipe.Incr(ctx, key)
		expire[key] = r.dayTTL
		pipe.Incr(ctx, fmt.Sprintf("metrics:delivered:%d:total", projectID))
	case store.MailEventBounced, store.MailEventBlocked:
		key := fmt.Sprintf("metrics:failed:%d:%s", projectID, date)
		pipe.Incr(ctx, key)
		expire[key] = r.dayTTL
		pipe.Incr(ctx, fmt.Sprintf("metrics:failed:%d:total", projectID))
	}

	_, _ = pipe.Exec(ctx)
	r.expireKeys(ctx, expire)
}

func (r *RedisRecorder) expireKeys(ctx context.Context, keys map[string]time.Duration) {
	if r == nil || r.rdb == nil || len(keys) == 0 {
		return
	}
	pipe := r.rdb.Pipeline()
	for k, ttl := range keys {
		if strings.TrimSpace(k) == "" || ttl <= 0 {
			continue
		}
		pipe.Expire(ctx, k, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

type DayCounts struct {
	Submissions int64 `json:"submissions"`
	Spam        int64 `json:"spam"`
	Delivered   int64 `json:"delivered"`
	Failed      int64 `json:"failed"`
}

func (r *RedisRecorder) Today(ctx context.Context, projectID int, now time.Time) (DayCounts, bool, error) {
	if r == nil || r.rdb == nil {
		return DayCounts{}, false, nil
	}
	date := now.UTC().Format("2006-01-02")

	pipe := r.rdb.Pipeline()
	subsCmd := pipe.Get(ctx, fmt.Sprintf("metrics:submissions:%d:%s", projectID, date))
	spamCmd := pipe.Get(ctx, fmt.Sprintf("metrics:spam:%d:%s", projectID, date))
	deliveredCmd := pipe.Get(ctx, fmt.Sprintf("metrics:delivered:%d:%s", projectID, date))
	failedCmd := pipe.Get(ctx, fmt.Sprintf("metrics:failed:%d:%s", projectID, date))
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return DayCounts{}, true, err
	}

	var out DayCounts
	out.Submissions, _ = subsCmd.Int64()
	out.Spam, _ = spamCmd.Int64()
	out.Delivered, _ = deliveredCmd.Int64()
	out.Failed, _ = failedCmd.Int64()
	return out, true, nil
}

func (r *RedisRecorder) Total(ctx context.Context, projectID int) (DayCounts, bool, error) {
	if r == nil || r.rdb == nil {
		return DayCounts{}, false, nil
	}

	pipe := r.rdb.Pipeline()
	subsCmd := pipe.Get(ctx, fmt.Sprintf("metrics:submissions:%d:total", projectID))
	spamCmd := pipe.Get(ctx, fmt.Sprintf("metrics:spam:%d:total", projectID))
	deliveredCmd := pipe.Get(ctx, fmt.Sprintf("metrics:delivered:%d:total", projectID))
	failedCmd := pipe.Get(ctx, fmt.Sprintf("metrics:failed:%d:total", projectID))
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return DayCounts{}, true, err
	}

	var out DayCounts
	out.Submissions, _ = subsCmd.Int64()
	out.Spam, _ = spamCmd.Int64()
	out.Delivered, _ = deliveredCmd.Int64()
	out.Failed, _ = failedCmd.Int64()
	return out, true, nil
}

type BucketCount struct {
	Bucket      string `json:"bucket"`
	Submissions int64  `json:"submissions"`
}

// Series returns daily submission counts between start and end inclusive.
func (r *RedisRecorder) Series(ctx context.Context, projectID int, start, end time.Time) ([]BucketCount, error) {
	if r == nil || r.rdb == nil {
		return nil, nil
	}
	start = start.UTC()
	end = end.UTC()
	if end.Before(start) {
		start, end = end, start
	}

	var out []BucketCount
	cur := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !cur.After(last) {
		b := cur.Format("2006-01-02")
		n, err := r.rdb.Get(ctx, fmt.Sprintf("metrics:submissions:%d:%s", projectID, b)).Int64()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		out = append(out, BucketCount{Bucket: b, Submissions: n})
		cur = cur.AddDate(0, 0, 1)
	}
	return out, nil
}
