package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/store"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisClient("", "", 0); err == nil {
		t.Fatalf("expected error for empty addr")
	}

	mr := miniredis.RunT(t)
	rdb, err := NewRedisClient(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestRedisRecorder_TodayAndTotals(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rec := NewRedisRecorder(rdb)
	ctx := context.Background()

	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	rec.ObserveSubmission(ctx, 1, false, store.MailEventDelivered, now)
	rec.ObserveSubmission(ctx, 1, false, store.MailEventBounced, now)
	rec.ObserveSubmission(ctx, 1, true, store.MailEventSpam, now)
	rec.ObserveSubmission(ctx, 1, false, store.MailEventDelivered, yesterday)
	rec.ObserveSubmission(ctx, 2, false, store.MailEventDelivered, now)

	today, ok, err := rec.Today(ctx, 1, now)
	if err != nil || !ok {
		t.Fatalf("Today: ok=%v err=%v", ok, err)
	}
	if today.Submissions != 3 || today.Spam != 1 || today.Delivered != 1 || today.Failed != 1 {
		t.Fatalf("unexpected today counts: %+v", today)
	}

	total, ok, err := rec.Total(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("Total: ok=%v err=%v", ok, err)
	}
	if total.Submissions != 4 || total.Delivered != 2 {
		t.Fatalf("unexpected totals: %+v", total)
	}

	series, err := rec.Series(ctx, 1, yesterday, now)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(series) != 2 || series[0].Submissions != 1 || series[1].Submissions != 3 {
		t.Fatalf("unexpected series: %+v", series)
	}
}

func TestRedisRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var rec *RedisRecorder
	rec.ObserveSubmission(context.Background(), 1, false, store.MailEventDelivered, time.Now())

	if _, ok, err := rec.Today(context.Background(), 1, time.Now()); ok || err != nil {
		t.Fatalf("nil recorder must report ok=false, err=nil")
	}
	if _, ok, err := rec.Total(context.Background(), 1); ok || err != nil {
		t.Fatalf("nil recorder must report ok=false, err=nil")
	}
}
