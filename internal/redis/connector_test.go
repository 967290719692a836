package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/npdstracker/internal/logger"
)

type fakePinger struct {
	failures int
	calls    int
}

func (f *fakePinger) Ping(ctx context.Context) *redis.StatusCmd {
	f.calls++
	cmd := redis.NewStatusCmd(ctx, "ping")
	if f.calls <= f.failures {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func testOptions() ConnectOptions {
	return ConnectOptions{
		Addr:           "localhost:6379",
		ConnectTimeout: time.Second,
		RetryInterval:  time.Millisecond,
		MaxWait:        4 * time.Millisecond,
		PingTimeout:    100 * time.Millisecond,
		WarnThreshold:  1,
	}
}

func TestWaitReadyRetries(t *testing.T) {
	p := &fakePinger{failures: 3}
	if err := waitReady(context.Background(), p, testOptions(), logger.Nop()); err != nil {
		t.Fatalf("waitReady failed: %v", err)
	}
	if p.calls != 4 {
		t.Errorf("expected 4 pings, got %d", p.calls)
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	opts := testOptions()
	opts.ConnectTimeout = 20 * time.Millisecond

	p := &fakePinger{failures: 1 << 30}
	err := waitReady(context.Background(), p, opts, logger.Nop())
	if err == nil {
		t.Fatal("expected an error")
	}
	if p.calls < 2 {
		t.Errorf("expected several attempts, got %d", p.calls)
	}
}

func TestWaitReadyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakePinger{failures: 1 << 30}
	if err := waitReady(ctx, p, testOptions(), logger.Nop()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestConnectOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ConnectOptions)
	}{
		{"no address", func(o *ConnectOptions) { o.Addr = "" }},
		{"no connect timeout", func(o *ConnectOptions) { o.ConnectTimeout = 0 }},
		{"no retry interval", func(o *ConnectOptions) { o.RetryInterval = 0 }},
		{"no max wait", func(o *ConnectOptions) { o.MaxWait = 0 }},
		{"no ping timeout", func(o *ConnectOptions) { o.PingTimeout = 0 }},
		{"negative threshold", func(o *ConnectOptions) { o.WarnThreshold = -1 }},
	}

	if err := testOptions().validate(); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			if err := opts.validate(); err == nil {
				t.Error("expected an error")
			}
			if _, err := New(context.Background(), opts, logger.Nop()); err == nil {
				t.Error("New accepted invalid options")
			}
		})
	}
}
