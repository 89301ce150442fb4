package app

import (
	"context"
	"testing"
	"time"
)

func TestParseRateLimitResult(t *testing.T) {
	tests := []struct {
		name           string
		raw            interface{}
		wantCount      int
		wantRetryAfter int
		wantErr        bool
	}{
		{name: "whole seconds", raw: []interface{}{int64(3), int64(60000)}, wantCount: 3, wantRetryAfter: 60},
		{name: "partial second rounds up", raw: []interface{}{int64(1), int64(1500)}, wantCount: 1, wantRetryAfter: 2},
		{name: "zero ttl floors at one", raw: []interface{}{int64(1), int64(0)}, wantCount: 1, wantRetryAfter: 1},
		{name: "not a slice", raw: "oops", wantErr: true},
		{name: "wrong length", raw: []interface{}{int64(1)}, wantErr: true},
		{name: "count not int64", raw: []interface{}{"1", int64(60000)}, wantErr: true},
		{name: "ttl not int64", raw: []interface{}{int64(1), "60000"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, retryAfter, err := parseRateLimitResult(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got count=%d retry_after=%d", count, retryAfter)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if count != tt.wantCount || retryAfter != tt.wantRetryAfter {
				t.Fatalf("expected %d/%d, got %d/%d", tt.wantCount, tt.wantRetryAfter, count, retryAfter)
			}
		})
	}
}

func TestConsumeRateLimit_DisabledConfigurations(t *testing.T) {
	// A nil limiter, missing client, non-positive limit or window, and blank
	// identifiers all disable limiting without touching Redis.
	tests := []struct {
		name    string
		limiter *RedisTriggerRateLimiter
		scope   string
		subject string
		limit   int
		window  time.Duration
	}{
		{name: "nil limiter", limiter: nil, scope: "trigger", subject: "acct_oracle", limit: 60, window: time.Minute},
		{name: "nil client", limiter: &RedisTriggerRateLimiter{}, scope: "trigger", subject: "acct_oracle", limit: 60, window: time.Minute},
		{name: "zero limit", limiter: NewRedisTriggerRateLimiter(nil, ""), scope: "trigger", subject: "acct_oracle", limit: 0, window: time.Minute},
		{name: "zero window", limiter: NewRedisTriggerRateLimiter(nil, ""), scope: "trigger", subject: "acct_oracle", limit: 60, window: 0},
		{name: "blank scope", limiter: NewRedisTriggerRateLimiter(nil, ""), scope: " ", subject: "acct_oracle", limit: 60, window: time.Minute},
		{name: "blank subject", limiter: NewRedisTriggerRateLimiter(nil, ""), scope: "trigger", subject: "", limit: 60, window: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, retryAfter, err := tt.limiter.ConsumeRateLimit(context.Background(), tt.scope, tt.subject, tt.limit, tt.window)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if count != 0 || retryAfter != 0 {
				t.Fatalf("expected 0/0 when disabled, got %d/%d", count, retryAfter)
			}
		})
	}
}

func TestNewRedisTriggerRateLimiter_PrefixNormalization(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "default on blank", prefix: "   ", want: "insuralink:rate_limit"},
		{name: "trailing colon trimmed", prefix: "svc:limits:", want: "svc:limits"},
		{name: "kept as-is", prefix: "svc:limits", want: "svc:limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewRedisTriggerRateLimiter(nil, tt.prefix)
			if limiter.prefix != tt.want {
				t.Fatalf("expected prefix %q, got %q", tt.want, limiter.prefix)
			}
		})
	}
}
