package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecisionRetryAfterRoundsUp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tt := []struct {
		desc  string
		reset time.Time
		want  int64
	}{
		{desc: "whole seconds", reset: now.Add(30 * time.Second), want: 30},
		{desc: "partial second rounds up", reset: now.Add(29*time.Second + time.Millisecond), want: 30},
		{desc: "under a second", reset: now.Add(250 * time.Millisecond), want: 1},
		{desc: "already passed", reset: now.Add(-time.Second), want: 0},
		{desc: "exactly now", reset: now, want: 0},
	}

	for _, ts := range tt {
		t.Run(ts.desc, func(t *testing.T) {
			d := Decision{Reset: ts.reset}
			assert.Equal(t, ts.want, d.RetryAfter(now))
		})
	}
}

func TestDecisionResetUnixMilli(t *testing.T) {
	reset := time.UnixMilli(1717243260123)
	assert.Equal(t, int64(1717243260123), Decision{Reset: reset}.ResetUnixMilli())
}
