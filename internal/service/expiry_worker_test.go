package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type expireCounter struct{ calls int }

func (e *expireCounter) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	e.calls++
	return 2, nil
}

type sessionCounter struct{ calls int }

func (s *sessionCounter) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	s.calls++
	return 0, nil
}

func TestExpiryWorker_RunOnce(t *testing.T) {
	deposits := &expireCounter{}
	bidFees := &expireCounter{}
	sessions := &sessionCounter{}

	worker := NewExpiryWorker(deposits, bidFees, sessions, 30*time.Minute)
	worker.RunOnce(context.Background())

	assert.Equal(t, 1, deposits.calls)
	assert.Equal(t, 1, bidFees.calls)
	assert.Equal(t, 1, sessions.calls)
}

func TestExpiryWorker_IntervalFloor(t *testing.T) {
	worker := NewExpiryWorker(&expireCounter{}, &expireCounter{}, &sessionCounter{}, time.Second)
	assert.Equal(t, time.Minute, worker.interval)
}
