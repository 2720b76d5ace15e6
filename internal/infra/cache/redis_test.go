package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

type fakeRedis struct {
	data   map[string]string
	getErr error
	ttl    time.Duration
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl = ttl
	return redis.NewStatusResult("OK", nil)
}

type countingSource struct {
	plan  *amendments.PlanStatus
	err   error
	calls int
}

func (s *countingSource) FetchPlanStatus(context.Context, string) (*amendments.PlanStatus, error) {
	s.calls++
	return s.plan, s.err
}

func TestPlanCache_HitAfterMiss(t *testing.T) {
	src := &countingSource{plan: &amendments.PlanStatus{Status: "Cancelado", Raw: []byte(`{"situacao_plano_acao":"Cancelado"}`)}}
	rdb := &fakeRedis{data: map[string]string{}}
	c := NewPlanCache(src, rdb, time.Minute, nil)

	p1, err := c.FetchPlanStatus(context.Background(), "2024-1")
	require.NoError(t, err)
	p2, err := c.FetchPlanStatus(context.Background(), "2024-1")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, "Cancelado", p2.Status)
	assert.JSONEq(t, string(p1.Raw), string(p2.Raw))
	assert.Equal(t, time.Minute, rdb.ttl)
	assert.Contains(t, rdb.data, "vigia:plan:2024-1")
}

func TestPlanCache_AbsentIsCached(t *testing.T) {
	src := &countingSource{}
	c := NewPlanCache(src, &fakeRedis{data: map[string]string{}}, 0, nil)

	for i := 0; i < 3; i++ {
		p, err := c.FetchPlanStatus(context.Background(), "2024-2")
		require.NoError(t, err)
		assert.Nil(t, p)
	}
	assert.Equal(t, 1, src.calls)
}

func TestPlanCache_FailuresAreNotCached(t *testing.T) {
	src := &countingSource{err: amendments.ErrEnrichmentUnavailable}
	rdb := &fakeRedis{data: map[string]string{}}
	c := NewPlanCache(src, rdb, time.Minute, nil)

	_, err := c.FetchPlanStatus(context.Background(), "2024-3")
	assert.ErrorIs(t, err, amendments.ErrEnrichmentUnavailable)
	assert.Empty(t, rdb.data)
}

func TestPlanCache_RedisDownBypasses(t *testing.T) {
	src := &countingSource{plan: &amendments.PlanStatus{Status: "Aprovado"}}
	c := NewPlanCache(src, &fakeRedis{data: map[string]string{}, getErr: errors.New("connection refused")}, time.Minute, nil)

	p, err := c.FetchPlanStatus(context.Background(), "2024-4")
	require.NoError(t, err)
	assert.Equal(t, "Aprovado", p.Status)
	assert.Equal(t, 1, src.calls)
}
