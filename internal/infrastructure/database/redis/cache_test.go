package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mr    *miniredis.Miniredis
	cache *ProfileCache
	ctx   context.Context
}

func (s *CacheTestSuite) SetupTest() {
	c, mr := newTestClient(s.T())
	s.mr = mr
	s.cache = NewProfileCache(c, logging.NewNopLogger(), WithPrefix("test:"), WithTTL(time.Minute), WithJitter(0))
	s.ctx = context.Background()
}

func sampleRecord() *profile.Record {
	return &profile.Record{
		ID:           uuid.New(),
		SMILES:       "CC(=O)O",
		PH:           7.4,
		Mode:         "rule_filtered",
		ModelVersion: "v1",
		Entries:      []profile.Entry{{Site: 3, PKa: 4.76, Protonated: "CC(=O)O", Deprotonated: "CC(=O)[O-]"}},
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (s *CacheTestSuite) TestMiss() {
	_, err := s.cache.Get(s.ctx, "nothing")
	s.True(errors.Is(err, profile.ErrNotFound))
	s.True(errors.IsNotFound(err))
}

func (s *CacheTestSuite) TestSetGet() {
	rec := sampleRecord()
	s.Require().NoError(s.cache.Set(s.ctx, "k", rec))

	got, err := s.cache.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal(rec, got)
}

func (s *CacheTestSuite) TestExpiry() {
	s.Require().NoError(s.cache.Set(s.ctx, "k", sampleRecord()))
	s.mr.FastForward(2 * time.Minute)
	_, err := s.cache.Get(s.ctx, "k")
	s.True(errors.IsNotFound(err))
}

func (s *CacheTestSuite) TestDelete() {
	s.Require().NoError(s.cache.Set(s.ctx, "a", sampleRecord()))
	s.Require().NoError(s.cache.Delete(s.ctx, "a", "b"))
	s.NoError(s.cache.Delete(s.ctx))
	_, err := s.cache.Get(s.ctx, "a")
	s.True(errors.IsNotFound(err))
}

func (s *CacheTestSuite) TestPurgeByModelVersion() {
	for _, k := range []string{
		profile.CacheKey("C", 7.4, "m", "v1"),
		profile.CacheKey("CC", 7.4, "m", "v1"),
		profile.CacheKey("C", 7.4, "m", "v2"),
	} {
		s.Require().NoError(s.cache.Set(s.ctx, k, sampleRecord()))
	}
	n, err := s.cache.Purge(s.ctx, "v1")
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	_, err = s.cache.Get(s.ctx, profile.CacheKey("C", 7.4, "m", "v2"))
	s.NoError(err)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestCache_UndecodableEntryIsMiss(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set("p:bad", "{not json"))

	cache := NewProfileCache(c, nil, WithPrefix("p:"))
	_, err := cache.Get(context.Background(), "bad")
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, mr.Exists("p:bad"))
}

func TestCache_BackendErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewProfileCache(NewClientFrom(db, nil), nil, WithPrefix("p:"), WithTTL(0))

	mock.ExpectGet("p:k").SetErr(assert.AnError)
	_, err := cache.Get(context.Background(), "k")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))

	mock.Regexp().ExpectSet("p:k", `.*`, 0).SetErr(assert.AnError)
	err = cache.Set(context.Background(), "k", sampleRecord())
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_Expiry(t *testing.T) {
	c := &ProfileCache{ttl: time.Hour, jitter: 0.1}
	for i := 0; i < 50; i++ {
		d := c.expiry()
		assert.GreaterOrEqual(t, d, 54*time.Minute)
		assert.LessOrEqual(t, d, 66*time.Minute)
	}
	assert.Equal(t, time.Duration(0), (&ProfileCache{}).expiry())
}

func TestCache_ClosedClient(t *testing.T) {
	c, _ := newTestClient(t)
	cache := NewProfileCache(c, nil)
	require.NoError(t, c.Close())
	_, err := cache.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, ErrClientClosed))
}

//Personal.AI order the ending
