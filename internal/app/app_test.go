package app

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-agent/internal/config"
	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/distlock"
)

func TestBuild_WithRedisAndArchive(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.Default()
	cfg.Analytics.Archive = true
	cfg.Storage.LocalPath = t.TempDir()
	cfg.Tracking.BaseURL = "https://t.example.com"
	cfg.Tracking.Secret = "s3cret"

	a, err := Build(context.Background(), cfg, db, rdb)
	require.NoError(t, err)

	assert.NotNil(t, a.Queue)
	assert.NotNil(t, a.Storage)
	assert.NotNil(t, a.Cycle)
	assert.NotNil(t, a.Sender)
	assert.Equal(t, cfg.Engagement.FrequencyWindow(), a.Engine.Config().FrequencyWindow)
	assert.Equal(t, []domain.Segment{domain.SegmentDormant, domain.SegmentLoyal, domain.SegmentNormal},
		a.Engine.Segmenter().Profile().Segments())
}

func TestBuild_WithoutRedis(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := Build(context.Background(), config.Default(), db, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Queue)
	assert.Nil(t, a.Storage)
	assert.IsType(t, &distlock.AdvisoryLock{}, a.CycleLock())
}

func TestApp_CycleLockSharedKey(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	a, err := Build(context.Background(), config.Default(), db, rdb)
	require.NoError(t, err)

	ctx := context.Background()
	first, second := a.CycleLock(), a.CycleLock()
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, first.Release(ctx))
}

func TestBuild_BadProfile(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Default()
	cfg.Segmentation.Engagement.Unit = "fortnights"
	_, err = Build(context.Background(), cfg, db, nil)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Segmentation.Utility.Rule = "oldest_first"
	_, err = Build(context.Background(), cfg, db, nil)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Segmentation.Engagement.Tones = map[string]string{"loyal": "shouty"}
	_, err = Build(context.Background(), cfg, db, nil)
	assert.Error(t, err)
}

func TestProfile_ToneOverrides(t *testing.T) {
	pc := config.Default().Segmentation.Engagement
	pc.Tones = map[string]string{"normal": "warm"}

	p, err := Profile("engagement", pc)
	require.NoError(t, err)
	assert.Equal(t, domain.ToneWarm, p.ToneFor(domain.SegmentNormal))
	assert.Equal(t, domain.TonePlayful, p.ToneFor(domain.SegmentDormant))
}

func TestOpenRedis_Disabled(t *testing.T) {
	rdb, err := OpenRedis(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, rdb)

	_, err = OpenRedis(context.Background(), config.RedisConfig{URL: "not a url"})
	assert.Error(t, err)
}

func TestOpenDB_RequiresURL(t *testing.T) {
	_, err := OpenDB(context.Background(), config.DatabaseConfig{})
	assert.Error(t, err)
}
