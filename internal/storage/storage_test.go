package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-agent/internal/config"
	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/service/analytics"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func testReport(at time.Time, rec string) *analytics.Report {
	return &analytics.Report{
		PeriodDays:    7,
		GeneratedAt:   at,
		TotalMessages: 6,
		ByCategory: map[domain.Category]analytics.Metrics{
			domain.CategoryFlirty:  {Sent: 3, EngagementScore: 0.767},
			domain.CategoryUtility: {Sent: 3, EngagementScore: 0.267},
		},
		Recommendation: rec,
	}
}

func newLocalStorage(t *testing.T, dir string) *Storage {
	t.Helper()
	s, err := New(context.Background(), config.StorageConfig{Type: "local", LocalPath: dir})
	require.NoError(t, err)
	return s
}

func TestLocal_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	s := newLocalStorage(t, dir)
	ctx := context.Background()

	require.NoError(t, s.SaveReport(ctx, testReport(testNow.Add(-time.Hour), analytics.RecEqual)))
	require.NoError(t, s.SaveReport(ctx, testReport(testNow, analytics.RecIncreaseFlirty)))

	hist, err := s.RecommendationHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, analytics.RecIncreaseFlirty, hist[0].Recommendation)
	assert.Equal(t, 0.767, hist[0].FlirtyScore)
	assert.Equal(t, "reports/2026/05/04/10-00-00.json", hist[0].ReportObjectKey)

	reopened := newLocalStorage(t, dir)
	hist, err = reopened.RecommendationHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, testNow, hist[0].GeneratedAt)

	latest, err := reopened.LatestReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 6, latest.TotalMessages)
}

func TestLocal_Empty(t *testing.T) {
	s := newLocalStorage(t, t.TempDir())

	latest, err := s.LatestReport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)

	hist, err := s.RecommendationHistory(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakeDynamo struct {
	mu    sync.Mutex
	items []map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := append([]map[string]types.AttributeValue(nil), f.items...)
	sk := func(i int) string { return items[i]["SK"].(*types.AttributeValueMemberS).Value }
	sort.Slice(items, func(i, j int) bool { return sk(i) > sk(j) })
	if in.Limit != nil && int(*in.Limit) < len(items) {
		items = items[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestAWS_SaveReport(t *testing.T) {
	s3c := &fakeS3{objects: map[string][]byte{}}
	db := &fakeDynamo{}
	a := NewAWSStorageWithClients(db, s3c, "engagement-history", "engagement-reports")
	a.now = func() time.Time { return testNow }
	s := NewWithAWS(config.StorageConfig{Type: "aws"}, a)
	ctx := context.Background()

	require.NoError(t, s.SaveReport(ctx, testReport(testNow.Add(-time.Hour), analytics.RecEqual)))
	require.NoError(t, s.SaveReport(ctx, testReport(testNow, analytics.RecRefineFlirty)))

	assert.Contains(t, s3c.objects, "reports/2026/05/04/10-00-00.json")
	assert.Contains(t, s3c.objects, latestKey)

	var item dynamoItem
	require.NoError(t, attributevalue.UnmarshalMap(db.items[0], &item))
	assert.Equal(t, recommendationPK, item.PK)
	assert.Equal(t, testNow.Add(90*24*time.Hour).Unix(), item.TTL)

	hist, err := s.RecommendationHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, analytics.RecRefineFlirty, hist[0].Recommendation)
	assert.Equal(t, testNow, hist[0].GeneratedAt)
}

func TestAWS_LatestReportFromS3(t *testing.T) {
	s3c := &fakeS3{objects: map[string][]byte{}}
	a := NewAWSStorageWithClients(&fakeDynamo{}, s3c, "t", "b")

	latest, err := NewWithAWS(config.StorageConfig{}, a).LatestReport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, a.SaveToS3(context.Background(), latestKey, testReport(testNow, analytics.RecEqual)))
	latest, err = NewWithAWS(config.StorageConfig{}, a).LatestReport(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, analytics.RecEqual, latest.Recommendation)
}
