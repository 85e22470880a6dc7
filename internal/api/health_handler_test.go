package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct{ err error }

func (f fakeBucket) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.err
}

type fakeDepth struct {
	n   int64
	err error
}

func (f fakeDepth) Len(context.Context) (int64, error) { return f.n, f.err }

func TestHealthChecker_AllUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hc := NewHealthChecker(db, rdb, fakeBucket{}, "reports", fakeDepth{n: 3})
	assert.Equal(t, []string{"database", "dispatch", "redis", "s3"}, hc.Components())

	w := httptest.NewRecorder()
	hc.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "up", status.Checks["database"].Status)
	assert.Equal(t, "up", status.Checks["redis"].Status)
	assert.Equal(t, "up", status.Checks["s3"].Status)
	assert.Equal(t, "3 payloads pending", status.Checks["dispatch"].Message)
}

func TestHealthChecker_ReadinessDatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	hc := NewHealthChecker(db, nil, nil, "", nil)
	w := httptest.NewRecorder()
	hc.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ready"])
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHealthChecker_BucketDownDegrades(t *testing.T) {
	hc := NewHealthChecker(nil, nil, fakeBucket{err: errors.New("403")}, "reports", nil)
	w := httptest.NewRecorder()
	hc.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestHealthChecker_NothingConfigured(t *testing.T) {
	hc := NewHealthChecker(nil, nil, nil, "reports", nil)
	assert.Empty(t, hc.Components())

	w := httptest.NewRecorder()
	hc.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOverallStatus(t *testing.T) {
	critical := map[string]bool{"database": true}
	tests := []struct {
		name   string
		checks map[string]ComponentCheck
		want   string
	}{
		{"all up", map[string]ComponentCheck{"database": {Status: "up"}, "redis": {Status: "up"}}, "healthy"},
		{"db down", map[string]ComponentCheck{"database": {Status: "down"}, "redis": {Status: "degraded"}}, "unhealthy"},
		{"queue degraded", map[string]ComponentCheck{"database": {Status: "up"}, "dispatch": {Status: "degraded"}}, "degraded"},
		{"s3 down", map[string]ComponentCheck{"database": {Status: "up"}, "s3": {Status: "down"}}, "degraded"},
		{"empty", map[string]ComponentCheck{}, "healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overallStatus(tt.checks, critical))
		})
	}
}

func TestBacklogProbe(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "up", backlogProbe(fakeDepth{n: 10}, 10)(ctx).Status)
	assert.Equal(t, "degraded", backlogProbe(fakeDepth{n: 11}, 10)(ctx).Status)
	assert.Equal(t, "degraded", backlogProbe(fakeDepth{err: errors.New("boom")}, 10)(ctx).Status)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5*time.Second+300*time.Millisecond))
	assert.Equal(t, "2m3s", formatUptime(2*time.Minute+3*time.Second))
	assert.Equal(t, "25h0m0s", formatUptime(25*time.Hour))
}
