package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/engagement-agent/internal/pkg/httputil"
)

const (
	statusUp       = "up"
	statusDown     = "down"
	statusDegraded = "degraded"

	overallHealthy   = "healthy"
	overallDegraded  = "degraded"
	overallUnhealthy = "unhealthy"

	healthVersion = "1.0.0"

	// DefaultMaxBacklog is the dispatch depth above which delivery is
	// considered stalled.
	DefaultMaxBacklog = 10000
)

// HealthStatus is the /health response.
type HealthStatus struct {
	Status  string                    `json:"status"`
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck is one dependency's verdict.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// BucketHeader is the S3 call used to probe the report bucket.
type BucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// QueueDepth reports how many payloads are waiting for delivery.
type QueueDepth interface {
	Len(ctx context.Context) (int64, error)
}

type probe struct {
	name     string
	critical bool
	run      func(ctx context.Context) ComponentCheck
}

// HealthChecker probes whichever dependencies the process was started with.
// Unconfigured dependencies are left out of the report.
type HealthChecker struct {
	probes  []probe
	started time.Time
}

// NewHealthChecker registers a probe for every non-nil dependency. The
// database is critical: readiness fails when it is down.
func NewHealthChecker(db *sql.DB, rdb *redis.Client, bucketClient BucketHeader, bucket string, queue QueueDepth) *HealthChecker {
	hc := &HealthChecker{started: time.Now()}
	if db != nil {
		hc.probes = append(hc.probes, probe{"database", true, pingProbe(3*time.Second, time.Second, db.PingContext)})
	}
	if rdb != nil {
		hc.probes = append(hc.probes, probe{"redis", false, pingProbe(2*time.Second, 500*time.Millisecond, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})})
	}
	if bucketClient != nil && bucket != "" {
		hc.probes = append(hc.probes, probe{"s3", false, bucketProbe(bucketClient, bucket)})
	}
	if queue != nil {
		hc.probes = append(hc.probes, probe{"dispatch", false, backlogProbe(queue, DefaultMaxBacklog)})
	}
	return hc
}

// HandleHealth reports every probe. It always answers 200; the status field
// carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks, overall := hc.check(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  overall,
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.started)),
		Checks:  checks,
	})
}

// HandleLiveness answers 200 while the process runs.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.started)),
	})
}

// HandleReadiness answers 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks, overall := hc.check(r.Context())
	code := http.StatusOK
	if overall == overallUnhealthy {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]interface{}{
		"ready":  code == http.StatusOK,
		"status": overall,
		"checks": checks,
	})
}

// Components lists the registered probe names in sorted order.
func (hc *HealthChecker) Components() []string {
	names := make([]string, len(hc.probes))
	for i, p := range hc.probes {
		names[i] = p.name
	}
	sort.Strings(names)
	return names
}

// check runs all probes concurrently.
func (hc *HealthChecker) check(ctx context.Context) (map[string]ComponentCheck, string) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]ComponentCheck, len(hc.probes))
	)
	for _, p := range hc.probes {
		wg.Add(1)
		go func(p probe) {
			defer wg.Done()
			c := p.run(ctx)
			mu.Lock()
			checks[p.name] = c
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	critical := make(map[string]bool, len(hc.probes))
	for _, p := range hc.probes {
		critical[p.name] = p.critical
	}
	return checks, overallStatus(checks, critical)
}

// overallStatus is unhealthy when a critical check is down, degraded when
// any check is not up, healthy otherwise.
func overallStatus(checks map[string]ComponentCheck, critical map[string]bool) string {
	overall := overallHealthy
	for name, c := range checks {
		switch {
		case c.Status == statusDown && critical[name]:
			return overallUnhealthy
		case c.Status != statusUp:
			overall = overallDegraded
		}
	}
	return overall
}

func pingProbe(timeout, slow time.Duration, ping func(context.Context) error) func(context.Context) ComponentCheck {
	return func(ctx context.Context) ComponentCheck {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		err := ping(ctx)
		latency := time.Since(start)
		switch {
		case err != nil:
			return ComponentCheck{Status: statusDown, Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
		case latency > slow:
			return ComponentCheck{Status: statusDegraded, Latency: latency.String(), Message: "slow response"}
		default:
			return ComponentCheck{Status: statusUp, Latency: latency.String()}
		}
	}
}

func bucketProbe(client BucketHeader, bucket string) func(context.Context) ComponentCheck {
	return func(ctx context.Context) ComponentCheck {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		start := time.Now()
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket})
		latency := time.Since(start)
		if err != nil {
			return ComponentCheck{Status: statusDown, Latency: latency.String(), Message: fmt.Sprintf("report bucket %q unreachable: %v", bucket, err)}
		}
		return ComponentCheck{Status: statusUp, Latency: latency.String()}
	}
}

// backlogProbe degrades when payloads pile up faster than delivery drains
// them.
func backlogProbe(queue QueueDepth, limit int64) func(context.Context) ComponentCheck {
	return func(ctx context.Context) ComponentCheck {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		n, err := queue.Len(ctx)
		switch {
		case err != nil:
			return ComponentCheck{Status: statusDegraded, Message: fmt.Sprintf("queue length unavailable: %v", err)}
		case n > limit:
			return ComponentCheck{Status: statusDegraded, Message: fmt.Sprintf("%d payloads pending (limit %d)", n, limit)}
		default:
			return ComponentCheck{Status: statusUp, Message: fmt.Sprintf("%d payloads pending", n)}
		}
	}
}

// formatUptime renders whole seconds, e.g. "26h3m0s".
func formatUptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
