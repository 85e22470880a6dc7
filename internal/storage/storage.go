// Package storage archives analytics reports and keeps a history of the
// recommendations they produced, either on local disk or in S3 and
// DynamoDB.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ignite/engagement-agent/internal/config"
	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
	"github.com/ignite/engagement-agent/internal/service/analytics"
)

// maxCachedHistory bounds the in-memory recommendation history.
const maxCachedHistory = 500

// RecommendationEntry is one archived recommendation.
type RecommendationEntry struct {
	GeneratedAt     time.Time `json:"generated_at" dynamodbav:"-"`
	PeriodDays      int       `json:"period_days" dynamodbav:"PeriodDays"`
	Recommendation  string    `json:"recommendation" dynamodbav:"Recommendation"`
	FlirtyScore     float64   `json:"flirty_score" dynamodbav:"FlirtyScore"`
	UtilityScore    float64   `json:"utility_score" dynamodbav:"UtilityScore"`
	TotalMessages   int       `json:"total_messages" dynamodbav:"TotalMessages"`
	ReportObjectKey string    `json:"report_key,omitempty" dynamodbav:"ReportKey,omitempty"`
}

func entryFor(r *analytics.Report, key string) RecommendationEntry {
	return RecommendationEntry{
		GeneratedAt:     r.GeneratedAt.UTC(),
		PeriodDays:      r.PeriodDays,
		Recommendation:  r.Recommendation,
		FlirtyScore:     r.ByCategory[domain.CategoryFlirty].EngagementScore,
		UtilityScore:    r.ByCategory[domain.CategoryUtility].EngagementScore,
		TotalMessages:   r.TotalMessages,
		ReportObjectKey: key,
	}
}

func reportKey(t time.Time) string {
	return fmt.Sprintf("reports/%s/%s.json", t.UTC().Format("2006/01/02"), t.UTC().Format("15-04-05"))
}

// Storage is the report archive. It satisfies analytics.Archiver.
type Storage struct {
	config config.StorageConfig
	aws    *AWSStorage

	mu      sync.RWMutex
	latest  *analytics.Report
	history []RecommendationEntry // newest first
}

// New opens the archive described by cfg. Type "aws" uses S3 and DynamoDB;
// anything else uses cfg.LocalPath.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	s := &Storage{config: cfg}

	switch cfg.Type {
	case "aws":
		a, err := NewAWSStorage(ctx, cfg.DynamoDBTable, cfg.S3Bucket, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return nil, fmt.Errorf("initializing AWS storage: %w", err)
		}
		a.ttl = cfg.HistoryTTL()
		s.aws = a
	default:
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
		if err := s.loadFromDisk(); err != nil {
			logger.Warn("could not load archived reports", "path", cfg.LocalPath, "error", err.Error())
		}
	}
	return s, nil
}

// NewWithAWS builds an archive on an existing AWSStorage.
func NewWithAWS(cfg config.StorageConfig, a *AWSStorage) *Storage {
	return &Storage{config: cfg, aws: a}
}

// SaveReport archives r and appends its recommendation to the history.
func (s *Storage) SaveReport(ctx context.Context, r *analytics.Report) error {
	key := reportKey(r.GeneratedAt)
	entry := entryFor(r, key)

	if s.aws != nil {
		if err := s.aws.SaveToS3(ctx, key, r); err != nil {
			return err
		}
		if err := s.aws.SaveToS3(ctx, latestKey, r); err != nil {
			return err
		}
		if err := s.aws.PutRecommendation(ctx, entry); err != nil {
			return err
		}
	} else {
		if err := s.saveToFile(key, r); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	s.mu.Lock()
	s.latest = r
	s.history = append([]RecommendationEntry{entry}, s.history...)
	if len(s.history) > maxCachedHistory {
		s.history = s.history[:maxCachedHistory]
	}
	history := s.history
	s.mu.Unlock()

	if s.aws == nil {
		if err := s.saveToFile(historyFile, history); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}
	logger.Info("report archived", "key", key, "recommendation", r.Recommendation)
	return nil
}

// LatestReport returns the most recently archived report, or nil.
func (s *Storage) LatestReport(ctx context.Context) (*analytics.Report, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil || s.aws == nil {
		return latest, nil
	}

	var r analytics.Report
	if err := s.aws.GetFromS3(ctx, latestKey, &r); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// RecommendationHistory returns up to limit entries, newest first.
func (s *Storage) RecommendationHistory(ctx context.Context, limit int) ([]RecommendationEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	if s.aws != nil {
		return s.aws.QueryRecommendations(ctx, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]RecommendationEntry, limit)
	copy(out, s.history[:limit])
	return out, nil
}

const (
	historyFile = "recommendations.json"
	latestKey   = "reports/latest.json"
)

func (s *Storage) saveToFile(name string, data interface{}) error {
	path := filepath.Join(s.config.LocalPath, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (s *Storage) loadFromDisk() error {
	data, err := os.ReadFile(filepath.Join(s.config.LocalPath, historyFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.history); err != nil {
		return err
	}
	sort.SliceStable(s.history, func(i, j int) bool {
		return s.history[i].GeneratedAt.After(s.history[j].GeneratedAt)
	})

	if len(s.history) > 0 && s.history[0].ReportObjectKey != "" {
		path := filepath.Join(s.config.LocalPath, filepath.FromSlash(s.history[0].ReportObjectKey))
		if raw, err := os.ReadFile(path); err == nil {
			var r analytics.Report
			if json.Unmarshal(raw, &r) == nil {
				s.latest = &r
			}
		}
	}
	return nil
}
