package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/clock"
	"github.com/ignite/engagement-agent/internal/segmentation"
	"github.com/ignite/engagement-agent/internal/service/engagement"
)

// DefaultMessageLimit caps message history responses.
const DefaultMessageLimit = 50

// Service implements user business logic.
type Service struct {
	repo      Repository
	messages  MessageReader
	segmenter *segmentation.Segmenter
	lifecycle *segmentation.Segmenter
	clock     clock.Clock
}

// NewService creates a user service. A nil clock uses the wall clock.
func NewService(repo Repository, messages MessageReader, seg *segmentation.Segmenter, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{repo: repo, messages: messages, segmenter: seg, clock: clk}
}

// WithLifecycleSegmenter adds a second, coarser classification (the
// day-based utility profile) to enriched listings.
func (s *Service) WithLifecycleSegmenter(seg *segmentation.Segmenter) *Service {
	s.lifecycle = seg
	return s
}

// CreateInput holds the fields for creating a user.
type CreateInput struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	PhoneNumber     string  `json:"phone_number"`
	ChurnRiskScore  float64 `json:"churn_risk_score"`
	UtilityOptOut   bool    `json:"utility_opt_out"`
	BroadcastOptOut bool    `json:"broadcast_opt_out"`
}

// Create validates and persists a new user, active as of now.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	now := s.clock.Now()
	u := &domain.User{
		ID:              uuid.New().String(),
		Name:            name,
		Email:           email,
		PhoneNumber:     strings.TrimSpace(in.PhoneNumber),
		CreatedAt:       now,
		LastActiveAt:    now,
		UtilityOptOut:   in.UtilityOptOut,
		BroadcastOptOut: in.BroadcastOptOut,
		ChurnRiskScore:  in.ChurnRiskScore,
	}
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return u, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.Get(ctx, id)
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

// UpdatePreferences changes a user's opt-out flags.
func (s *Service) UpdatePreferences(ctx context.Context, id string, p Preferences) (*domain.User, error) {
	if err := s.repo.UpdatePreferences(ctx, id, p); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Messages returns the user's most recent messages, newest first.
func (s *Service) Messages(ctx context.Context, id string, limit int) ([]domain.MessageLog, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultMessageLimit {
		limit = DefaultMessageLimit
	}
	return s.messages.ListByUser(ctx, id, limit)
}

// LastMessageView is the summary of a user's latest message.
type LastMessageView struct {
	Content  string          `json:"content"`
	Category domain.Category `json:"category"`
	Tone     domain.Tone     `json:"tone,omitempty"`
	SentAt   string          `json:"sent_at"`
}

// EnrichedUser is a user with derived display fields.
type EnrichedUser struct {
	domain.User
	Segment         domain.Segment   `json:"segment"`
	Lifecycle       domain.Segment   `json:"lifecycle_segment,omitempty"`
	InactiveMinutes float64          `json:"inactive_minutes"`
	InactiveDisplay string           `json:"inactive_display"`
	LastMessage     *LastMessageView `json:"last_message,omitempty"`
}

// ListEnriched returns every user with a freshly computed segment and their
// most recent message.
func (s *Service) ListEnriched(ctx context.Context) ([]EnrichedUser, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]EnrichedUser, 0, len(users))
	for _, u := range users {
		inactive := now.Sub(u.LastActiveAt)
		eu := EnrichedUser{
			User:            u,
			Segment:         s.segmenter.Segment(u.CreatedAt, u.LastActiveAt, now),
			InactiveMinutes: roundTenth(inactive.Minutes()),
			InactiveDisplay: engagement.HumanizeInactivity(inactive),
		}
		if s.lifecycle != nil {
			eu.Lifecycle = s.lifecycle.Segment(u.CreatedAt, u.LastActiveAt, now)
		}

		last, err := s.messages.LastMessage(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("last message for user %s: %w", u.ID, err)
		}
		if last != nil {
			view := &LastMessageView{
				Content:  last.Content,
				Category: last.Category,
				SentAt:   last.SentAt.UTC().Format("2006-01-02T15:04:05Z"),
			}
			if last.Category == domain.CategoryFlirty {
				view.Tone = domain.Tone(last.Type)
			}
			eu.LastMessage = view
		}
		out = append(out, eu)
	}
	return out, nil
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
