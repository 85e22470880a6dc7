package segmentation

import (
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
)

// Segmenter classifies users under one profile. It holds no mutable state
// and is safe for concurrent use.
type Segmenter struct {
	profile Profile
}

// New creates a segmenter for the given profile.
func New(p Profile) *Segmenter {
	return &Segmenter{profile: p}
}

// Profile returns the profile the segmenter was built with.
func (s *Segmenter) Profile() Profile { return s.profile }

// Segment classifies a user. Rules apply in strict priority order: dormant
// first, then the profile's secondary rule, then normal.
func (s *Segmenter) Segment(createdAt, lastActiveAt, now time.Time) domain.Segment {
	p := s.profile
	inactive := s.inUnits(now.Sub(lastActiveAt))
	age := s.inUnits(now.Sub(createdAt))

	if inactive >= p.DormantThreshold {
		return domain.SegmentDormant
	}

	switch p.Rule {
	case NewUserBelow:
		if age < p.SecondaryThreshold {
			return domain.SegmentNewUser
		}
	default:
		if age >= p.SecondaryThreshold {
			return domain.SegmentLoyal
		}
	}
	return domain.SegmentNormal
}

// SegmentAndTone is Segment followed by the profile's tone mapping.
func (s *Segmenter) SegmentAndTone(createdAt, lastActiveAt, now time.Time) (domain.Segment, domain.Tone) {
	seg := s.Segment(createdAt, lastActiveAt, now)
	return seg, s.profile.ToneFor(seg)
}

// IsDormant reports whether the inactivity span alone qualifies as dormant.
func (s *Segmenter) IsDormant(lastActiveAt, now time.Time) bool {
	return s.inUnits(now.Sub(lastActiveAt)) >= s.profile.DormantThreshold
}

func (s *Segmenter) inUnits(d time.Duration) float64 {
	return float64(d) / float64(s.profile.Unit)
}
