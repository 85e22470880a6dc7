// Package segmentation classifies users into lifecycle segments from their
// activity timestamps and maps each segment to a message tone.
//
// Segments are never stored as the source of truth. They are recomputed on
// every evaluation from live timestamps, so thresholds and units live in a
// Profile rather than in code branches.
package segmentation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
)

// SecondaryRule selects what the non-dormant branch checks.
type SecondaryRule string

const (
	// LoyalAtLeast marks accounts at least SecondaryThreshold old as loyal.
	LoyalAtLeast SecondaryRule = "loyal_at_least"
	// NewUserBelow marks accounts younger than SecondaryThreshold as new_user.
	NewUserBelow SecondaryRule = "new_user_below"
)

// Profile holds the thresholds of one segmentation vocabulary. Thresholds
// are expressed in multiples of Unit.
type Profile struct {
	Name               string
	Unit               time.Duration
	DormantThreshold   float64
	SecondaryThreshold float64
	Rule               SecondaryRule
	// Tones maps each segment to its message tone. Segments missing from
	// the map get neutral.
	Tones map[domain.Segment]domain.Tone
}

// defaultTones is the stock segment to tone mapping across all vocabularies.
var defaultTones = map[domain.Segment]domain.Tone{
	domain.SegmentDormant: domain.TonePlayful,
	domain.SegmentLoyal:   domain.ToneWarm,
	domain.SegmentNewUser: domain.ToneWarm,
	domain.SegmentNormal:  domain.ToneNeutral,
}

// DefaultTones returns the stock tone for every segment rule can produce.
func DefaultTones(rule SecondaryRule) map[domain.Segment]domain.Tone {
	tones := make(map[domain.Segment]domain.Tone, 3)
	for _, seg := range (Profile{Rule: rule}).Segments() {
		tones[seg] = defaultTones[seg]
	}
	return tones
}

var knownTones = map[domain.Tone]bool{
	domain.TonePlayful:     true,
	domain.ToneWarm:        true,
	domain.ToneNeutral:     true,
	domain.ToneWelcomeBack: true,
}

// EngagementProfile is the dormant/loyal/normal vocabulary measured in minutes.
func EngagementProfile() Profile {
	return Profile{
		Name:               "engagement",
		Unit:               time.Minute,
		DormantThreshold:   60,
		SecondaryThreshold: 5,
		Rule:               LoyalAtLeast,
		Tones:              DefaultTones(LoyalAtLeast),
	}
}

// UtilityProfile is the dormant/new_user/normal vocabulary measured in days.
func UtilityProfile() Profile {
	return Profile{
		Name:               "utility",
		Unit:               24 * time.Hour,
		DormantThreshold:   3,
		SecondaryThreshold: 7,
		Rule:               NewUserBelow,
		Tones:              DefaultTones(NewUserBelow),
	}
}

// Segments returns the closed vocabulary this profile can produce.
func (p Profile) Segments() []domain.Segment {
	if p.Rule == NewUserBelow {
		return []domain.Segment{domain.SegmentDormant, domain.SegmentNewUser, domain.SegmentNormal}
	}
	return []domain.Segment{domain.SegmentDormant, domain.SegmentLoyal, domain.SegmentNormal}
}

// ToneFor maps a segment to its message tone.
func (p Profile) ToneFor(seg domain.Segment) domain.Tone {
	if tone, ok := p.Tones[seg]; ok {
		return tone
	}
	return domain.ToneNeutral
}

// WithTones returns a copy of p whose tone mapping has overrides applied on
// top of the current one. Keys are segment names, values tone names.
func (p Profile) WithTones(overrides map[string]string) (Profile, error) {
	tones := make(map[domain.Segment]domain.Tone, len(p.Tones)+len(overrides))
	for seg, tone := range p.Tones {
		tones[seg] = tone
	}
	for seg, tone := range overrides {
		tones[domain.Segment(strings.TrimSpace(seg))] = domain.Tone(strings.TrimSpace(tone))
	}
	p.Tones = tones
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// DormantAfter is the inactivity span at which a user becomes dormant.
func (p Profile) DormantAfter() time.Duration {
	return time.Duration(p.DormantThreshold * float64(p.Unit))
}

// Validate reports whether the profile can be used for classification.
func (p Profile) Validate() error {
	if p.Unit <= 0 {
		return fmt.Errorf("segmentation profile %q: unit must be positive", p.Name)
	}
	if p.DormantThreshold < 0 || p.SecondaryThreshold < 0 {
		return fmt.Errorf("segmentation profile %q: thresholds must not be negative", p.Name)
	}
	switch p.Rule {
	case LoyalAtLeast, NewUserBelow:
	default:
		return fmt.Errorf("segmentation profile %q: unknown rule %q", p.Name, p.Rule)
	}
	segments := make(map[domain.Segment]bool, 3)
	for _, seg := range p.Segments() {
		segments[seg] = true
	}
	for seg, tone := range p.Tones {
		if !segments[seg] {
			return fmt.Errorf("segmentation profile %q: tone set for segment %q outside its vocabulary", p.Name, seg)
		}
		if !knownTones[tone] {
			return fmt.Errorf("segmentation profile %q: unknown tone %q for segment %q", p.Name, tone, seg)
		}
	}
	return nil
}

// ParseUnit maps a configured unit name onto a duration.
func ParseUnit(unit string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "second", "seconds":
		return time.Second, nil
	case "minute", "minutes", "":
		return time.Minute, nil
	case "hour", "hours":
		return time.Hour, nil
	case "day", "days":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown segmentation unit %q", unit)
	}
}

// NewProfile builds a validated profile from configuration values. The tone
// mapping starts from DefaultTones.
func NewProfile(name, unit string, dormant, secondary float64, rule string) (Profile, error) {
	u, err := ParseUnit(unit)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{
		Name:               name,
		Unit:               u,
		DormantThreshold:   dormant,
		SecondaryThreshold: secondary,
		Rule:               SecondaryRule(rule),
		Tones:              DefaultTones(SecondaryRule(rule)),
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
