package domain

import "time"

// User is the engagement-relevant view of a tracked user. The core only reads
// it; the host owns persistence and mutation.
type User struct {
	ID                   string     `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	Email                string     `json:"email" db:"email"`
	PhoneNumber          string     `json:"phone_number,omitempty" db:"phone_number"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	LastActiveAt         time.Time  `json:"last_active_at" db:"last_active_at"`
	UtilityOptOut        bool       `json:"utility_opt_out" db:"utility_opt_out"`
	BroadcastOptOut      bool       `json:"broadcast_opt_out" db:"broadcast_opt_out"`
	LastUtilityMessageAt *time.Time `json:"last_utility_message_at,omitempty" db:"last_utility_message_at"`
	ChurnRiskScore       float64    `json:"churn_risk_score" db:"churn_risk_score"`
}

// Segment is a coarse lifecycle classification of a user.
type Segment string

const (
	SegmentDormant Segment = "dormant"
	SegmentLoyal   Segment = "loyal"
	SegmentNewUser Segment = "new_user"
	SegmentNormal  Segment = "normal"
)

// Tone selects the candidate list used by the template catalog.
type Tone string

const (
	TonePlayful     Tone = "playful"
	ToneWarm        Tone = "warm"
	ToneNeutral     Tone = "neutral"
	ToneWelcomeBack Tone = "welcome_back"
)

// Evaluation is the outcome of an eligibility decision for one user.
// Segment and Tone are only set when Eligible is true.
type Evaluation struct {
	UserID   string  `json:"user_id"`
	Eligible bool    `json:"eligible"`
	Segment  Segment `json:"segment,omitempty"`
	Tone     Tone    `json:"tone,omitempty"`
	Reason   string  `json:"reason"`
}
