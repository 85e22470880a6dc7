// Package tracking records opens and clicks on sent messages. The HTTP
// handler serves signed pixel and redirect links and hands each interaction
// to a Sink: either SQS, drained later by the Consumer, or the outcome store
// directly.
package tracking

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/engagement-agent/internal/service/analytics"
)

// EventType is the kind of interaction.
type EventType string

const (
	EventOpen  EventType = "opened"
	EventClick EventType = "clicked"
)

// Action maps the event type to the analytics tracking action.
func (t EventType) Action() string {
	switch t {
	case EventOpen:
		return analytics.ActionOpen
	case EventClick:
		return analytics.ActionClick
	}
	return string(t)
}

// Event is one observed interaction.
type Event struct {
	EventType EventType `json:"event_type"`
	MessageID string    `json:"message_id"`
	LinkURL   string    `json:"link_url,omitempty"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives events from the handler.
type Sink interface {
	Publish(ctx context.Context, evt Event)
}

// Recorder applies an interaction to the outcome store.
type Recorder interface {
	TrackAt(ctx context.Context, messageID, action string, at time.Time) error
}

var errBadLink = errors.New("bad tracking link")

// Signer produces and checks link signatures. An empty secret signs with an
// empty key, which is only suitable for local runs.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer { return &Signer{secret: []byte(secret)} }

func (s *Signer) sign(data string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16])
}

// Encode packs fields into a signed link segment "data/sig".
func (s *Signer) Encode(fields ...string) string {
	data := base64.RawURLEncoding.EncodeToString([]byte(strings.Join(fields, "|")))
	return data + "/" + s.sign(data)
}

// Decode verifies sig and unpacks the fields of data.
func (s *Signer) Decode(data, sig string) ([]string, error) {
	if !hmac.Equal([]byte(sig), []byte(s.sign(data))) {
		return nil, fmt.Errorf("%w: signature mismatch", errBadLink)
	}
	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadLink, err)
	}
	return strings.Split(string(raw), "|"), nil
}
