package tracking

import (
	"context"
	"strings"

	"github.com/ignite/engagement-agent/internal/domain"
)

// Links builds tracking URLs for a base such as "https://t.example.com".
type Links struct {
	base   string
	signer *Signer
}

func NewLinks(baseURL string, signer *Signer) *Links {
	return &Links{base: strings.TrimRight(baseURL, "/"), signer: signer}
}

// Open is the pixel URL for messageID.
func (l *Links) Open(messageID string) string {
	return l.base + "/track/open/" + l.signer.Encode(messageID)
}

// Click is a redirect URL to target that records a click on messageID.
func (l *Links) Click(messageID, target string) string {
	return l.base + "/track/click/" + l.signer.Encode(messageID, target)
}

// Dispatcher is the downstream payload queue.
type Dispatcher interface {
	Enqueue(ctx context.Context, payloads ...domain.Payload) error
}

// AnnotatingDispatcher adds an open_url to every payload that carries a
// message_id before passing it on.
type AnnotatingDispatcher struct {
	next  Dispatcher
	links *Links
}

func NewAnnotatingDispatcher(next Dispatcher, links *Links) *AnnotatingDispatcher {
	return &AnnotatingDispatcher{next: next, links: links}
}

func (d *AnnotatingDispatcher) Enqueue(ctx context.Context, payloads ...domain.Payload) error {
	for i := range payloads {
		id, _ := payloads[i].Metadata["message_id"].(string)
		if id == "" {
			continue
		}
		md := make(map[string]any, len(payloads[i].Metadata)+1)
		for k, v := range payloads[i].Metadata {
			md[k] = v
		}
		md["open_url"] = d.links.Open(id)
		payloads[i].Metadata = md
	}
	return d.next.Enqueue(ctx, payloads...)
}
