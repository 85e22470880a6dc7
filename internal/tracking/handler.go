package tracking

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/engagement-agent/internal/pkg/clock"
	"github.com/ignite/engagement-agent/internal/pkg/httputil"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves tracking links.
type Handler struct {
	sink   Sink
	signer *Signer
	clock  clock.Clock
}

// NewHandler creates a handler. A nil clock uses the wall clock.
func NewHandler(sink Sink, signer *Signer, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{sink: sink, signer: signer, clock: clk}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open/{data}/{sig}", h.HandleOpen)
	r.Get("/track/click/{data}/{sig}", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleOpen always answers with the pixel so mail clients never show a
// broken image, even for tampered links.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	defer h.servePixel(w)

	parts, err := h.signer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
	if err != nil || len(parts) < 1 || parts[0] == "" {
		logger.Debug("open link rejected", "ip", realIP(r))
		return
	}
	h.sink.Publish(r.Context(), h.event(r, EventOpen, parts[0], ""))
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	parts, err := h.signer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
	if err != nil || len(parts) < 2 || parts[0] == "" {
		httputil.BadRequest(w, "bad link")
		return
	}
	target := strings.Join(parts[1:], "|")
	if u, err := url.Parse(target); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		httputil.BadRequest(w, "bad link")
		return
	}

	h.sink.Publish(r.Context(), h.event(r, EventClick, parts[0], target))
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) event(r *http.Request, t EventType, messageID, link string) Event {
	return Event{
		EventType: t,
		MessageID: messageID,
		LinkURL:   link,
		IPAddress: realIP(r),
		UserAgent: r.UserAgent(),
		Timestamp: h.clock.Now().UTC().Truncate(time.Second),
	}
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
