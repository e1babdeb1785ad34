package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"sponsor-dock/internal/config"
	"sponsor-dock/internal/observability"
)

// eventRequest is the delivery beacon the dock UI fires.
type eventRequest struct {
	SiteID     string `json:"siteId"`
	CampaignID string `json:"campaignId"`
	EventType  string `json:"eventType"`
	TS         string `json:"ts,omitempty"`
	Href       string `json:"href,omitempty"`
}

var eventTypes = map[string]struct{}{
	"dock_viewed":    {},
	"dock_expanded":  {},
	"dock_collapsed": {},
	"site_click":     {},
	"cta_click":      {},
	"social_click":   {},
}

// Event handles POST /api/event. The response is always an empty 204: the
// beacon is fire-and-forget, and a silent discard gives scrapers no probing
// signal.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	disposition := h.processEvent(r)
	observability.Events.WithLabelValues(disposition).Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) processEvent(r *http.Request) string {
	var ev eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 4096)).Decode(&ev); err != nil {
		return "invalid"
	}
	if ev.SiteID == "" || ev.CampaignID == "" {
		return "invalid"
	}
	if _, ok := eventTypes[ev.EventType]; !ok {
		return "invalid"
	}
	if !h.gate.allow(clientIP(r)) {
		return "rate_limited"
	}
	if !h.gate.firstSeen(dedupKey(ev)) {
		return "duplicate"
	}

	// The operational log is the only sink; events are never persisted.
	log.Info().
		Str("site_id", ev.SiteID).
		Str("campaign_id", ev.CampaignID).
		Str("event_type", ev.EventType).
		Str("href", ev.Href).
		Str("ts", ev.TS).
		Msg("engagement event")
	return "accepted"
}

// dedupKey identifies one logical engagement; repeats within the window are
// double-fired beacons around page navigation.
func dedupKey(ev eventRequest) string {
	return strings.Join([]string{ev.SiteID, ev.CampaignID, ev.EventType, ev.Href}, "\x1f")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// eventGate applies the per-IP rate limit and the duplicate-beacon window.
type eventGate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time

	limit      rate.Limit
	burst      int
	window     time.Duration
	maxEntries int
	now        func() time.Time
}

func newEventGate(cfg config.Config) *eventGate {
	rateWindow := time.Duration(cfg.Events.RateWindowSeconds) * time.Second
	return &eventGate{
		limiters:   map[string]*rate.Limiter{},
		lastSeen:   map[string]time.Time{},
		limit:      rate.Limit(float64(cfg.Events.RateMaxPerWindow) / rateWindow.Seconds()),
		burst:      cfg.Events.RateMaxPerWindow,
		window:     time.Duration(cfg.Events.DedupWindowSeconds) * time.Second,
		maxEntries: cfg.Events.DedupMaxEntries,
		now:        time.Now,
	}
}

func (g *eventGate) allow(ip string) bool {
	g.mu.Lock()
	l, ok := g.limiters[ip]
	if !ok {
		l = rate.NewLimiter(g.limit, g.burst)
		g.limiters[ip] = l
	}
	g.mu.Unlock()
	return l.Allow()
}

// firstSeen records the key and reports whether it is new within the
// window. The table is pruned opportunistically once oversized.
func (g *eventGate) firstSeen(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if t, ok := g.lastSeen[key]; ok && now.Sub(t) < g.window {
		return false
	}
	g.lastSeen[key] = now
	if len(g.lastSeen) > g.maxEntries {
		for k, t := range g.lastSeen {
			if now.Sub(t) >= g.window {
				delete(g.lastSeen, k)
			}
		}
	}
	return true
}
