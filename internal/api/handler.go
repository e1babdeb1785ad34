package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sponsor-dock/internal/config"
	"sponsor-dock/internal/inventory"
	"sponsor-dock/internal/observability"
	"sponsor-dock/internal/selector"
)

// Envelope constants surfaced to clients. Session stickiness and frequency
// capping happen client-side; the server only advertises the windows.
const (
	responseVersion   = 1
	sessionTTLMinutes = 45
	frequencyCapHours = 24
)

// InventorySource is what the handler needs from the cache.
type InventorySource interface {
	Get(ctx context.Context) (*inventory.Inventory, inventory.State, error)
}

type Handler struct {
	Inv   InventorySource
	Debug bool
	Rand  selector.RandSource
	Now   func() time.Time

	gate *eventGate
}

func NewHandler(inv InventorySource, cfg config.Config) *Handler {
	return &Handler{
		Inv:   inv,
		Debug: cfg.Server.Debug,
		Rand:  selector.DefaultRand,
		Now:   time.Now,
		gate:  newEventGate(cfg),
	}
}

type sponsorResponse struct {
	Version           int             `json:"version"`
	SiteID            string          `json:"siteId"`
	SelectedAt        time.Time       `json:"selectedAt"`
	SessionTTLMinutes int             `json:"sessionTtlMinutes"`
	FrequencyCapHours int             `json:"frequencyCapHours"`
	Campaign          campaignPayload `json:"campaign"`
	Debug             *debugPayload   `json:"debug,omitempty"`
}

type campaignPayload struct {
	CampaignID string        `json:"campaignId"`
	BrandName  string        `json:"brandName"`
	Headline   string        `json:"headline"`
	Subline    string        `json:"subline"`
	SiteURL    string        `json:"siteUrl"`
	LogoURL    string        `json:"logoUrl"`
	CTA        *ctaPayload   `json:"cta"`
	Social     socialPayload `json:"social"`
}

type ctaPayload struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

type socialPayload struct {
	WhatsAppURL  *string `json:"whatsappUrl"`
	InstagramURL *string `json:"instagramUrl"`
}

type debugPayload struct {
	Path           string `json:"path"`
	InventoryState string `json:"inventoryState"`
}

type errorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Sponsor handles GET /api/sponsor. Unknown/paused sites and empty eligible
// sets are both an empty 204 on the wire; callers must not differentiate.
func (h *Handler) Sponsor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID := q.Get("siteId")
	if siteID == "" {
		http.Error(w, "missing siteId", http.StatusBadRequest)
		return
	}

	inv, state, err := h.Inv.Get(r.Context())
	if err != nil {
		msg := "inventory unavailable"
		if h.Debug {
			msg = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "sponsor_fetch_failed",
			Message: msg,
		})
		return
	}
	observability.InventoryState.WithLabelValues(string(state)).Inc()

	site := inv.SiteByID(siteID)
	if site == nil || site.Status != inventory.StatusActive {
		observability.Selections.WithLabelValues("no_site").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	picked := selector.Select(inv.Campaigns, *site, q.Get("preferCampaignId"), h.Now(), h.Rand)
	if picked == nil {
		observability.Selections.WithLabelValues("no_campaign").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	observability.Selections.WithLabelValues("served").Inc()

	resp := sponsorResponse{
		Version:           responseVersion,
		SiteID:            siteID,
		SelectedAt:        h.Now().UTC(),
		SessionTTLMinutes: sessionTTLMinutes,
		FrequencyCapHours: frequencyCapHours,
		Campaign: campaignPayload{
			CampaignID: picked.CampaignID,
			BrandName:  picked.BrandName,
			Headline:   picked.Headline,
			Subline:    picked.Subline,
			SiteURL:    picked.SiteURL,
			LogoURL:    picked.LogoURL,
			Social: socialPayload{
				WhatsAppURL:  nullable(picked.WhatsAppURL),
				InstagramURL: nullable(picked.InstagramURL),
			},
		},
	}
	if picked.CTALabel != "" {
		resp.Campaign.CTA = &ctaPayload{
			Label: picked.CTALabel,
			URL:   picked.CTAURL,
			Type:  picked.CTAType,
		}
	}
	if h.Debug {
		resp.Debug = &debugPayload{Path: q.Get("path"), InventoryState: string(state)}
	}

	// The shaped output is independently cacheable by shared caches.
	w.Header().Set("Cache-Control", "public, max-age=60, stale-while-revalidate=300")
	writeJSON(w, http.StatusOK, resp)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
