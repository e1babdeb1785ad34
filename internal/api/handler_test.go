package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sponsor-dock/internal/config"
	"sponsor-dock/internal/inventory"
)

type stubSource struct {
	inv *inventory.Inventory
	err error
}

func (s *stubSource) Get(_ context.Context) (*inventory.Inventory, inventory.State, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.inv, inventory.StateFresh, nil
}

func testInventory() *inventory.Inventory {
	return &inventory.Inventory{
		Campaigns: []inventory.CampaignRow{
			{
				CampaignID: "c1",
				Status:     inventory.StatusActive,
				Weight:     1,
				BrandName:  "Acme",
				Headline:   "Build faster",
				Subline:    "Tools for busy studios",
				SiteURL:    "https://acme.example",
				LogoURL:    "https://acme.example/logo.png",
			},
		},
		Sites: []inventory.SiteRow{
			{SiteID: "portfolio", Status: inventory.StatusActive},
			{SiteID: "parked", Status: inventory.StatusPaused},
		},
	}
}

func newTestHandler(src InventorySource) *Handler {
	return NewHandler(src, config.Default())
}

func TestSponsor_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		src        InventorySource
		url        string
		wantStatus int
	}{
		{"missing siteId", &stubSource{inv: testInventory()}, "/api/sponsor", http.StatusBadRequest},
		{"unknown site", &stubSource{inv: testInventory()}, "/api/sponsor?siteId=unknown-site", http.StatusNoContent},
		{"paused site", &stubSource{inv: testInventory()}, "/api/sponsor?siteId=parked", http.StatusNoContent},
		{"eligible campaign", &stubSource{inv: testInventory()}, "/api/sponsor?siteId=portfolio", http.StatusOK},
		{"fetch failure", &stubSource{err: errors.New("boom")}, "/api/sponsor?siteId=portfolio", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(tt.src)
			w := httptest.NewRecorder()
			h.Sponsor(w, httptest.NewRequest("GET", tt.url, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Zero(t, w.Body.Len())
			}
		})
	}
}

func TestSponsor_ResponseShape(t *testing.T) {
	h := newTestHandler(&stubSource{inv: testInventory()})
	w := httptest.NewRecorder()
	h.Sponsor(w, httptest.NewRequest("GET", "/api/sponsor?siteId=portfolio", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60, stale-while-revalidate=300", w.Header().Get("Cache-Control"))

	var resp sponsorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Version)
	assert.Equal(t, "portfolio", resp.SiteID)
	assert.Equal(t, 45, resp.SessionTTLMinutes)
	assert.Equal(t, 24, resp.FrequencyCapHours)
	assert.Equal(t, "c1", resp.Campaign.CampaignID)
	assert.Nil(t, resp.Campaign.CTA) // no cta_label on the row
	assert.Nil(t, resp.Campaign.Social.WhatsAppURL)
	assert.Nil(t, resp.Debug)
}

func TestSponsor_CTAAndSocialPresent(t *testing.T) {
	inv := testInventory()
	inv.Campaigns[0].CTALabel = "Book"
	inv.Campaigns[0].CTAURL = "https://acme.example/book"
	inv.Campaigns[0].CTAType = "custom"
	inv.Campaigns[0].WhatsAppURL = "https://wa.me/1234"

	h := newTestHandler(&stubSource{inv: inv})
	w := httptest.NewRecorder()
	h.Sponsor(w, httptest.NewRequest("GET", "/api/sponsor?siteId=portfolio", nil))

	var resp sponsorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Campaign.CTA)
	assert.Equal(t, "Book", resp.Campaign.CTA.Label)
	assert.Equal(t, "custom", resp.Campaign.CTA.Type)
	require.NotNil(t, resp.Campaign.Social.WhatsAppURL)
	assert.Equal(t, "https://wa.me/1234", *resp.Campaign.Social.WhatsAppURL)
}

func TestSponsor_PreferredCampaignPinned(t *testing.T) {
	inv := testInventory()
	heavy := inv.Campaigns[0]
	heavy.CampaignID = "heavy"
	heavy.Weight = 1000
	inv.Campaigns = append(inv.Campaigns, heavy)

	h := newTestHandler(&stubSource{inv: inv})
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		h.Sponsor(w, httptest.NewRequest("GET", "/api/sponsor?siteId=portfolio&preferCampaignId=c1", nil))

		var resp sponsorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "c1", resp.Campaign.CampaignID)
	}
}

func TestSponsor_FetchFailureBody(t *testing.T) {
	h := newTestHandler(&stubSource{err: errors.New("credential rejected")})
	w := httptest.NewRecorder()
	h.Sponsor(w, httptest.NewRequest("GET", "/api/sponsor?siteId=portfolio", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "sponsor_fetch_failed", resp.Error)
	assert.Equal(t, "inventory unavailable", resp.Message) // no internals without debug
}

func TestSponsor_DebugDiagnostics(t *testing.T) {
	h := newTestHandler(&stubSource{inv: testInventory()})
	h.Debug = true
	w := httptest.NewRecorder()
	h.Sponsor(w, httptest.NewRequest("GET", "/api/sponsor?siteId=portfolio&path=/work", nil))

	var resp sponsorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Debug)
	assert.Equal(t, "/work", resp.Debug.Path)
}

func eventBody(href string) string {
	return `{"siteId":"portfolio","campaignId":"c1","eventType":"cta_click","href":"` + href + `"}`
}

func postEvent(body string) *http.Request {
	req := httptest.NewRequest("POST", "/api/event", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestEvent_AlwaysNoContent(t *testing.T) {
	h := newTestHandler(&stubSource{inv: testInventory()})
	bodies := []string{
		eventBody("https://acme.example"),
		"{not json",
		`{"siteId":"","campaignId":"c1","eventType":"cta_click"}`,
		`{"siteId":"portfolio","campaignId":"c1","eventType":"made_up"}`,
	}
	for _, body := range bodies {
		w := httptest.NewRecorder()
		h.Event(w, postEvent(body))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Zero(t, w.Body.Len())
	}
}

func TestEvent_Dispositions(t *testing.T) {
	h := newTestHandler(&stubSource{inv: testInventory()})

	assert.Equal(t, "invalid", h.processEvent(postEvent("{not json")))
	assert.Equal(t, "invalid", h.processEvent(postEvent(`{"siteId":"s","campaignId":"c","eventType":"nope"}`)))
	assert.Equal(t, "invalid", h.processEvent(postEvent(`{"siteId":"s","eventType":"cta_click"}`)))
	assert.Equal(t, "accepted", h.processEvent(postEvent(eventBody("https://acme.example"))))
}

func TestEvent_DuplicateBeaconDiscarded(t *testing.T) {
	h := newTestHandler(&stubSource{inv: testInventory()})

	assert.Equal(t, "accepted", h.processEvent(postEvent(eventBody("https://acme.example"))))
	assert.Equal(t, "duplicate", h.processEvent(postEvent(eventBody("https://acme.example"))))
	// different target href is a distinct engagement
	assert.Equal(t, "accepted", h.processEvent(postEvent(eventBody("https://acme.example/other"))))
}

func TestEvent_DuplicateOutsideWindowAccepted(t *testing.T) {
	h := newTestHandler(&stubSource{inv: testInventory()})
	now := time.Unix(1000, 0)
	h.gate.now = func() time.Time { return now }

	assert.Equal(t, "accepted", h.processEvent(postEvent(eventBody("https://acme.example"))))
	now = now.Add(2 * time.Minute) // past the 90s dedup window
	assert.Equal(t, "accepted", h.processEvent(postEvent(eventBody("https://acme.example"))))
}

func TestEvent_RateLimited(t *testing.T) {
	cfg := config.Default()
	cfg.Events.RateMaxPerWindow = 2
	h := NewHandler(&stubSource{inv: testInventory()}, cfg)

	assert.Equal(t, "accepted", h.processEvent(postEvent(eventBody("https://a.example/1"))))
	assert.Equal(t, "accepted", h.processEvent(postEvent(eventBody("https://a.example/2"))))
	assert.Equal(t, "rate_limited", h.processEvent(postEvent(eventBody("https://a.example/3"))))
}

func TestEvent_DedupTablePruned(t *testing.T) {
	cfg := config.Default()
	cfg.Events.DedupMaxEntries = 4
	h := NewHandler(&stubSource{inv: testInventory()}, cfg)
	now := time.Unix(1000, 0)
	h.gate.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		h.gate.firstSeen(string(rune('a' + i)))
		now = now.Add(30 * time.Second)
	}
	// entries older than the window were dropped once the table overflowed
	assert.LessOrEqual(t, len(h.gate.lastSeen), 4)
}

func TestRouter_EndToEnd(t *testing.T) {
	h := newTestHandler(&stubSource{inv: testInventory()})
	ts := httptest.NewServer(Router(h))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/sponsor?siteId=portfolio")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/event", "application/json", strings.NewReader("garbage"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
