package inventory

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Creative length caps. Oversized values are truncated, not rejected.
const (
	maxBrandName = 35
	maxHeadline  = 45
	maxSubline   = 75
	maxCTALabel  = 18
)

// row is one data row keyed by (lower-cased) header name. Column order in
// the sheet is irrelevant; column names are the contract.
type row map[string]string

func (r row) get(key string) string { return strings.TrimSpace(r[key]) }

// MapCampaigns folds the network_ads grid (header row + data rows) into
// valid campaigns. A row failing any required-field check is dropped
// entirely; the rejected count is returned for diagnostics. One malformed
// campaign must never break the whole feed.
func MapCampaigns(grid [][]string) ([]CampaignRow, int) {
	campaigns := make([]CampaignRow, 0, len(grid))
	rejected := 0
	for _, r := range rows(grid) {
		c, ok := mapCampaign(r)
		if !ok {
			rejected++
			continue
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rejected
}

// MapSites folds the network_sites grid into valid sites.
func MapSites(grid [][]string) ([]SiteRow, int) {
	sites := make([]SiteRow, 0, len(grid))
	rejected := 0
	for _, r := range rows(grid) {
		s, ok := mapSite(r)
		if !ok {
			rejected++
			continue
		}
		sites = append(sites, s)
	}
	return sites, rejected
}

func mapCampaign(r row) (CampaignRow, bool) {
	c := CampaignRow{
		CampaignID:      r.get("campaign_id"),
		Status:          parseStatus(r.get("status")),
		Weight:          parseWeight(r.get("weight")),
		BrandName:       truncate(r.get("brand_name"), maxBrandName),
		Headline:        truncate(r.get("headline"), maxHeadline),
		Subline:         truncate(r.get("subline"), maxSubline),
		SiteURL:         r.get("site_url"),
		LogoURL:         r.get("logo_url"),
		CTALabel:        truncate(r.get("cta_label"), maxCTALabel),
		CTAURL:          r.get("cta_url"),
		CompetitorGroup: r.get("competitor_group"),
		StartDate:       parseISODate(r.get("start_date")),
		EndDate:         parseISODate(r.get("end_date")),
	}

	if c.CampaignID == "" || c.BrandName == "" || c.Headline == "" || c.Subline == "" {
		return CampaignRow{}, false
	}
	if !isHTTPS(c.SiteURL) || !isHTTPS(c.LogoURL) {
		return CampaignRow{}, false
	}
	// A CTA label without a usable https target invalidates the whole row.
	if c.CTALabel != "" && !isHTTPS(c.CTAURL) {
		return CampaignRow{}, false
	}
	if c.CTALabel == "" {
		c.CTAURL = ""
	}
	c.CTAType = r.get("cta_type")
	if c.CTAType == "" {
		c.CTAType = "custom"
	}
	// Optional social URLs are dropped individually when not https.
	if u := r.get("wa_url"); isHTTPS(u) {
		c.WhatsAppURL = u
	}
	if u := r.get("ig_url"); isHTTPS(u) {
		c.InstagramURL = u
	}
	if tg := splitList(r.get("target_groups")); len(tg) > 0 {
		c.TargetGroups = tg
	}
	return c, true
}

func mapSite(r row) (SiteRow, bool) {
	s := SiteRow{
		SiteID:                  r.get("site_id"),
		Status:                  parseStatus(r.get("status")),
		BlockedCompetitorGroups: splitList(r.get("blocked_competitor_groups")),
		Groups:                  splitList(r.get("groups")),
	}
	if s.SiteID == "" {
		return SiteRow{}, false
	}
	return s, true
}

// rows pairs the header row with each non-blank data row.
func rows(grid [][]string) []row {
	if len(grid) < 2 {
		return nil
	}
	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	out := make([]row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		if blankRow(cells) {
			continue
		}
		r := row{}
		for i, name := range header {
			if name == "" || i >= len(cells) {
				continue
			}
			r[name] = cells[i]
		}
		out = append(out, r)
	}
	return out
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseStatus treats anything but "paused" (case-insensitive) as active.
func parseStatus(s string) string {
	if strings.EqualFold(s, StatusPaused) {
		return StatusPaused
	}
	return StatusActive
}

// parseWeight rounds to the nearest integer, defaulting to 1 for absent,
// non-finite, or non-positive values.
func parseWeight(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 1
	}
	return int(math.Round(f))
}

// splitList parses a comma-delimited tag string; empty input yields an
// empty list.
func splitList(s string) []string {
	out := []string{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// truncate hard-caps a string at max bytes; oversized values are cut,
// not rejected.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func isHTTPS(u string) bool {
	return strings.HasPrefix(u, "https://")
}

// parseISODate keeps well-formed YYYY-MM-DD values and blanks anything
// else, leaving that bound open.
func parseISODate(s string) string {
	if s == "" {
		return ""
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return ""
	}
	return s
}
