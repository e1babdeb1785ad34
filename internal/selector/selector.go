// Package selector narrows the campaign list to the eligible set for one
// site and moment, then performs a weighted random pick.
package selector

import (
	"math/rand"
	"time"

	"sponsor-dock/internal/inventory"
)

// RandSource yields a uniform value in [0, 1). Injected so tests control
// the draw.
type RandSource func() float64

// DefaultRand draws from the shared math/rand source.
func DefaultRand() float64 { return rand.Float64() }

// Select returns at most one campaign for the site, or nil when nothing is
// eligible. A preferred id that names an eligible campaign is returned
// unconditionally; preference bypasses weighting, never eligibility.
// Select never fails; repeated calls are independent draws.
func Select(campaigns []inventory.CampaignRow, site inventory.SiteRow, preferID string, now time.Time, randFn RandSource) *inventory.CampaignRow {
	today := now.UTC().Format("2006-01-02")

	var eligible []inventory.CampaignRow
	for _, c := range campaigns {
		if !Eligible(c, site, today) {
			continue
		}
		if preferID != "" && c.CampaignID == preferID {
			picked := c
			return &picked
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil
	}
	return pickWeighted(eligible, randFn)
}

// Eligible reports whether the campaign may serve on the site on the given
// UTC date (YYYY-MM-DD). Date bounds are inclusive; a missing bound is
// unbounded on that side. ISO date strings compare lexicographically, which
// matches calendar order.
func Eligible(c inventory.CampaignRow, site inventory.SiteRow, today string) bool {
	if c.Status != inventory.StatusActive {
		return false
	}
	if c.StartDate != "" && today < c.StartDate {
		return false
	}
	if c.EndDate != "" && today > c.EndDate {
		return false
	}
	if c.CompetitorGroup != "" {
		for _, g := range site.BlockedCompetitorGroups {
			if g == c.CompetitorGroup {
				return false
			}
		}
	}
	return true
}

// pickWeighted walks the list in order, subtracting each weight from a
// uniform draw in [0, total). If floating-point rounding exhausts the walk,
// the last campaign is the fallback.
func pickWeighted(eligible []inventory.CampaignRow, randFn RandSource) *inventory.CampaignRow {
	total := 0
	for _, c := range eligible {
		total += weightOf(c)
	}
	r := randFn() * float64(total)
	for i := range eligible {
		r -= float64(weightOf(eligible[i]))
		if r <= 0 {
			picked := eligible[i]
			return &picked
		}
	}
	picked := eligible[len(eligible)-1]
	return &picked
}

func weightOf(c inventory.CampaignRow) int {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}
