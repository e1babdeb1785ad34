package inventory

const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// CampaignRow is one validated advertising offer from the network_ads tab.
type CampaignRow struct {
	CampaignID      string
	Status          string // "active" | "paused"
	Weight          int    // >= 1
	BrandName       string
	Headline        string
	Subline         string
	SiteURL         string
	LogoURL         string
	CTALabel        string
	CTAURL          string
	CTAType         string
	WhatsAppURL     string
	InstagramURL    string
	CompetitorGroup string
	TargetGroups    []string // nil = no constraint; parsed but unused by selection in v1
	StartDate       string   // YYYY-MM-DD inclusive, "" = unbounded
	EndDate         string   // YYYY-MM-DD inclusive, "" = unbounded
}

// SiteRow is one publisher surface from the network_sites tab.
type SiteRow struct {
	SiteID                  string
	Status                  string // "active" | "paused"
	BlockedCompetitorGroups []string
	Groups                  []string // parsed but unused by selection in v1
}

// Inventory is the unit of caching: one consistent fetch of both tabs.
// Immutable once constructed; superseded, never mutated.
type Inventory struct {
	Campaigns []CampaignRow
	Sites     []SiteRow
}

// SiteByID returns the site with the given id, or nil.
func (inv *Inventory) SiteByID(id string) *SiteRow {
	for i := range inv.Sites {
		if inv.Sites[i].SiteID == id {
			return &inv.Sites[i]
		}
	}
	return nil
}
