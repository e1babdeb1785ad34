package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"sponsor-dock/internal/config"
	"sponsor-dock/internal/inventory"
)

// Store reads the two inventory tabs from the backing Google spreadsheet
// using a read-only service-account credential. It performs no writes.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
	adsTab        string
	sitesTab      string
	timeout       time.Duration
	limiter       *rate.Limiter
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	if cfg.Sheets.SpreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id not configured")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: init service: %w", err)
	}

	return &Store{
		svc:           svc,
		spreadsheetID: cfg.Sheets.SpreadsheetID,
		adsTab:        cfg.Sheets.AdsTab,
		sitesTab:      cfg.Sheets.SitesTab,
		timeout:       cfg.FetchTimeout(),
		limiter:       rate.NewLimiter(rate.Limit(1), 5), // stay under API quota
	}, nil
}

func credentials(cfg config.Config) ([]byte, error) {
	if cfg.Sheets.CredentialsJSON != "" {
		return []byte(cfg.Sheets.CredentialsJSON), nil
	}
	if cfg.Sheets.CredentialsFile != "" {
		b, err := os.ReadFile(cfg.Sheets.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("sheets: read credentials file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("sheets: service-account credential not configured")
}

// FetchInventory reads both tabs in one batch call and maps them into a
// validated Inventory. Malformed rows are excluded, not reported as errors;
// upstream failures surface to the caller.
func (s *Store) FetchInventory(ctx context.Context) (*inventory.Inventory, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sheets: rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.svc.Spreadsheets.Values.
		BatchGet(s.spreadsheetID).
		Ranges(s.adsTab, s.sitesTab).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: batch get: %w", err)
	}
	if len(resp.ValueRanges) != 2 {
		return nil, fmt.Errorf("sheets: expected 2 ranges, got %d", len(resp.ValueRanges))
	}

	campaigns, badAds := inventory.MapCampaigns(grid(resp.ValueRanges[0]))
	sites, badSites := inventory.MapSites(grid(resp.ValueRanges[1]))

	log.Info().
		Int("campaigns", len(campaigns)).
		Int("sites", len(sites)).
		Int("rejected_campaigns", badAds).
		Int("rejected_sites", badSites).
		Msg("inventory fetched")

	return &inventory.Inventory{Campaigns: campaigns, Sites: sites}, nil
}

// grid flattens a value range into the string grid the mapper expects.
func grid(vr *sheets.ValueRange) [][]string {
	out := make([][]string, 0, len(vr.Values))
	for _, r := range vr.Values {
		cells := make([]string, 0, len(r))
		for _, v := range r {
			cells = append(cells, cellString(v))
		}
		out = append(out, cells)
	}
	return out
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
