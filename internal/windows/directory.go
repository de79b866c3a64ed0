package windows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mselser95/updown-bot/pkg/cache"
	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

// Directory resolves window slugs into tradable markets and answers
// settlement queries against the Polymarket Gamma API.
//
// Both lookups return sentinel errors from pkg/types for the ordinary
// not-found / closed / unresolved cases; a non-sentinel error means the
// query itself failed (network, malformed payload) and callers treat it
// as "no information yet".
type Directory struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// DirectoryConfig holds directory configuration.
type DirectoryConfig struct {
	BaseURL  string
	Cache    cache.Cache // optional
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewDirectory creates a new market directory client.
func NewDirectory(cfg *DirectoryConfig) *Directory {
	return &Directory{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
	}
}

// gammaMarket mirrors the Gamma API market payload. Outcomes and token ids
// arrive as JSON-encoded string arrays inside string fields.
type gammaMarket struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	ConditionID   string    `json:"conditionId"`
	Closed        bool      `json:"closed"`
	Active        bool      `json:"active"`
	EndDate       time.Time `json:"endDate"`
	Outcomes      string    `json:"outcomes"`
	ClobTokenIDs  string    `json:"clobTokenIds"`
	OutcomePrices string    `json:"outcomePrices"`
}

// ResolveWindow maps a window slug to its market. Returns
// types.ErrWindowNotFound when the directory has no market for the slug and
// types.ErrWindowClosed when the market exists but is no longer tradable.
func (d *Directory) ResolveWindow(ctx context.Context, slug string) (*types.Market, error) {
	ResolveRequestsTotal.Inc()

	if d.cache != nil {
		if value, found := d.cache.Get(slug); found {
			if market, ok := value.(*types.Market); ok {
				return market, nil
			}
		}
	}

	gm, err := d.fetchMarket(ctx, slug)
	if err != nil {
		if !errors.Is(err, types.ErrWindowNotFound) {
			ResolveErrorsTotal.Inc()
		}
		return nil, err
	}

	if gm.Closed || !gm.Active {
		return nil, fmt.Errorf("window %s: %w", slug, types.ErrWindowClosed)
	}

	market, err := marketFromGamma(gm)
	if err != nil {
		ResolveErrorsTotal.Inc()
		return nil, fmt.Errorf("window %s: %w", slug, err)
	}

	if d.cache != nil {
		d.cache.Set(slug, market, d.cacheTTL)
	}

	d.logger.Debug("window-resolved",
		zap.String("slug", slug),
		zap.String("condition-id", market.ConditionID))

	return market, nil
}

// CheckSettlement queries the authoritative settlement for a window.
// Returns the winning side once the exchange has declared one, or
// types.ErrSettlementPending while the window is still unresolved.
func (d *Directory) CheckSettlement(ctx context.Context, slug string) (types.Side, error) {
	SettlementChecksTotal.Inc()

	gm, err := d.fetchMarket(ctx, slug)
	if err != nil {
		return types.SideNone, err
	}

	if !gm.Closed {
		return types.SideNone, fmt.Errorf("window %s: %w", slug, types.ErrSettlementPending)
	}

	winner, err := winningSide(gm)
	if err != nil {
		return types.SideNone, fmt.Errorf("window %s: %w", slug, err)
	}
	if winner == types.SideNone {
		// Closed but prices not yet final: still pending.
		return types.SideNone, fmt.Errorf("window %s: %w", slug, types.ErrSettlementPending)
	}

	SettlementsResolvedTotal.Inc()

	d.logger.Debug("settlement-resolved",
		zap.String("slug", slug),
		zap.String("winner", string(winner)))

	return winner, nil
}

// fetchMarket retrieves a single market by slug.
func (d *Directory) fetchMarket(ctx context.Context, slug string) (*gammaMarket, error) {
	params := url.Values{}
	params.Add("slug", slug)
	requestURL := fmt.Sprintf("%s/markets?%s", d.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "updown-bot/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("window %s: %w", slug, types.ErrWindowNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	// Gamma returns a direct array for slug queries.
	var markets []gammaMarket
	err = json.Unmarshal(body, &markets)
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(markets) == 0 {
		return nil, fmt.Errorf("window %s: %w", slug, types.ErrWindowNotFound)
	}

	return &markets[0], nil
}

// marketFromGamma converts a Gamma payload into the domain market,
// matching Up/Down outcomes to their token ids.
func marketFromGamma(gm *gammaMarket) (*types.Market, error) {
	outcomes, err := parseStringArray(gm.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("parse outcomes: %w", err)
	}

	tokenIDs, err := parseStringArray(gm.ClobTokenIDs)
	if err != nil {
		return nil, fmt.Errorf("parse clobTokenIds: %w", err)
	}

	if len(outcomes) != 2 || len(tokenIDs) != 2 {
		return nil, fmt.Errorf("expected 2 outcomes and 2 tokens, got %d/%d", len(outcomes), len(tokenIDs))
	}

	market := &types.Market{
		Slug:        gm.Slug,
		ConditionID: gm.ConditionID,
		EndDate:     gm.EndDate,
	}

	for i, outcome := range outcomes {
		switch sideFromOutcome(outcome) {
		case types.SideUp:
			market.UpTokenID = tokenIDs[i]
		case types.SideDown:
			market.DownTokenID = tokenIDs[i]
		}
	}

	if market.UpTokenID == "" || market.DownTokenID == "" {
		return nil, fmt.Errorf("missing Up or Down outcome in %v", outcomes)
	}

	return market, nil
}

// winningSide reads the declared settlement from outcomePrices: the winning
// outcome's price is 1. Returns SideNone when no outcome has settled at 1.
func winningSide(gm *gammaMarket) (types.Side, error) {
	if gm.OutcomePrices == "" {
		return types.SideNone, nil
	}

	outcomes, err := parseStringArray(gm.Outcomes)
	if err != nil {
		return types.SideNone, fmt.Errorf("parse outcomes: %w", err)
	}

	prices, err := parseStringArray(gm.OutcomePrices)
	if err != nil {
		return types.SideNone, fmt.Errorf("parse outcomePrices: %w", err)
	}

	if len(prices) != len(outcomes) {
		return types.SideNone, fmt.Errorf("outcome/price length mismatch: %d/%d", len(outcomes), len(prices))
	}

	for i, priceStr := range prices {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return types.SideNone, fmt.Errorf("parse outcome price %q: %w", priceStr, err)
		}
		if price == 1 {
			return sideFromOutcome(outcomes[i]), nil
		}
	}

	return types.SideNone, nil
}

func sideFromOutcome(outcome string) types.Side {
	switch strings.ToLower(outcome) {
	case "up", "yes":
		return types.SideUp
	case "down", "no":
		return types.SideDown
	default:
		return types.SideNone
	}
}

func parseStringArray(raw string) ([]string, error) {
	var values []string
	err := json.Unmarshal([]byte(raw), &values)
	if err != nil {
		return nil, err
	}
	return values, nil
}
