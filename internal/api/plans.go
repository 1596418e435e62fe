package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/storyforge-cloud/email-capture-service/internal/store"
)

// Plan mirrors the app backend's plan shape; the landing page renders these
// into pricing cards.
type Plan struct {
	ID               string                 `json:"id"`
	PlanID           string                 `json:"plan_id"`
	Name             string                 `json:"name"`
	Description      *string                `json:"description"`
	Tier             string                 `json:"tier"`
	CheckIntervalMin int                    `json:"check_interval_min"`
	CheckIntervalMax int                    `json:"check_interval_max"`
	MaxProfiles      int                    `json:"max_profiles"`
	HasAI            bool                   `json:"has_ai"`
	PriceAmount      *float64               `json:"price_amount"`
	PriceCurrency    *string                `json:"price_currency"`
	SortOrder        int                    `json:"sort_order"`
	Features         map[string]PlanFeature `json:"features"`
}

type PlanFeature struct {
	FeatureName  string `json:"feature_name"`
	FeatureValue any    `json:"feature_value"`
	FeatureType  string `json:"feature_type"`
}

type PlansResponse struct {
	Plans  []Plan `json:"plans"`
	Source string `json:"source"`
}

// PlansHandler proxies the app backend's public plan list with a short Redis
// cache, falling back to the hardcoded tiers when the upstream is down.
type PlansHandler struct {
	cache       *store.RedisStore
	upstreamURL string
	cacheTTL    time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewPlansHandler(cache *store.RedisStore, upstreamURL string, cacheTTL time.Duration, logger *slog.Logger) *PlansHandler {
	return &PlansHandler{
		cache:       cache,
		upstreamURL: upstreamURL,
		cacheTTL:    cacheTTL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cached, err := h.cache.CachedPlans(ctx); err == nil && cached != nil {
		writeRawJSON(w, cached)
		return
	} else if err != nil {
		h.logger.Warn("plans cache read failed", "error", err)
	}

	body, err := h.fetchUpstream(ctx)
	if err != nil {
		h.logger.Warn("falling back to hardcoded plans", "error", err)
		respondJSON(w, http.StatusOK, fallbackPlans())
		return
	}

	if err := h.cache.CachePlans(ctx, body, h.cacheTTL); err != nil {
		h.logger.Warn("plans cache write failed", "error", err)
	}

	writeRawJSON(w, body)
}

// fetchUpstream fetches the plan list from the app backend and validates that
// it decodes into the expected shape before passing it through.
func (h *PlansHandler) fetchUpstream(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.upstreamURL+"/api/plans", nil)
	if err != nil {
		return nil, fmt.Errorf("building plans request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching plans: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching plans: upstream returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading plans response: %w", err)
	}

	var parsed PlansResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding plans response: %w", err)
	}
	if len(parsed.Plans) == 0 {
		return nil, fmt.Errorf("upstream returned no plans")
	}

	return body, nil
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// fallbackPlans returns the static tier list shown when the app backend is
// unreachable. Values track the published pricing page.
func fallbackPlans() PlansResponse {
	return PlansResponse{
		Source: "hardcoded",
		Plans: []Plan{
			{
				ID:               "free",
				PlanID:           "free",
				Name:             "Free",
				Description:      strPtr("Perfect for getting started"),
				Tier:             "free",
				CheckIntervalMin: 60,
				CheckIntervalMax: 60,
				MaxProfiles:      2,
				PriceAmount:      floatPtr(0),
				PriceCurrency:    strPtr("USD"),
				SortOrder:        0,
			},
			{
				ID:               "starter",
				PlanID:           "starter",
				Name:             "Starter",
				Description:      strPtr("For casual users"),
				Tier:             "starter",
				CheckIntervalMin: 30,
				CheckIntervalMax: 60,
				MaxProfiles:      5,
				PriceAmount:      floatPtr(4.99),
				PriceCurrency:    strPtr("USD"),
				SortOrder:        1,
			},
			{
				ID:               "pro",
				PlanID:           "pro",
				Name:             "Pro",
				Description:      strPtr("Most popular for professionals"),
				Tier:             "pro",
				CheckIntervalMin: 15,
				CheckIntervalMax: 30,
				MaxProfiles:      10,
				HasAI:            true,
				PriceAmount:      floatPtr(9.99),
				PriceCurrency:    strPtr("USD"),
				SortOrder:        2,
			},
			{
				ID:               "enterprise",
				PlanID:           "enterprise",
				Name:             "Pro+",
				Description:      strPtr("For teams and power users"),
				Tier:             "enterprise",
				CheckIntervalMin: 5,
				CheckIntervalMax: 15,
				MaxProfiles:      15,
				HasAI:            true,
				PriceAmount:      floatPtr(19.99),
				PriceCurrency:    strPtr("USD"),
				SortOrder:        3,
			},
		},
	}
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
