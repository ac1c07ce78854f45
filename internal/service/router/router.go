package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"proxy-router-platform/internal/clock"
	"proxy-router-platform/internal/config"
	"proxy-router-platform/internal/metrics"
	"proxy-router-platform/internal/models"
	"proxy-router-platform/internal/service/health"
	"proxy-router-platform/internal/service/provider"
)

var (
	// ErrNoCandidates indicates no enabled account supports the request.
	ErrNoCandidates = errors.New("no enabled accounts available for request")
	// ErrNoHealthyCandidates indicates candidates exist but none passed the health filter.
	ErrNoHealthyCandidates = errors.New("no healthy accounts available for request")
)

// RequestContext describes a single generation request to be routed.
type RequestContext struct {
	MediaType     models.MediaType `json:"media_type"`
	Model         string           `json:"model,omitempty"`
	Prompt        string           `json:"prompt,omitempty"`
	UserID        string           `json:"user_id,omitempty"`
	UserGroups    []string         `json:"user_groups,omitempty"`
	MaxCost       float64          `json:"max_cost,omitempty"`
	Region        string           `json:"region,omitempty"`
	PriorityClass string           `json:"priority_class,omitempty"`
}

// RoutingDecision is the outcome of a Route call.
type RoutingDecision struct {
	Account                 *models.ProxyAccount  `json:"account"`
	Model                   *models.ModelConfig   `json:"model,omitempty"`
	EstimatedCost           float64               `json:"estimated_cost"`
	EstimatedResponseTimeMs float64               `json:"estimated_response_time_ms"`
	Reason                  string                `json:"reason"`
	Alternates              []models.ProxyAccount `json:"alternates,omitempty"`
}

// AccountStore is the account lookup surface the router depends on.
type AccountStore interface {
	ListEnabled(ctx context.Context) ([]models.ProxyAccount, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProxyAccount, error)
}

// RuleStore lists routing rules in ascending priority order.
type RuleStore interface {
	ListEnabled(ctx context.Context) ([]models.RoutingRule, error)
}

// ModelStore resolves model bindings for an account.
type ModelStore interface {
	GetByAccountAndName(ctx context.Context, accountID uuid.UUID, name string) (*models.ModelConfig, error)
	ListEnabledByAccount(ctx context.Context, accountID uuid.UUID, mediaType models.MediaType) ([]models.ModelConfig, error)
}

// HealthSource provides fresh health assessments on cache misses.
type HealthSource interface {
	Probe(ctx context.Context, accountID uuid.UUID) health.Result
}

// Router selects the best proxy account for a request by applying routing
// rules, filtering on health, and scoring the survivors.
type Router struct {
	accounts AccountStore
	rules    RuleStore
	models   ModelStore
	source   HealthSource
	cache    *health.ResultCache
	registry *provider.Registry
	cfg      config.ScoringConfig
	clk      clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewRouter creates a router with its dependencies injected.
func NewRouter(
	accounts AccountStore,
	rules RuleStore,
	modelStore ModelStore,
	source HealthSource,
	cache *health.ResultCache,
	registry *provider.Registry,
	cfg config.ScoringConfig,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Router {
	return &Router{
		accounts: accounts,
		rules:    rules,
		models:   modelStore,
		source:   source,
		cache:    cache,
		registry: registry,
		cfg:      cfg,
		clk:      clk,
		metrics:  m,
		logger:   logger,
	}
}

// Route picks the best account for the request. Candidates start as all
// enabled accounts that support the media type, routing rules narrow or
// exclude them, unhealthy accounts are dropped, and the highest-scoring
// survivor wins. Up to two runners-up are returned as alternates.
func (r *Router) Route(ctx context.Context, req RequestContext) (*RoutingDecision, error) {
	enabled, err := r.accounts.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	candidates := make([]models.ProxyAccount, 0, len(enabled))
	for _, acc := range enabled {
		if acc.Capabilities.Supports(req.MediaType) {
			candidates = append(candidates, acc)
		}
	}
	if len(candidates) == 0 {
		r.countFailure("no_candidates")
		return nil, ErrNoCandidates
	}

	candidates, pinned, err := r.applyRules(ctx, req, candidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		r.countFailure("no_candidates")
		return nil, ErrNoCandidates
	}

	type scored struct {
		account models.ProxyAccount
		result  health.Result
		score   float64
	}
	survivors := make([]scored, 0, len(candidates))
	for _, acc := range candidates {
		res := r.healthOf(ctx, acc.ID)
		if !res.IsHealthy {
			continue
		}
		survivors = append(survivors, scored{account: acc, result: res})
	}
	if len(survivors) == 0 {
		r.countFailure("no_healthy_candidates")
		return nil, ErrNoHealthyCandidates
	}

	for i := range survivors {
		avgCost := r.averageCost(ctx, survivors[i].account.ID, req.MediaType)
		survivors[i].score = r.score(survivors[i].account, survivors[i].result, req, avgCost)
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].score > survivors[j].score
	})

	best := survivors[0]
	modelCfg := r.selectModel(ctx, &best.account, req)

	decision := &RoutingDecision{
		Account:                 &best.account,
		Model:                   modelCfg,
		EstimatedResponseTimeMs: best.result.ResponseTimeMs,
		Reason:                  r.reason(best.account, best.result, req, pinned),
	}
	if modelCfg != nil {
		decision.EstimatedCost = modelCfg.UnitCost
	}
	for _, alt := range survivors[1:] {
		decision.Alternates = append(decision.Alternates, alt.account)
		if len(decision.Alternates) == 2 {
			break
		}
	}

	if r.metrics != nil {
		r.metrics.RoutingDecisionsTotal.WithLabelValues(best.account.Provider).Inc()
	}
	r.logger.Debug("routing decision",
		zap.String("account", best.account.Name),
		zap.String("provider", best.account.Provider),
		zap.Float64("score", best.score),
		zap.Int("alternates", len(decision.Alternates)))
	return decision, nil
}

// applyRules evaluates enabled rules in ascending priority order. The first
// matching route rule whose target is enabled and healthy pins routing to
// that account; a route rule with an unusable target is skipped so later
// rules and normal scoring still apply. Deny rules remove their target from
// the candidate set.
func (r *Router) applyRules(ctx context.Context, req RequestContext, candidates []models.ProxyAccount) ([]models.ProxyAccount, bool, error) {
	rules, err := r.rules.ListEnabled(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list routing rules: %w", err)
	}

	for _, rule := range rules {
		if !r.matches(rule.Conditions, req) {
			continue
		}
		switch rule.Action {
		case models.ActionDeny:
			if rule.TargetAccountID == nil {
				continue
			}
			filtered := candidates[:0]
			for _, acc := range candidates {
				if acc.ID != *rule.TargetAccountID {
					filtered = append(filtered, acc)
				}
			}
			candidates = filtered
		case models.ActionRoute:
			if rule.TargetAccountID == nil {
				continue
			}
			target := findAccount(candidates, *rule.TargetAccountID)
			if target == nil {
				r.logger.Debug("route rule target not a candidate, skipping rule",
					zap.String("rule", rule.Name))
				continue
			}
			if !r.healthOf(ctx, target.ID).IsHealthy {
				r.logger.Debug("route rule target unhealthy, skipping rule",
					zap.String("rule", rule.Name),
					zap.String("target", target.Name))
				continue
			}
			return []models.ProxyAccount{*target}, true, nil
		}
	}
	return candidates, false, nil
}

// matches reports whether the request satisfies every populated condition
// on the rule. Empty condition lists match everything.
func (r *Router) matches(c models.RuleConditions, req RequestContext) bool {
	if len(c.MediaTypes) > 0 && !containsMediaType(c.MediaTypes, req.MediaType) {
		return false
	}
	if len(c.Models) > 0 {
		if req.Model == "" || !containsString(c.Models, req.Model) {
			return false
		}
	}
	if len(c.TimeWindows) > 0 && !r.inAnyWindow(c.TimeWindows) {
		return false
	}
	if len(c.UserGroups) > 0 && !overlaps(c.UserGroups, req.UserGroups) {
		return false
	}
	return true
}

func (r *Router) inAnyWindow(windows []models.TimeWindow) bool {
	now := r.clk.Now()
	for _, w := range windows {
		if w.Contains(now) {
			return true
		}
	}
	return false
}

// healthOf returns the cached assessment for the account, probing on a miss.
func (r *Router) healthOf(ctx context.Context, id uuid.UUID) health.Result {
	if r.cache != nil {
		if res, ok := r.cache.Get(id); ok {
			return res
		}
	}
	return r.source.Probe(ctx, id)
}

// score computes the composite routing score for an account.
func (r *Router) score(acc models.ProxyAccount, res health.Result, req RequestContext, avgCost float64) float64 {
	score := float64(100-acc.Priority) * r.cfg.PriorityWeight

	if res.IsHealthy {
		score += r.cfg.HealthyBonus
	} else {
		score += r.cfg.UnhealthyPenalty
	}

	perf := clamp((1000-res.ResponseTimeMs)/1000*10, 0, 10)
	perf += res.SuccessRate * 10
	score += perf

	score += clamp((100-avgCost)/100*10, 0, 10)

	if req.Region != "" && acc.Region == req.Region {
		score += r.cfg.RegionBonus
	}
	return score
}

// averageCost returns the mean unit cost of the account's enabled model
// bindings for the media type, or zero when it has none.
func (r *Router) averageCost(ctx context.Context, accountID uuid.UUID, mediaType models.MediaType) float64 {
	bindings, err := r.models.ListEnabledByAccount(ctx, accountID, mediaType)
	if err != nil || len(bindings) == 0 {
		return 0
	}
	var total float64
	for _, b := range bindings {
		total += b.UnitCost
	}
	return total / float64(len(bindings))
}

// selectModel resolves the model binding for the chosen account. An
// explicitly requested model wins when the account carries it, then the
// cheapest enabled binding for the media type, then the provider default.
// MaxCost, when set, excludes bindings above the budget.
func (r *Router) selectModel(ctx context.Context, acc *models.ProxyAccount, req RequestContext) *models.ModelConfig {
	if req.Model != "" {
		if mc, err := r.models.GetByAccountAndName(ctx, acc.ID, req.Model); err == nil && mc != nil && mc.Enabled {
			return mc
		}
	}

	bindings, err := r.models.ListEnabledByAccount(ctx, acc.ID, req.MediaType)
	if err == nil {
		for i := range bindings {
			if req.MaxCost > 0 && bindings[i].UnitCost > req.MaxCost {
				continue
			}
			return &bindings[i]
		}
	}

	if def, ok := r.registry.Default(acc.Provider, req.MediaType); ok {
		if req.MaxCost > 0 && def.UnitCost > req.MaxCost {
			return nil
		}
		return &models.ModelConfig{
			ModelName: def.Model,
			MediaType: req.MediaType,
			AccountID: acc.ID,
			UnitCost:  def.UnitCost,
			Enabled:   true,
		}
	}
	return nil
}

// reason builds a human-readable explanation for the decision.
func (r *Router) reason(acc models.ProxyAccount, res health.Result, req RequestContext, pinned bool) string {
	parts := []string{fmt.Sprintf("Priority %d", acc.Priority)}
	if pinned {
		parts = append(parts, "Matched routing rule")
	}
	parts = append(parts, capitalize(string(res.Status)))
	parts = append(parts, fmt.Sprintf("%.0f%% success rate", res.SuccessRate*100))
	if req.Region != "" && acc.Region == req.Region {
		parts = append(parts, "Region match")
	}
	return strings.Join(parts, ", ")
}

func (r *Router) countFailure(reason string) {
	if r.metrics != nil {
		r.metrics.RoutingFailuresTotal.WithLabelValues(reason).Inc()
	}
}

func findAccount(accounts []models.ProxyAccount, id uuid.UUID) *models.ProxyAccount {
	for i := range accounts {
		if accounts[i].ID == id {
			return &accounts[i]
		}
	}
	return nil
}

func containsMediaType(types []models.MediaType, t models.MediaType) bool {
	for _, mt := range types {
		if mt == t {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
