// Package repository provides database access layer.
package repository

import (
	"context"
	"time"

	"proxy-router-platform/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountFilter narrows account listings.
type AccountFilter struct {
	Enabled  *bool
	Provider string
}

// AccountRepository handles proxy account data access.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.ProxyAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProxyAccount, error) {
	var account models.ProxyAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// List retrieves accounts matching the filter.
func (r *AccountRepository) List(ctx context.Context, filter AccountFilter) ([]models.ProxyAccount, error) {
	var accounts []models.ProxyAccount
	query := r.db.WithContext(ctx)
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if err := query.Order("priority ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListEnabled retrieves all enabled accounts.
func (r *AccountRepository) ListEnabled(ctx context.Context) ([]models.ProxyAccount, error) {
	enabled := true
	return r.List(ctx, AccountFilter{Enabled: &enabled})
}

// Update updates an account.
func (r *AccountRepository) Update(ctx context.Context, account *models.ProxyAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ProxyAccount{}, "id = ?", id).Error
}

// SetEnabled flips the routing-pool membership of an account. Only the
// failover controller and manual overrides call this.
func (r *AccountRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return r.db.WithContext(ctx).
		Model(&models.ProxyAccount{}).
		Where("id = ?", id).
		Update("enabled", enabled).Error
}

// UpdateHealth writes the health classification back to the account. Only
// the health assessor calls this.
func (r *AccountRepository) UpdateHealth(ctx context.Context, id uuid.UUID, status models.HealthStatus, checkedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ProxyAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"health_status":        status,
			"last_health_check_at": checkedAt,
		}).Error
}

// RecordSuccess folds a successful request into the account's counters.
func (r *AccountRepository) RecordSuccess(ctx context.Context, id uuid.UUID, responseTimeMs float64) error {
	return r.recordOutcome(ctx, id, true, responseTimeMs, "")
}

// RecordFailure folds a failed request into the account's counters.
func (r *AccountRepository) RecordFailure(ctx context.Context, id uuid.UUID, responseTimeMs float64, reason string) error {
	return r.recordOutcome(ctx, id, false, responseTimeMs, reason)
}

func (r *AccountRepository) recordOutcome(ctx context.Context, id uuid.UUID, success bool, responseTimeMs float64, reason string) error {
	account, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	c := account.Counters
	c.TotalRequests++
	if success {
		c.SuccessfulRequests++
		c.ConsecutiveFailures = 0
		c.LastSuccessAt = time.Now()
		c.LastError = ""
	} else {
		c.ConsecutiveFailures++
		c.LastError = reason
	}
	if c.TotalRequests > 0 {
		c.AvgResponseTimeMs = (c.AvgResponseTimeMs*float64(c.TotalRequests-1) + responseTimeMs) / float64(c.TotalRequests)
	}
	account.Counters = c

	return r.db.WithContext(ctx).
		Model(&models.ProxyAccount{}).
		Where("id = ?", id).
		Update("counters", c).Error
}

// RoutingRuleRepository handles routing rule data access.
type RoutingRuleRepository struct {
	db *gorm.DB
}

// NewRoutingRuleRepository creates a new routing rule repository.
func NewRoutingRuleRepository(db *gorm.DB) *RoutingRuleRepository {
	return &RoutingRuleRepository{db: db}
}

// Create inserts a new rule.
func (r *RoutingRuleRepository) Create(ctx context.Context, rule *models.RoutingRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// GetByID retrieves a rule by ID.
func (r *RoutingRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RoutingRule, error) {
	var rule models.RoutingRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListEnabled retrieves enabled rules in ascending priority order, the order
// the router evaluates them in.
func (r *RoutingRuleRepository) ListEnabled(ctx context.Context) ([]models.RoutingRule, error) {
	var rules []models.RoutingRule
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("priority ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// ListAll retrieves all rules.
func (r *RoutingRuleRepository) ListAll(ctx context.Context) ([]models.RoutingRule, error) {
	var rules []models.RoutingRule
	if err := r.db.WithContext(ctx).Order("priority ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Update updates a rule.
func (r *RoutingRuleRepository) Update(ctx context.Context, rule *models.RoutingRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Delete removes a rule.
func (r *RoutingRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.RoutingRule{}, "id = ?", id).Error
}

// ModelConfigRepository handles model binding data access.
type ModelConfigRepository struct {
	db *gorm.DB
}

// NewModelConfigRepository creates a new model config repository.
func NewModelConfigRepository(db *gorm.DB) *ModelConfigRepository {
	return &ModelConfigRepository{db: db}
}

// Create inserts a new model config.
func (r *ModelConfigRepository) Create(ctx context.Context, mc *models.ModelConfig) error {
	return r.db.WithContext(ctx).Create(mc).Error
}

// GetByID retrieves a model config by ID.
func (r *ModelConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ModelConfig, error) {
	var mc models.ModelConfig
	if err := r.db.WithContext(ctx).First(&mc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &mc, nil
}

// GetByAccountAndName retrieves a specific model binding on an account.
func (r *ModelConfigRepository) GetByAccountAndName(ctx context.Context, accountID uuid.UUID, modelName string) (*models.ModelConfig, error) {
	var mc models.ModelConfig
	if err := r.db.WithContext(ctx).
		First(&mc, "account_id = ? AND model_name = ? AND enabled = ?", accountID, modelName, true).Error; err != nil {
		return nil, err
	}
	return &mc, nil
}

// ListEnabledByAccount retrieves enabled bindings for an account and media
// type, cheapest first.
func (r *ModelConfigRepository) ListEnabledByAccount(ctx context.Context, accountID uuid.UUID, mediaType models.MediaType) ([]models.ModelConfig, error) {
	var mcs []models.ModelConfig
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND media_type = ? AND enabled = ?", accountID, mediaType, true).
		Order("unit_cost ASC").
		Find(&mcs).Error; err != nil {
		return nil, err
	}
	return mcs, nil
}

// ListAll retrieves all model configs.
func (r *ModelConfigRepository) ListAll(ctx context.Context) ([]models.ModelConfig, error) {
	var mcs []models.ModelConfig
	if err := r.db.WithContext(ctx).Find(&mcs).Error; err != nil {
		return nil, err
	}
	return mcs, nil
}

// Update updates a model config.
func (r *ModelConfigRepository) Update(ctx context.Context, mc *models.ModelConfig) error {
	return r.db.WithContext(ctx).Save(mc).Error
}

// Delete removes a model config.
func (r *ModelConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ModelConfig{}, "id = ?", id).Error
}
