// Package models defines database models for the control plane.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BaseModel provides common fields for all models.
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HealthStatus classifies an account's recent reliability.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// MediaType identifies a generation capability.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaText  MediaType = "text"
)

// RuleAction is what a matching routing rule does with a request.
type RuleAction string

const (
	ActionRoute RuleAction = "route"
	ActionDeny  RuleAction = "deny"
)

// FailoverEventType identifies the kind of failover event.
type FailoverEventType string

const (
	EventFailure        FailoverEventType = "failure"
	EventRecovery       FailoverEventType = "recovery"
	EventManualFailover FailoverEventType = "manual_failover"
	EventAutoFailover   FailoverEventType = "auto_failover"
)

// Severity ranks how serious a failover event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// PerformanceCounters holds the recorded request statistics for an account.
// Stored as a JSONB column; a malformed payload scans to the zero value
// rather than failing the query.
type PerformanceCounters struct {
	TotalRequests       int64     `json:"total_requests"`
	SuccessfulRequests  int64     `json:"successful_requests"`
	AvgResponseTimeMs   float64   `json:"avg_response_time_ms"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccessAt       time.Time `json:"last_success_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// SuccessRate returns the fraction of successful requests, defined as 0.9
// when no requests have been recorded yet.
func (c PerformanceCounters) SuccessRate() float64 {
	if c.TotalRequests == 0 {
		return 0.9
	}
	return float64(c.SuccessfulRequests) / float64(c.TotalRequests)
}

// Scan implements sql.Scanner with lenient decoding.
func (c *PerformanceCounters) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// Value implements driver.Valuer.
func (c PerformanceCounters) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Capabilities describes what an account can generate. Stored as JSONB with
// lenient decoding.
type Capabilities struct {
	MediaTypes     []MediaType `json:"media_types"`
	MaxConcurrency int         `json:"max_concurrency,omitempty"`
}

// Supports reports whether the account can serve the given media type.
// An empty capability set supports everything.
func (c Capabilities) Supports(mt MediaType) bool {
	if len(c.MediaTypes) == 0 {
		return true
	}
	for _, m := range c.MediaTypes {
		if m == mt {
			return true
		}
	}
	return false
}

// Scan implements sql.Scanner with lenient decoding.
func (c *Capabilities) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// Value implements driver.Valuer.
func (c Capabilities) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// ProxyAccount is a credential/endpoint pair for one third-party generation
// provider, tracked with its own health and performance history.
//
// Health status, counters and the last-check timestamp are written by the
// health assessor; Enabled is written only by the failover controller or an
// explicit manual override.
type ProxyAccount struct {
	BaseModel
	Name                 string              `gorm:"not null" json:"name"`
	Provider             string              `gorm:"not null;index" json:"provider"`
	EncryptedCredentials string              `gorm:"not null" json:"-"`
	BaseURL              string              `json:"base_url"`
	Region               string              `json:"region"`
	Priority             int                 `gorm:"default:50" json:"priority"` // lower = preferred
	Enabled              bool                `gorm:"default:true;index" json:"enabled"`
	HealthStatus         HealthStatus        `gorm:"default:unknown" json:"health_status"`
	Counters             PerformanceCounters `gorm:"type:jsonb" json:"counters"`
	Capabilities         Capabilities        `gorm:"type:jsonb" json:"capabilities"`
	LastHealthCheckAt    time.Time           `json:"last_health_check_at"`
}

// TimeWindow is a daily time-of-day window in "HH:MM" 24h format. A window
// may wrap midnight (Start > End).
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	start, err1 := time.Parse("15:04", w.Start)
	end, err2 := time.Parse("15:04", w.End)
	if err1 != nil || err2 != nil {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin <= endMin {
		return minutes >= startMin && minutes <= endMin
	}
	return minutes >= startMin || minutes <= endMin
}

// RuleConditions is the condition set of a routing rule. Every present
// condition must be satisfied for the rule to match. Stored as JSONB with
// lenient decoding.
type RuleConditions struct {
	MediaTypes  []MediaType  `json:"media_types,omitempty"`
	Models      []string     `json:"models,omitempty"`
	TimeWindows []TimeWindow `json:"time_windows,omitempty"`
	UserGroups  []string     `json:"user_groups,omitempty"`
}

// Scan implements sql.Scanner with lenient decoding.
func (c *RuleConditions) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// Value implements driver.Valuer.
func (c RuleConditions) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// RoutingRule is a conditional override that pins or excludes a specific
// account for matching requests. Rules are evaluated in ascending priority
// order; the first match wins.
type RoutingRule struct {
	BaseModel
	Name            string         `json:"name"`
	Priority        int            `gorm:"default:100;index" json:"priority"`
	Enabled         bool           `gorm:"default:true;index" json:"enabled"`
	Conditions      RuleConditions `gorm:"type:jsonb" json:"conditions"`
	TargetAccountID *uuid.UUID     `gorm:"type:uuid" json:"target_account_id,omitempty"`
	Action          RuleAction     `gorm:"default:route" json:"action"`
}

// ModelConfig links a logical model name to a primary account and an ordered
// fallback-account list, plus a unit cost per generation.
type ModelConfig struct {
	BaseModel
	ModelName          string                      `gorm:"not null;index" json:"model_name"`
	DisplayName        string                      `json:"display_name"`
	MediaType          MediaType                   `gorm:"not null;index" json:"media_type"`
	AccountID          uuid.UUID                   `gorm:"type:uuid;not null;index" json:"account_id"`
	FallbackAccountIDs datatypes.JSONSlice[string] `json:"fallback_account_ids"`
	UnitCost           float64                     `gorm:"default:0" json:"unit_cost"`
	Enabled            bool                        `gorm:"default:true" json:"enabled"`
}

// FailoverEvent records one failure, failover or recovery against an account.
// Events form a bounded per-account ring; the repository trims old entries.
type FailoverEvent struct {
	BaseModel
	AccountID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"account_id"`
	EventType        FailoverEventType `gorm:"not null;index" json:"event_type"`
	Reason           string            `json:"reason"`
	Severity         Severity          `gorm:"default:medium" json:"severity"`
	Resolved         bool              `gorm:"default:false;index" json:"resolved"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
	ResolutionMethod string            `json:"resolution_method,omitempty"`
	Details          datatypes.JSON    `json:"details,omitempty"`
}

// scanJSON decodes a JSON column into dst, resetting dst to its zero value on
// malformed payloads instead of returning an error. Corrupt persisted blobs
// must never fail a read.
func scanJSON[T any](value interface{}, dst *T) error {
	var zero T
	*dst = zero
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported JSON column type")
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		*dst = zero
	}
	return nil
}
