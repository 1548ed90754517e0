package repository

import (
	"context"
	"time"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
)

// AlertRuleRepository handles alert rule CRUD and history operations.
type AlertRuleRepository interface {
	// Rule CRUD
	ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error)
	GetRule(ctx context.Context, id uint) (*entities.AlertRule, error)
	CreateRule(ctx context.Context, rule *entities.AlertRule) error
	DeactivateRule(ctx context.Context, id uint) error

	// ActiveRules returns the active rules watching one metric of one sensor.
	ActiveRules(ctx context.Context, sensorID uint, metric string) ([]entities.AlertRule, error)

	// History
	SaveHistory(ctx context.Context, history *entities.AlertHistory) error
	// RecentHistory returns entries of a rule triggered strictly after since,
	// newest first.
	RecentHistory(ctx context.Context, ruleID uint, since time.Time) ([]entities.AlertHistory, error)
	ListHistory(ctx context.Context, filter AlertHistoryFilter) ([]entities.AlertHistory, int64, error)
	DeleteHistoryBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertRuleFilter controls rule listing queries.
type AlertRuleFilter struct {
	SensorID uint
	Metric   string
	Active   *bool
}

// AlertHistoryFilter controls history listing queries.
type AlertHistoryFilter struct {
	RuleID uint
	Limit  int
	Offset int
}
