// Package alerting evaluates threshold rules against incoming readings and
// notifies when a rule fires.
package alerting

import "time"

const componentName = "alerting"

const (
	// DefaultCooldown is the minimum gap between two notifications of the same
	// rule when no cooldown is configured.
	DefaultCooldown = 60 * time.Minute

	// cleanupTimeout is the context deadline for the periodic history deletion.
	cleanupTimeout = 5 * time.Second
	// cleanupInterval is how often the history cleanup goroutine runs.
	cleanupInterval = 1 * time.Hour
)

// Directions used in rendered messages.
const (
	directionAbove = "above"
	directionBelow = "below"
)

// Target labels used in logs and broadcast results.
const (
	labelRuleEmail = "rule-email"
	labelChannel   = "channel:%d"
)
