package alerting

import (
	"context"
	"fmt"

	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/notification"
)

// Broadcaster abstracts the notification dispatcher for testability.
type Broadcaster interface {
	Broadcast(ctx context.Context, targets []notification.Target, msg notification.Message) []notification.Result
}

// ChannelLister returns the notification channels currently enabled.
type ChannelLister interface {
	ListEnabled(ctx context.Context) ([]entities.NotificationChannel, error)
}

// ActionDispatcher routes a fired rule to its recipient email and every
// enabled notification channel.
type ActionDispatcher struct {
	channels    ChannelLister
	broadcaster Broadcaster
	log         logger.Logger
}

// NewActionDispatcher creates a new ActionDispatcher.
func NewActionDispatcher(channels ChannelLister, broadcaster Broadcaster, log logger.Logger) *ActionDispatcher {
	return &ActionDispatcher{
		channels:    channels,
		broadcaster: broadcaster,
		log:         log.Module(componentName),
	}
}

// Dispatch implements ActionFunc.
func (d *ActionDispatcher) Dispatch(ctx context.Context, rule *entities.AlertRule, event *AlertEvent) []notification.Result {
	targets := d.Targets(ctx, rule)
	if len(targets) == 0 {
		d.log.Warn("alert rule has no notification targets",
			logger.Uint64("rule_id", uint64(rule.ID)))
		return nil
	}

	subject, body := FormatMessage(rule, event)
	return d.broadcaster.Broadcast(ctx, targets, notification.Message{Subject: subject, Body: body})
}

// Targets lists where a rule's notification goes. A failure to load channels
// is logged and leaves only the rule's own email.
func (d *ActionDispatcher) Targets(ctx context.Context, rule *entities.AlertRule) []notification.Target {
	var targets []notification.Target
	if rule.Email != "" {
		targets = append(targets, notification.Target{
			Type:   notification.TypeEmail,
			Config: notification.Config{"address": rule.Email},
			Label:  labelRuleEmail,
		})
	}

	if d.channels == nil {
		return targets
	}
	channels, err := d.channels.ListEnabled(ctx)
	if err != nil {
		d.log.Error("failed to load notification channels",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.Error(err))
		return targets
	}
	for i := range channels {
		ch := &channels[i]
		targets = append(targets, notification.Target{
			Type:   ch.ChannelType,
			Config: notification.Config(ch.Config),
			Label:  fmt.Sprintf(labelChannel, ch.ID),
		})
	}
	return targets
}
