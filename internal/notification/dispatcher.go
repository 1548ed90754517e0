package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/smartgarden/gardend/internal/conf"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/observability"
)

const (
	// DefaultTimeout bounds a single delivery when none is configured.
	DefaultTimeout = 10 * time.Second
	// defaultMaxParallel caps concurrent deliveries in Broadcast.
	defaultMaxParallel = 8
)

// Dispatcher selects a Channel by type and delivers with a per-call timeout.
type Dispatcher struct {
	channels    map[string]Channel
	mu          sync.RWMutex
	timeout     time.Duration
	maxParallel int
	metrics     *observability.Metrics
	log         logger.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxParallel limits how many deliveries Broadcast runs at once.
func WithMaxParallel(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxParallel = n
		}
	}
}

// WithMetrics records delivery outcomes.
func WithMetrics(m *observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a dispatcher with no channels registered.
func NewDispatcher(log logger.Logger, timeout time.Duration, opts ...DispatcherOption) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{
		channels:    make(map[string]Channel),
		timeout:     timeout,
		maxParallel: defaultMaxParallel,
		log:         log.Module("notification"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDefaultDispatcher registers every built-in channel. The HTTP channels
// share one resty client.
func NewDefaultDispatcher(settings conf.NotificationSettings, log logger.Logger, metrics *observability.Metrics) *Dispatcher {
	timeout := settings.Timeout.Std()
	d := NewDispatcher(log, timeout, WithMaxParallel(settings.MaxParallel), WithMetrics(metrics))
	client := NewHTTPClient(d.timeout)

	d.Register(NewEmailChannel(client, settings.SendGridBaseURL, settings.SendGridAPIKey, settings.FromAddress, d.log))
	d.Register(NewTelegramChannel(client, settings.TelegramAPIURL, d.log))
	d.Register(NewDiscordChannel(client, d.log))
	d.Register(NewWebhookChannel(client, settings.WebhookSource, d.log))
	d.Register(NewShoutrrrChannel(nil, d.log))
	return d
}

// NewHTTPClient returns the resty client used by the HTTP channels. No retries
// are configured.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "gardend")
}

// Register adds or replaces the channel for its type.
func (d *Dispatcher) Register(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[ch.Type()] = ch
}

// Supports reports whether a channel is registered for channelType.
func (d *Dispatcher) Supports(channelType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.channels[channelType]
	return ok
}

// Send delivers msg on the channel registered for channelType. It never
// returns an error: unknown types, transport failures and panics all yield
// false.
func (d *Dispatcher) Send(ctx context.Context, channelType string, cfg Config, msg Message) (ok bool) {
	d.mu.RLock()
	ch, found := d.channels[channelType]
	d.mu.RUnlock()
	if !found {
		d.log.Warn("unknown notification channel type", logger.String("channel_type", channelType))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notification channel panicked",
				logger.String("channel_type", channelType),
				logger.String("panic", fmt.Sprint(r)))
			ok = false
		}
		d.metrics.RecordNotification(channelType, ok, time.Since(start))
	}()

	return ch.Deliver(ctx, cfg, msg)
}

// Broadcast delivers msg to every target concurrently and returns one result
// per target, in target order.
func (d *Dispatcher) Broadcast(ctx context.Context, targets []Target, msg Message) []Result {
	results := make([]Result, len(targets))
	var g errgroup.Group
	g.SetLimit(d.maxParallel)
	for i := range targets {
		g.Go(func() error {
			t := targets[i]
			results[i] = Result{Target: t, Success: d.Send(ctx, t.Type, t.Config, msg)}
			return nil
		})
	}
	_ = g.Wait()

	d.log.Debug("notification broadcast finished",
		logger.Int("targets", len(targets)),
		logger.Int("delivered", Delivered(results)))
	return results
}
