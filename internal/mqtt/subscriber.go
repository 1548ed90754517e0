// Package mqtt feeds telemetry published by sensor nodes on an MQTT broker
// into the ingest pipeline.
package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/smartgarden/gardend/internal/conf"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/ingest"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/observability"
)

const componentName = "mqtt"

const (
	ingestTimeout     = 30 * time.Second
	disconnectQuiesce = 250 // milliseconds
	connectTimeout    = 10 * time.Second

	// maxInflight bounds concurrent ingests of unordered messages.
	maxInflight = 8
)

// Message results, used as the metrics label.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Ingester is the ingest pipeline as seen by the subscriber.
type Ingester interface {
	Ingest(ctx context.Context, transport string, batch *ingest.Batch) (*ingest.Result, error)
}

// Subscriber consumes telemetry batches from a topic filter such as
// smartgarden/+/telemetry.
type Subscriber struct {
	settings conf.MQTTSettings
	ingester Ingester
	metrics  *observability.Metrics
	log      logger.Logger

	inflight chan struct{}

	mu         sync.Mutex
	client     paho.Client
	subscribed chan error
}

// NewSubscriber creates a subscriber. It does not connect.
func NewSubscriber(settings conf.MQTTSettings, ingester Ingester, metrics *observability.Metrics, log logger.Logger) *Subscriber {
	return &Subscriber{
		settings: settings,
		ingester: ingester,
		metrics:  metrics,
		log:      log.Module(componentName),
		inflight: make(chan struct{}, maxInflight),
	}
}

// Start connects and subscribes, blocking until the first subscription is
// acknowledged or ctx ends. The subscription is renewed on every reconnect.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		return nil
	}
	s.subscribed = make(chan error, 1)
	client := paho.NewClient(s.clientOptions())
	s.client = client
	s.mu.Unlock()

	s.log.Info("connecting to mqtt broker",
		logger.String("broker", s.settings.Broker),
		logger.String("topic", s.settings.Topic))

	if err := waitToken(ctx, client.Connect()); err != nil {
		s.reset()
		return s.brokerError(err, "connect")
	}

	select {
	case err := <-s.subscribed:
		if err != nil {
			s.Stop()
			return s.brokerError(err, "subscribe")
		}
		return nil
	case <-ctx.Done():
		s.Stop()
		return s.brokerError(ctx.Err(), "subscribe")
	}
}

// Stop unsubscribes and disconnects. It is safe to call more than once.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client == nil {
		return
	}
	if client.IsConnected() {
		client.Unsubscribe(s.settings.Topic).WaitTimeout(time.Second)
	}
	client.Disconnect(disconnectQuiesce)
	s.log.Info("mqtt subscriber stopped")
}

// IsConnected reports whether the broker connection is up.
func (s *Subscriber) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnected()
}

func (s *Subscriber) reset() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}

func (s *Subscriber) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.settings.Broker)
	opts.SetClientID(s.settings.ClientID)
	if s.settings.Username != "" {
		opts.SetUsername(s.settings.Username)
	}
	if s.settings.Password != "" {
		opts.SetPassword(s.settings.Password)
	}
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	// Batches carry their own timestamps, so one slow ingest must not hold up
	// the messages queued behind it.
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.log.Warn("mqtt connection lost", logger.Error(err))
	})
	return opts
}

// onConnect (re)subscribes. The first outcome is reported to Start.
func (s *Subscriber) onConnect(client paho.Client) {
	err := waitToken(context.Background(), client.Subscribe(s.settings.Topic, byte(s.settings.QoS), s.onMessage))
	if err != nil {
		s.log.Error("mqtt subscribe failed", logger.String("topic", s.settings.Topic), logger.Error(err))
	} else {
		s.log.Info("subscribed to telemetry", logger.String("topic", s.settings.Topic))
	}

	s.mu.Lock()
	ch := s.subscribed
	s.mu.Unlock()
	select {
	case ch <- err:
	default:
	}
}

// onMessage runs on its own goroutine per message; inflight caps how many
// reach the store at once.
func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	s.inflight <- struct{}{}
	defer func() { <-s.inflight }()
	s.HandleMessage(msg.Topic(), msg.Payload())
}

// HandleMessage decodes one payload and ingests it. The batch address
// defaults to the device segment of the topic. It returns the result label.
func (s *Subscriber) HandleMessage(topic string, payload []byte) string {
	result := s.handle(topic, payload)
	s.metrics.RecordMQTTMessage(result)
	return result
}

func (s *Subscriber) handle(topic string, payload []byte) string {
	var batch ingest.Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		s.log.Warn("discarding undecodable telemetry",
			logger.String("topic", topic),
			logger.Int("bytes", len(payload)),
			logger.Error(err))
		return ResultInvalid
	}
	if strings.TrimSpace(batch.MAC) == "" {
		batch.MAC = macFromTopic(topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	res, err := s.ingester.Ingest(ctx, ingest.TransportMQTT, &batch)
	switch {
	case errors.IsCategory(err, errors.CategoryValidation):
		s.log.Warn("rejected telemetry", logger.String("topic", topic), logger.Error(err))
		return ResultInvalid
	case err != nil:
		s.log.Error("telemetry ingest failed", logger.String("topic", topic), logger.Error(err))
		return ResultError
	}

	s.log.Debug("telemetry ingested",
		logger.String("topic", topic),
		logger.Int("inserted", res.Inserted),
		logger.Int("alerts_triggered", res.AlertsTriggered))
	return ResultOK
}

// macFromTopic returns the segment before the last one, so
// "smartgarden/AA:BB/telemetry" yields "AA:BB". Topics with fewer than two
// segments yield "".
func macFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-2])
}

// waitToken waits for a paho token or ctx, whichever comes first.
func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscriber) brokerError(err error, op string) error {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryConfig).
		Context("operation", op).
		Context("broker", s.settings.Broker).
		Build()
}
