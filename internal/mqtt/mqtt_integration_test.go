//go:build integration

// Integration tests for the telemetry subscriber against a real Mosquitto
// broker managed by testcontainers.
//
//nolint:misspell // Mosquitto is the official Eclipse project name
package mqtt_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/gardend/internal/alerting"
	"github.com/smartgarden/gardend/internal/calibration"
	"github.com/smartgarden/gardend/internal/conf"
	"github.com/smartgarden/gardend/internal/datastore/v2/entities"
	"github.com/smartgarden/gardend/internal/datastore/v2/repository"
	"github.com/smartgarden/gardend/internal/ingest"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/mqtt"
	"github.com/smartgarden/gardend/internal/notification"
	"github.com/smartgarden/gardend/internal/observability"
	"github.com/smartgarden/gardend/internal/testutil"
	"github.com/smartgarden/gardend/internal/testutil/containers"
	"github.com/smartgarden/gardend/internal/watering"
)

const topicFilter = "smartgarden/+/telemetry"

var mqttBroker *containers.MosquittoContainer

func TestMain(m *testing.M) {
	var err error
	mqttBroker, err = containers.NewMosquittoContainer(context.Background(), "")
	if err != nil {
		panic("failed to create MQTT broker: " + err.Error())
	}

	code := m.Run()

	_ = mqttBroker.Terminate()
	os.Exit(code)
}

type pipeline struct {
	store      *repository.Store
	subscriber *mqtt.Subscriber
	publisher  paho.Client
}

// startPipeline wires a subscriber to a real ingest service on SQLite.
func startPipeline(t *testing.T) *pipeline {
	t.Helper()

	store := repository.NewStore(testutil.NewTestDB(t))
	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	dispatcher := notification.NewDispatcher(logger.Silent(), time.Second)
	resolver := calibration.NewResolver(store.Sensors, store.Plants, logger.Silent())
	actions := alerting.NewActionDispatcher(store.Channels, dispatcher, logger.Silent())
	engine := alerting.NewEngine(store.Alerts, resolver, actions.Dispatch, logger.Silent())
	wateringSvc := watering.NewService(store.Watering, logger.Silent())
	ingester := ingest.NewService(store, wateringSvc, engine, logger.Silent(), ingest.WithMetrics(metrics))

	sub := mqtt.NewSubscriber(conf.MQTTSettings{
		Enabled:  true,
		Broker:   mqttBroker.BrokerURL(),
		ClientID: fmt.Sprintf("gardend-%d", time.Now().UnixNano()),
		Topic:    topicFilter,
		QoS:      1,
	}, ingester, metrics, logger.Silent())

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()
	require.NoError(t, sub.Start(ctx))
	t.Cleanup(sub.Stop)

	pub, err := mqttBroker.CreateClient(fmt.Sprintf("node-%d", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() { pub.Disconnect(250) })

	return &pipeline{store: store, subscriber: sub, publisher: pub}
}

func (p *pipeline) publish(t *testing.T, topic string, payload any) {
	t.Helper()
	var raw []byte
	switch v := payload.(type) {
	case []byte:
		raw = v
	default:
		var err error
		raw, err = json.Marshal(v)
		require.NoError(t, err)
	}
	token := p.publisher.Publish(topic, 1, false, raw)
	require.True(t, token.WaitTimeout(5*time.Second), "publish timeout")
	require.NoError(t, token.Error())
}

func TestMQTTIntegration_IngestsTelemetry(t *testing.T) {
	p := startPipeline(t)
	assert.True(t, p.subscriber.IsConnected())

	mac := "AA:BB:CC:00:11:22"
	recordedAt := time.Now().UTC().Truncate(time.Second)
	p.publish(t, "smartgarden/"+mac+"/telemetry", ingest.Batch{
		RecordedAt: recordedAt.Unix(),
		Readings: []ingest.Item{
			{Metric: entities.MetricTemperature, Value: 21.5},
			{Metric: entities.MetricHumidity, Value: 60},
		},
	})

	var sensor *entities.Sensor
	require.Eventually(t, func() bool {
		var err error
		sensor, err = p.store.Sensors.FindByAddress(context.Background(), mac)
		return err == nil
	}, 10*time.Second, 100*time.Millisecond, "sensor is registered from the topic address")

	require.Eventually(t, func() bool {
		rows, err := p.store.Readings.ListReadings(context.Background(), repository.ReadingFilter{SensorID: sensor.ID})
		return err == nil && len(rows) == 2
	}, 10*time.Second, 100*time.Millisecond)

	latest, err := p.store.Readings.LatestReading(context.Background(), sensor.ID, entities.MetricTemperature)
	require.NoError(t, err)
	assert.InDelta(t, 21.5, latest.Value, 1e-9)
	assert.True(t, latest.RecordedAt.Equal(recordedAt))
}

func TestMQTTIntegration_BadPayloadDoesNotStopSubscription(t *testing.T) {
	p := startPipeline(t)

	p.publish(t, "smartgarden/broken/telemetry", []byte("not json"))
	p.publish(t, "smartgarden/broken/telemetry", ingest.Batch{
		RecordedAt: time.Now().Unix(),
		Readings:   []ingest.Item{{Metric: "radiation", Value: 1}},
	})

	mac := "AA:BB:CC:00:11:33"
	p.publish(t, "smartgarden/"+mac+"/telemetry", ingest.Batch{
		RecordedAt: time.Now().Unix(),
		Readings:   []ingest.Item{{Metric: entities.MetricCO2, Value: 640}},
	})

	require.Eventually(t, func() bool {
		_, err := p.store.Sensors.FindByAddress(context.Background(), mac)
		return err == nil
	}, 10*time.Second, 100*time.Millisecond)

	_, err := p.store.Sensors.FindByAddress(context.Background(), "broken")
	assert.True(t, repository.IsNotFound(err), "rejected batches register nothing")
}
