package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/gardend/internal/conf"
	"github.com/smartgarden/gardend/internal/errors"
	"github.com/smartgarden/gardend/internal/ingest"
	"github.com/smartgarden/gardend/internal/logger"
	"github.com/smartgarden/gardend/internal/observability"
)

type fakeIngester struct {
	mu         sync.Mutex
	batches    []ingest.Batch
	transports []string
	err        error
}

func (f *fakeIngester) Ingest(_ context.Context, transport string, batch *ingest.Batch) (*ingest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, *batch)
	f.transports = append(f.transports, transport)
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Result{Status: "ok", Inserted: len(batch.Readings)}, nil
}

func (f *fakeIngester) received() []ingest.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingest.Batch(nil), f.batches...)
}

// fakeMessage satisfies paho.Message for driving the subscription callback.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

var _ paho.Message = (*fakeMessage)(nil)

func newTestSubscriber(t *testing.T, ing Ingester) (*Subscriber, *observability.Metrics) {
	t.Helper()
	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	settings := conf.MQTTSettings{Broker: "tcp://127.0.0.1:1883", ClientID: "test", Topic: "smartgarden/+/telemetry", QoS: 1}
	return NewSubscriber(settings, ing, metrics, logger.Silent()), metrics
}

func TestMacFromTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		want  string
	}{
		{"smartgarden/AA:BB:CC:DD:EE:FF/telemetry", "AA:BB:CC:DD:EE:FF"},
		{"site/a/smartgarden/node-1/telemetry", "node-1"},
		{"telemetry", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, macFromTopic(tt.topic), tt.topic)
	}
}

func TestHandleMessage_FillsAddressFromTopic(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{}
	s, _ := newTestSubscriber(t, ing)

	s.onMessage(nil, &fakeMessage{
		topic:   "smartgarden/AA:BB:CC:DD:EE:FF/telemetry",
		payload: []byte(`{"recorded_at":1700000000,"readings":[{"metric":"temperature","value":21.5}]}`),
	})

	got := ing.received()
	require.Len(t, got, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", got[0].MAC)
	assert.Equal(t, []string{ingest.TransportMQTT}, ing.transports)
}

func TestHandleMessage_PayloadAddressWins(t *testing.T) {
	t.Parallel()

	ing := &fakeIngester{}
	s, _ := newTestSubscriber(t, ing)

	result := s.HandleMessage("smartgarden/from-topic/telemetry",
		[]byte(`{"mac":"from-payload","recorded_at":1700000000,"readings":[{"metric":"humidity","value":55}]}`))

	assert.Equal(t, ResultOK, result)
	require.Len(t, ing.received(), 1)
	assert.Equal(t, "from-payload", ing.received()[0].MAC)
}

func TestHandleMessage_Results(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		err     error
		want    string
	}{
		{"ok", `{"recorded_at":1,"readings":[]}`, nil, ResultOK},
		{"not json", `{"recorded_at":`, nil, ResultInvalid},
		{"validation", `{"recorded_at":1,"readings":[]}`,
			errors.Newf("unknown metric").Category(errors.CategoryValidation).Build(), ResultInvalid},
		{"store failure", `{"recorded_at":1,"readings":[]}`,
			errors.Newf("disk full").Category(errors.CategoryStore).Build(), ResultError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, metrics := newTestSubscriber(t, &fakeIngester{err: tt.err})

			assert.Equal(t, tt.want, s.HandleMessage("smartgarden/node/telemetry", []byte(tt.payload)))

			n, err := promtest.GatherAndCount(metrics.Registry(), "gardend_mqtt_messages_total")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	s, _ := newTestSubscriber(t, &fakeIngester{})
	assert.False(t, s.IsConnected())
	s.Stop()
	s.Stop()
}

func TestStart_UnreachableBroker(t *testing.T) {
	t.Parallel()

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	s := NewSubscriber(conf.MQTTSettings{
		Broker:   "tcp://127.0.0.1:1",
		ClientID: "unreachable",
		Topic:    "smartgarden/+/telemetry",
	}, &fakeIngester{}, metrics, logger.Silent())

	err = s.Start(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
	assert.False(t, s.IsConnected())
}

func TestClientOptions_UnorderedDelivery(t *testing.T) {
	t.Parallel()

	s, _ := newTestSubscriber(t, &fakeIngester{})
	opts := s.clientOptions()
	assert.False(t, opts.Order, "a slow batch must not block later messages")
	assert.True(t, opts.AutoReconnect)
}

// blockingIngester holds every call until released and tracks the peak
// number of concurrent calls.
type blockingIngester struct {
	mu      sync.Mutex
	active  int
	peak    int
	entered chan struct{}
	release chan struct{}
}

func (b *blockingIngester) Ingest(context.Context, string, *ingest.Batch) (*ingest.Result, error) {
	b.mu.Lock()
	b.active++
	b.peak = max(b.peak, b.active)
	b.mu.Unlock()
	b.entered <- struct{}{}

	<-b.release

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return &ingest.Result{Status: "ok"}, nil
}

func TestOnMessage_SlowBatchDoesNotBlockOthersAndIsBounded(t *testing.T) {
	t.Parallel()

	total := maxInflight + 3
	ing := &blockingIngester{entered: make(chan struct{}, total), release: make(chan struct{})}
	s, _ := newTestSubscriber(t, ing)

	var wg sync.WaitGroup
	for range total {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.onMessage(nil, &fakeMessage{
				topic:   "smartgarden/node/telemetry",
				payload: []byte(`{"recorded_at":1,"readings":[{"metric":"humidity","value":50}]}`),
			})
		}()
	}

	// maxInflight batches run side by side while none has finished
	for range maxInflight {
		select {
		case <-ing.entered:
		case <-time.After(5 * time.Second):
			t.Fatal("messages were processed one at a time")
		}
	}
	select {
	case <-ing.entered:
		t.Fatal("more than maxInflight ingests ran at once")
	case <-time.After(50 * time.Millisecond):
	}

	close(ing.release)
	wg.Wait()

	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.Equal(t, maxInflight, ing.peak)
	assert.Zero(t, ing.active)
}
