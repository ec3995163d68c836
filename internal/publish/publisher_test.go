package publish

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/spectro-coordinator/internal/config"
	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/poller"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu           sync.Mutex
	open         bool
	msgs         []published
	disconnected bool
}

func (f *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &pahomqtt.DummyToken{}
}

func (f *fakeBroker) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeBroker) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	f.open = false
}

func (f *fakeBroker) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func newTestPublisher(t *testing.T, cfg config.MQTTConfig) (*Publisher, *fakeBroker) {
	t.Helper()
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "lab"
	}
	fb := &fakeBroker{open: true}
	log := eventlog.New(eventlog.WithConsole(&bytes.Buffer{}))
	return newPublisher(fb, cfg, "spectro-test", "run-1", log), fb
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "lab/raman"}

	assert.Equal(t, "lab/raman/device/WP-01000/spectrum", topics.Spectrum("WP-01000"))
	assert.Equal(t, "lab/raman/device/WP-01000/temperature", topics.Temperature("WP-01000"))
	assert.Equal(t, "lab/raman/log", topics.Log())
	assert.Equal(t, "lab/raman/status", topics.Status())
}

func TestPublishSpectrum(t *testing.T) {
	p, fb := newTestPublisher(t, config.MQTTConfig{QoS: 1, PublishSpectra: true})

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err := p.PublishSpectrum("WP-01000", poller.Sample{Index: 1, Seq: 7, At: at, Spectrum: []float64{1, 2.5, 3}})
	require.NoError(t, err)

	msgs := fb.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "lab/device/WP-01000/spectrum", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)
	assert.False(t, msgs[0].retained)

	var got SpectrumPayload
	require.NoError(t, json.Unmarshal(msgs[0].payload, &got))
	assert.Equal(t, SpectrumPayload{
		Device:    1,
		Serial:    "WP-01000",
		Seq:       7,
		Timestamp: "2024-05-01T12:00:00Z",
		Pixels:    3,
		Spectrum:  []float64{1, 2.5, 3},
	}, got)
}

func TestPublishSpectrumDisabled(t *testing.T) {
	p, fb := newTestPublisher(t, config.MQTTConfig{})

	require.NoError(t, p.PublishSpectrum("WP-01000", poller.Sample{Spectrum: []float64{1}}))
	assert.Empty(t, fb.messages())
}

func TestPublishTemperatureRetained(t *testing.T) {
	p, fb := newTestPublisher(t, config.MQTTConfig{})

	require.NoError(t, p.PublishTemperature("WP-01000", poller.Temperature{Index: 0, At: time.Now(), DegC: -15.5}))

	msgs := fb.messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)
	assert.Contains(t, string(msgs[0].payload), `"deg_c":-15.5`)
}

func TestPublishWhileDisconnectedDrops(t *testing.T) {
	p, fb := newTestPublisher(t, config.MQTTConfig{PublishSpectra: true})
	fb.open = false

	err := p.PublishSpectrum("WP-01000", poller.Sample{Spectrum: []float64{1}})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, uint64(1), p.Dropped())
	assert.Empty(t, fb.messages())
}

func TestPublishRejectsEmptyTopicAndLargePayload(t *testing.T) {
	p, _ := newTestPublisher(t, config.MQTTConfig{})

	assert.ErrorIs(t, p.Publish("", []byte("x"), false), ErrInvalidTopic)
	assert.ErrorIs(t, p.Publish("lab/x", make([]byte, maxPayloadSize+1), false), ErrPublishFailed)
}

func TestLogSinkPublishesLines(t *testing.T) {
	p, fb := newTestPublisher(t, config.MQTTConfig{})
	log := eventlog.New(eventlog.WithConsole(&bytes.Buffer{}))
	log.AddSink(p.LogSink())

	log.Infof("Found %d spectrometers", 2)

	require.Eventually(t, func() bool { return len(fb.messages()) == 1 }, time.Second, 5*time.Millisecond)
	msgs := fb.messages()
	assert.Equal(t, "lab/log", msgs[0].topic)
	assert.Contains(t, string(msgs[0].payload), "INFO: Found 2 spectrometers")

	p.Close()
}

func TestLogSinkNeverFailsWhenDisconnected(t *testing.T) {
	p, fb := newTestPublisher(t, config.MQTTConfig{})
	fb.mu.Lock()
	fb.open = false
	fb.mu.Unlock()

	assert.NoError(t, p.LogSink().WriteLine("line"))
	assert.Eventually(t, func() bool { return p.Dropped() == 1 }, time.Second, 5*time.Millisecond)

	p.Close()
	assert.NoError(t, p.LogSink().WriteLine("after close"))
	assert.Equal(t, uint64(2), p.Dropped())
}

// stallingBroker blocks every Publish until release is closed.
type stallingBroker struct {
	fakeBroker
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stallingBroker) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.fakeBroker.Publish(topic, qos, retained, payload)
}

func TestLogSinkDoesNotBlockOnStalledBroker(t *testing.T) {
	sb := &stallingBroker{
		fakeBroker: fakeBroker{open: true},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	log := eventlog.New(eventlog.WithConsole(&bytes.Buffer{}), eventlog.WithLevel(eventlog.LevelInfo))
	p := newPublisher(sb, config.MQTTConfig{TopicPrefix: "lab"}, "spectro-test", "run-1", log)
	log.AddSink(p.LogSink())

	log.Infof("first line")
	select {
	case <-sb.entered:
	case <-time.After(time.Second):
		t.Fatalf("forwarder never reached the broker")
	}

	// the broker is stuck; emitting must still return promptly
	acq := log.Task("acq-1")
	start := time.Now()
	for i := 0; i < 2*logBuffer; i++ {
		log.Infof("line %d", i)
		acq.Debugf("skipping frame")
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.NotZero(t, p.Dropped(), "overflowing lines should be counted")

	close(sb.release)
	log.RemoveSink(p.LogSink())
	p.Close()
	assert.NotEmpty(t, sb.messages())
}

func TestCloseSendsOfflineStatus(t *testing.T) {
	p, fb := newTestPublisher(t, config.MQTTConfig{})

	p.Close()
	p.Close()

	msgs := fb.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "lab/status", msgs[0].topic)
	assert.True(t, msgs[0].retained)

	var st StatusPayload
	require.NoError(t, json.Unmarshal(msgs[0].payload, &st))
	assert.Equal(t, "offline", st.Status)
	assert.Equal(t, "graceful_shutdown", st.Reason)
	assert.Equal(t, "run-1", st.RunID)
	assert.True(t, fb.disconnected)
}

func TestClientIDDefault(t *testing.T) {
	assert.Equal(t, "fixed", ClientID(config.MQTTConfig{ClientID: "fixed"}))

	id := ClientID(config.MQTTConfig{})
	assert.Regexp(t, `^spectro-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, ClientID(config.MQTTConfig{}))
}

func TestClientOptionsWill(t *testing.T) {
	cfg := config.MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "lab", ConnectTimeoutMs: 2000, Username: "u", Password: "p"}
	opts := buildClientOptions(cfg, "spectro-test", "run-1")

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "lab/status", opts.WillTopic)
	assert.True(t, opts.WillRetained)
	assert.Contains(t, string(opts.WillPayload), `"unexpected_disconnect"`)
	assert.Equal(t, "spectro-test", opts.ClientID)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, 2*time.Second, opts.ConnectTimeout)
	assert.Equal(t, defaultWriteTimeout, opts.WriteTimeout)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "localhost:1883", opts.Servers[0].Host)
}
