package publish

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tamzrod/spectro-coordinator/internal/config"
	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/poller"
)

const (
	defaultKeepAlive         = 30 * time.Second
	defaultMaxReconnect      = 30 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultWriteTimeout      = 5 * time.Second
	offlineWait              = time.Second

	// logBuffer is how many log lines may wait for the broker.
	logBuffer = 256

	// maxPayloadSize keeps a single spectrum well under typical broker limits.
	maxPayloadSize = 1 << 20
)

// brokerClient is the part of pahomqtt.Client the publisher uses.
type brokerClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Publisher forwards acquisition events and log lines to an MQTT broker.
// Publishing never waits for the broker: a frame that cannot be handed to
// the client is dropped and counted.
type Publisher struct {
	client   brokerClient
	cfg      config.MQTTConfig
	topics   Topics
	clientID string
	runID    string
	log      *eventlog.Task

	dropped atomic.Uint64
	closed  atomic.Bool

	// log lines are forwarded by their own goroutine, started by LogSink
	logLines chan string
	logOnce  sync.Once
	logDone  chan struct{}
	stop     chan struct{}
}

// ClientID returns cfg.ClientID or a generated one.
func ClientID(cfg config.MQTTConfig) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "spectro-" + uuid.NewString()[:8]
}

// buildClientOptions creates paho options with auto-reconnect and an LWT
// on the status topic.
func buildClientOptions(cfg config.MQTTConfig, clientID, runID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(defaultMaxReconnect)
	opts.SetConnectTimeout(time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWriteTimeout(defaultWriteTimeout)

	topics := Topics{Prefix: cfg.TopicPrefix}
	opts.SetWill(topics.Status(), buildStatusPayload("offline", clientID, runID, "unexpected_disconnect", time.Now()), 1, true)

	return opts
}

// Connect dials the broker and publishes the online status.
func Connect(cfg config.MQTTConfig, runID string, log *eventlog.Log) (*Publisher, error) {
	clientID := ClientID(cfg)
	opts := buildClientOptions(cfg, clientID, runID)

	task := log.Task("mqtt")
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		task.Errorf("broker connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		task.Debugf("connected to %s as %s", cfg.Broker, clientID)
	})

	cli := pahomqtt.NewClient(opts)
	timeout := time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	token := cli.Connect()
	if !token.WaitTimeout(timeout) {
		cli.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p := newPublisher(cli, cfg, clientID, runID, log)
	p.publishStatus("online", "")
	return p, nil
}

func newPublisher(cli brokerClient, cfg config.MQTTConfig, clientID, runID string, log *eventlog.Log) *Publisher {
	return &Publisher{
		client:   cli,
		cfg:      cfg,
		topics:   Topics{Prefix: cfg.TopicPrefix},
		clientID: clientID,
		runID:    runID,
		log:      log.Task("mqtt"),
		logLines: make(chan string, logBuffer),
		logDone:  make(chan struct{}),
		stop:     make(chan struct{}),
	}
}

// Topics returns the topic builder in use.
func (p *Publisher) Topics() Topics { return p.topics }

// Dropped returns how many messages were not handed to the client.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Publish hands one message to the client without waiting for delivery.
func (p *Publisher) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		p.dropped.Add(1)
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if p.closed.Load() || !p.client.IsConnectionOpen() {
		p.dropped.Add(1)
		return ErrNotConnected
	}
	p.client.Publish(topic, p.cfg.QoS, retained, payload)
	return nil
}

// PublishSpectrum publishes a delivered frame when spectra publishing is on.
func (p *Publisher) PublishSpectrum(serial string, s poller.Sample) error {
	if !p.cfg.PublishSpectra {
		return nil
	}
	b, err := buildSpectrumPayload(serial, s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return p.Publish(p.topics.Spectrum(serial), b, false)
}

// PublishTemperature publishes a temperature reading, retained.
func (p *Publisher) PublishTemperature(serial string, t poller.Temperature) error {
	b, err := buildTemperaturePayload(serial, t)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return p.Publish(p.topics.Temperature(serial), b, true)
}

func (p *Publisher) publishStatus(status, reason string) {
	payload := buildStatusPayload(status, p.clientID, p.runID, reason, time.Now())
	if err := p.Publish(p.topics.Status(), []byte(payload), true); err != nil {
		p.log.Debugf("status %s not published: %v", status, err)
	}
}

// Close stops log forwarding, publishes the graceful offline status and
// disconnects.
func (p *Publisher) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.stop)
	p.logOnce.Do(func() { close(p.logDone) })
	<-p.logDone

	if p.client.IsConnectionOpen() {
		payload := buildStatusPayload("offline", p.clientID, p.runID, "graceful_shutdown", time.Now())
		tok := p.client.Publish(p.topics.Status(), p.cfg.QoS, true, []byte(payload))
		tok.WaitTimeout(offlineWait)
	}
	p.client.Disconnect(defaultDisconnectQuiesce)
}

// ---- log sink ----

// logSink queues every emitted log line for the forwarder. It runs under
// the log's lock: it never logs and never waits on the broker. Lines that
// do not fit in the queue are dropped and counted.
type logSink struct {
	p *Publisher
}

// LogSink returns an eventlog.Sink publishing to <prefix>/log.
func (p *Publisher) LogSink() eventlog.Sink {
	p.logOnce.Do(func() { go p.forwardLog() })
	return logSink{p: p}
}

func (s logSink) WriteLine(line string) error {
	if s.p.closed.Load() {
		s.p.dropped.Add(1)
		return nil
	}
	select {
	case s.p.logLines <- line:
	default:
		s.p.dropped.Add(1)
	}
	return nil
}

// forwardLog publishes queued lines until Close. Lines still queued at
// Close are discarded.
func (p *Publisher) forwardLog() {
	defer close(p.logDone)
	topic := p.topics.Log()
	for {
		select {
		case line := <-p.logLines:
			// a disconnected broker is not a log failure; Publish counts the drop
			_ = p.Publish(topic, []byte(line), false)
		case <-p.stop:
			return
		}
	}
}
