package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/core/monitoring"
	coremqtt "github.com/kilianp07/mtrr/core/mqtt"
	"github.com/kilianp07/mtrr/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	AuthMethod string `json:"auth_method"`
	// QoS per traffic class: "task", "control" and "report".
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	TLSConfig  *tls.Config     `json:"-"`
}

// SetDefaults fills in the broker address and retry policy.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the TLS material is complete when TLS is enabled.
func (c Config) Validate() error {
	if c.UseTLS && c.TLSConfig == nil && (c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "") {
		return fmt.Errorf("mqtt: tls requires client_cert, client_key and ca_bundle")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Handler receives the payload of an inbound message.
type Handler func(topic string, payload []byte)

// PahoClient publishes binary frames to the fleet and delivers inbound
// reports to subscribed handlers. Subscriptions survive reconnects.
type PahoClient struct {
	cli        pahoClient
	qos        map[string]byte
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

var _ coremqtt.Publisher = (*PahoClient)(nil)

// NewPahoClient connects to the broker. An empty client id gets a random
// "mtrr-" prefixed one so several orchestrators can share a broker.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	if cfg.ClientID == "" {
		cfg.ClientID = "mtrr-" + uuid.NewString()[:8]
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
		subs:       make(map[string]Handler),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s as %s", cfg.Broker, cfg.ClientID)
		pc.resubscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetOrderMatters(false)
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s holds no certificate", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qosFor(class string) byte {
	if q, ok := p.qos[class]; ok {
		return q
	}
	if class == "task" || class == "control" {
		return 1
	}
	return 0
}

// Publish sends the binary encoding of f on topic.
func (p *PahoClient) Publish(ctx context.Context, topic string, f model.Frame) error {
	class := "control"
	if strings.HasPrefix(topic, "REQUEST_TASK_") {
		class = "task"
	}
	return p.publish(ctx, topic, p.qosFor(class), false, codec.Marshal(f))
}

// PublishRetained sends f as the retained message of topic.
func (p *PahoClient) PublishRetained(ctx context.Context, topic string, f model.Frame) error {
	return p.publish(ctx, topic, p.qosFor("control"), true, codec.Marshal(f))
}

// Unpublish clears the retained message of topic with an empty payload.
func (p *PahoClient) Unpublish(ctx context.Context, topic string) error {
	return p.publish(ctx, topic, p.qosFor("control"), true, []byte{})
}

// PublishJSON sends v encoded as JSON on topic with the report QoS. The
// simulator publishes its reports this way.
func (p *PahoClient) PublishJSON(ctx context.Context, topic string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return p.publish(ctx, topic, p.qosFor("report"), false, b)
}

func (p *PahoClient) publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return fmt.Errorf("%w: %s: %w", coremqtt.ErrPublish, topic, coremqtt.ErrNotConnected)
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(p.backoff * time.Duration(1<<(attempt-1)))
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%w: %s: %w", coremqtt.ErrPublish, topic, ctx.Err())
			case <-t.C:
			}
		}
		token := p.cli.Publish(topic, qos, retained, payload)
		select {
		case <-token.Done():
			publishErr = token.Error()
		case <-ctx.Done():
			publishErr = ctx.Err()
		}
		if publishErr == nil {
			p.logger.Debugf("published %d bytes on %s (qos %d, retained %t)", len(payload), topic, qos, retained)
			return nil
		}
		if errors.Is(publishErr, context.Canceled) || errors.Is(publishErr, context.DeadlineExceeded) {
			break
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
	}
	err := fmt.Errorf("%w: %s: %w", coremqtt.ErrPublish, topic, publishErr)
	monitoring.CaptureException(err, map[string]string{"module": "mqtt", "topic": topic})
	return err
}

// Subscribe registers h for topic. The subscription is made now when
// connected and again after every reconnect.
func (p *PahoClient) Subscribe(topic string, h Handler) error {
	p.mu.Lock()
	p.subs[topic] = h
	p.mu.Unlock()
	if p.cli == nil || !p.cli.IsConnected() {
		return nil
	}
	return p.subscribe(p.cli, topic, h)
}

func (p *PahoClient) subscribe(c pahoClient, topic string, h Handler) error {
	token := c.Subscribe(topic, p.qosFor("report"), func(_ paho.Client, msg paho.Message) {
		defer monitoring.Recover()
		h(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	p.logger.Infof("subscribed to %s", topic)
	return nil
}

func (p *PahoClient) resubscribe(c pahoClient) {
	p.mu.Lock()
	subs := make(map[string]Handler, len(p.subs))
	for t, h := range p.subs {
		subs[t] = h
	}
	p.mu.Unlock()
	for t, h := range subs {
		if err := p.subscribe(c, t, h); err != nil {
			p.logger.Errorf("%v", err)
		}
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
