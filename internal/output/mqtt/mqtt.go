// Package mqtt publishes samples to an MQTT broker, one topic per device
// channel, so dashboards and loggers can subscribe to exactly the signals
// they care about.
package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"codeberg.org/okkola/labdaq/internal/errors"
	"codeberg.org/okkola/labdaq/internal/sample"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds, paho API takes a plain uint
)

type Config struct {
	Broker   string
	ClientID string
	// TopicBase prefixes every topic: <base>/<device>/<channel>.
	TopicBase string
	Username  string
	Password  string
}

type Output struct {
	client pahomqtt.Client
	base   string
}

// payload is the JSON wire form of one sample. Value is omitted for invalid
// samples: NaN has no JSON representation.
type payload struct {
	DeviceID  string    `json:"device_id"`
	Channel   int       `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Raw       float64   `json:"raw"`
	Value     *float64  `json:"value,omitempty"`
	Unit      string    `json:"unit"`
	Valid     bool      `json:"valid"`
}

// New connects to the broker and returns the sink.
func New(cfg Config) (*Output, error) {
	errFactory := errors.New()

	if cfg.Broker == "" {
		return nil, errFactory.WithMessage(ErrInvalidBroker, "empty broker URL")
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = "labdaq"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errFactory.WithData(ErrConnectFailed, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errFactory.Wrap(ErrConnectFailed, err)
	}

	return &Output{client: client, base: cfg.TopicBase}, nil
}

func (o *Output) Publish(samples []sample.Sample) error {
	errFactory := errors.New()

	for _, s := range samples {
		p := payload{
			DeviceID:  s.DeviceID,
			Channel:   s.Channel,
			Timestamp: s.Timestamp,
			Raw:       s.Raw,
			Unit:      s.Unit,
			Valid:     s.Valid,
		}
		if !math.IsNaN(s.Value) {
			v := s.Value
			p.Value = &v
		}

		data, err := json.Marshal(p)
		if err != nil {
			return errFactory.Wrap(ErrPublishFailed, err)
		}

		topic := fmt.Sprintf("%s/%s/%d", o.base, s.DeviceID, s.Channel)
		token := o.client.Publish(topic, 0, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			return errFactory.Wrap(ErrPublishFailed, err)
		}
	}

	return nil
}

func (o *Output) Close() error {
	o.client.Disconnect(disconnectQuiesce)
	return nil
}
