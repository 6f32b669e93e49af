// Package telemetry publishes session diagnostics over MQTT.
package telemetry

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/atspaeth/Neurobot/pkg/session"
)

// Config defines the telemetry configuration.
type Config struct {
	URL      string
	DeviceID string
	Interval time.Duration
}

var defaultConfig = Config{
	URL:      "mqtt://localhost:1883/neurobot/",
	Interval: 100 * time.Millisecond,
}

func init() {
	if val := os.Getenv("NEUROBOT_MQTT_URL"); val != "" {
		defaultConfig.URL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.URL, "mqtt", defaultConfig.URL, "MQTT broker URL, empty to disable telemetry.")
	flag.StringVar(&defaultConfig.DeviceID, "telemetry-id", defaultConfig.DeviceID, "Device ID in topics, defaults to machine ID.")
	flag.DurationVar(&defaultConfig.Interval, "telemetry-interval", defaultConfig.Interval, "Sample publishing interval.")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ClientOptionsFromURL creates paho options from an mqtt:// URL with
// an optional topic-prefix path and client-id query parameter.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	var server string
	if u.Scheme == "" || u.Scheme == "mqtt" {
		server = "tcp"
	} else {
		server = u.Scheme
	}
	server += "://" + u.Host

	topicPrefix := strings.TrimPrefix(u.Path, "/")

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, topicPrefix, nil
}

// Publisher pushes session state transitions and decimated samples to
// the broker. It never sits between the caller and the hardware: a
// slow broker costs nothing but telemetry lag.
type Publisher struct {
	Session *session.Session

	client   paho.Client
	prefix   string
	deviceID string
	interval time.Duration
}

// NewPublisher creates a Publisher for a session.
func (c *Config) NewPublisher(sess *session.Session) (*Publisher, error) {
	opts, prefix, err := ClientOptionsFromURL(c.URL)
	if err != nil {
		return nil, err
	}
	id := c.DeviceID
	if id == "" {
		if id, err = machineid.ID(); err != nil {
			return nil, fmt.Errorf("machine id: %w", err)
		}
	}
	opts.SetOnConnectHandler(func(paho.Client) { glog.Info("telemetry connected") })
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		glog.Warningf("telemetry connection lost: %v", err)
	})
	p := &Publisher{
		Session:  sess,
		client:   paho.NewClient(opts),
		prefix:   prefix,
		deviceID: id,
		interval: c.Interval,
	}
	sess.Watch(p.stateChanged)
	return p, nil
}

// Connect connects to the broker.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(0)
	return nil
}

func (p *Publisher) topic(leaf string) string {
	return p.prefix + p.deviceID + "/" + leaf
}

func (p *Publisher) stateChanged(from, to session.State) {
	payload, _ := json.Marshal(map[string]string{
		"from": from.String(),
		"to":   to.String(),
	})
	// Retained so a monitor sees the current state on subscribe.
	p.client.Publish(p.topic("state"), 0, true, payload)
}

// Run implements framework.Runnable: while the session is Running it
// publishes the latest sample at the configured interval.
func (p *Publisher) Run(ctx context.Context) error {
	interval := p.interval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastGen uint32
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if p.Session.State() != session.Running {
				continue
			}
			smp, err := p.Session.ReadLatest()
			if err != nil || smp == nil || smp.Gen == lastGen {
				continue
			}
			lastGen = smp.Gen
			payload, _ := json.Marshal(map[string]interface{}{
				"t":       smp.Time.UnixNano(),
				"gen":     smp.Gen,
				"adc":     smp.ADC,
				"digital": smp.Digital,
			})
			p.client.Publish(p.topic("sample"), 0, false, payload)
		}
	}
}
