package espingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Config"
	logger "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Logger"
	espmodels "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Models"
	interfaces "gitlab.com/espsense1/esp.sensor_server/src/production/ESP.Repository/Interfaces"
)

// storeTimeout bounds each reading insert triggered by an MQTT message
const storeTimeout = 5 * time.Second

// Ingestor subscribes to the readings topic and persists every valid
// payload through the same repository path as POST /sensor.
type Ingestor struct {
	cfg         config.MQTTConfig
	brokerURL   string
	readingRepo interfaces.ReadingRepository
	logger      *logger.Logger
	client      mqtt.Client
}

func New(cfg *config.Config, readingRepo interfaces.ReadingRepository, log *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:         cfg.MQTT,
		brokerURL:   cfg.GetMQTTBrokerURL(),
		readingRepo: readingRepo,
		logger:      log.WithComponent("mqtt-ingestor"),
	}
}

func (i *Ingestor) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL).
		SetClientID(i.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.KeepAlive).
		SetPingTimeout(i.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.BrokerUser != "" {
		opts.SetUsername(i.cfg.BrokerUser)
		opts.SetPassword(i.cfg.BrokerPass)
	}

	if i.cfg.UseTLS {
		tlsCfg, err := i.tlsConfig(i.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.ErrorWithError(err, "mqtt connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.cfg.Topic
		if i.cfg.SharedGroup != "" {
			topic = fmt.Sprintf("$share/%s/%s", i.cfg.SharedGroup, i.cfg.Topic)
		}
		i.logger.WithField("topic", topic).Info("mqtt connected, subscribing")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.ErrorWithError(token.Error(), "mqtt subscribe failed")
		}
	}

	i.client = mqtt.NewClient(opts)

	// Connect retries in the background; Start must not gate the HTTP
	// server on broker availability.
	token := i.client.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			i.logger.ErrorWithError(token.Error(), "mqtt connect failed")
		}
	}()
	return nil
}

func (i *Ingestor) Stop() {
	if i.client != nil && i.client.IsConnected() {
		i.client.Disconnect(500)
	}
}

func (i *Ingestor) IsConnected() bool {
	return i.client != nil && i.client.IsConnected()
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	if err := i.processPayload(m.Payload()); err != nil {
		i.logger.WithField("topic", m.Topic()).
			ErrorWithError(err, "dropping mqtt reading")
	}
}

// processPayload applies the same strict validation as the HTTP ingestion
// path before writing to the store.
func (i *Ingestor) processPayload(data []byte) error {
	var payload espmodels.SensorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return &espmodels.ValidationError{Field: "payload", Reason: "temperature & humidity must be numbers"}
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	_, err := i.readingRepo.CreateReading(ctx, *payload.Temperature, *payload.Humidity)
	return err
}

func (i *Ingestor) tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
