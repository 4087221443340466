package bridge

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/questrover/relay/pkg/config"
	"github.com/questrover/relay/pkg/logger"
)

// MqttSink publishes rover commands to an external MQTT broker with QoS 0.
type MqttSink struct {
	client mqtt.Client
	broker string
	log    *logger.Logger
}

func NewMqttSink(conf config.Mqtt, log *logger.Logger) *MqttSink {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(conf.Broker)
	opts.SetClientID(conf.ClientId)
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}
	opts.SetConnectTimeout(conf.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Msgf("MQTT connected to %v", conf.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})
	return &MqttSink{client: mqtt.NewClient(opts), broker: conf.Broker, log: log}
}

// Connect starts the broker session. With the retry options set the client
// keeps trying in the background, so the call never blocks startup.
func (s *MqttSink) Connect() {
	s.log.Info().Msgf("MQTT connecting to %v", s.broker)
	s.client.Connect()
}

// Publish hands a payload to the broker without waiting for delivery.
// The publish token is drained in the background only to surface errors.
func (s *MqttSink) Publish(topic string, payload []byte) error {
	if !s.client.IsConnectionOpen() {
		return ErrSinkUnavailable
	}
	token := s.client.Publish(topic, 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			s.log.Warn().Err(err).Msg("MQTT publish failed")
		}
	}()
	return nil
}

func (s *MqttSink) Close() { s.client.Disconnect(250) }
