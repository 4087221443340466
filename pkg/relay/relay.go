// Package relay wires the signaling hub, the MJPEG proxy, and the rover
// command bridge into one service.
package relay

import (
	"context"

	"github.com/questrover/relay/pkg/bridge"
	"github.com/questrover/relay/pkg/config"
	"github.com/questrover/relay/pkg/logger"
	"github.com/questrover/relay/pkg/monitoring"
	"github.com/questrover/relay/pkg/service"
)

type Relay struct {
	conf     config.Config
	log      *logger.Logger
	services service.Group

	hub  *Hub
	sink *bridge.MqttSink
}

func New(conf config.Config, log *logger.Logger) *Relay {
	r := &Relay{conf: conf, log: log}

	r.sink = bridge.NewMqttSink(conf.Relay.Mqtt, log)
	b := bridge.New(conf.Relay.Bridge, conf.Relay.Mqtt.Topic, r.sink, log)
	r.hub = NewHub(conf.Relay, b, log)

	proxy := NewProxy(conf.Relay.Proxy, r.hub.CameraUrl, nil, log)
	h, err := NewHTTPServer(conf, log, r.hub, proxy)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't init the HTTP server")
	}
	r.services.Add(h)
	if conf.Relay.Monitoring.IsEnabled() {
		if m := monitoring.New(conf.Relay.Monitoring, "relay", log); m != nil {
			r.services.Add(m)
		}
	}
	return r
}

func (r *Relay) Start() {
	r.sink.Connect()
	r.services.Start()
}

func (r *Relay) Shutdown(ctx context.Context) error {
	r.sink.Close()
	return r.services.Shutdown(ctx)
}
