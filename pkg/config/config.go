package config

import (
	"time"

	flag "github.com/spf13/pflag"
)

type Config struct {
	Relay Relay
}

type Relay struct {
	Debug      bool
	Server     Server
	Monitoring Monitoring
	Proxy      Proxy
	Bridge     Bridge
	Mqtt       Mqtt
	WebDir     string `fig:"web_dir" default:"./web"`
}

type Server struct {
	Address string `default:":3000"`
	Https   bool
	Tls     struct {
		Address   string
		Domain    string
		HttpsKey  string
		HttpsCert string
	}
}

type Monitoring struct {
	Port             int    `default:"6601"`
	URLPrefix        string `fig:"url_prefix" default:"/relay"`
	MetricEnabled    bool   `fig:"metric_enabled"`
	ProfilingEnabled bool   `fig:"profiling_enabled"`
}

func (m *Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }

// Proxy holds the MJPEG re-streaming endpoint params.
type Proxy struct {
	Path           string        `default:"/proxied-stream"`
	ConnectTimeout time.Duration `fig:"connect_timeout" default:"10s"`
	Boundary       string        `default:"--jpgboundary"`
}

// Bridge holds the rover command derivation params.
type Bridge struct {
	SendInterval time.Duration `fig:"send_interval" default:"100ms"`
	Deadzone     float64       `default:"0.25"`
	StrongPush   float64       `fig:"strong_push" default:"0.7"`
}

type Mqtt struct {
	Broker         string        `default:"tcp://localhost:1883"`
	ClientId       string        `fig:"client_id" default:"quest-rover-relay"`
	Username       string
	Password       string
	Topic          string        `default:"quest/rover/control"`
	ConnectTimeout time.Duration `fig:"connect_timeout" default:"10s"`
}

// allows custom config path
var relayConfigPath string

func NewConfig() (conf Config) {
	if err := LoadConfig(&conf, relayConfigPath); err != nil {
		panic(err)
	}
	return
}

func (c *Config) ParseFlags() {
	flag.StringVar(&c.Relay.Server.Address, "address", c.Relay.Server.Address, "HTTP server address (host:port)")
	flag.IntVar(&c.Relay.Monitoring.Port, "monitoring.port", c.Relay.Monitoring.Port, "Monitoring server port")
	flag.BoolVar(&c.Relay.Debug, "debug", c.Relay.Debug, "Enable debug logging")
	flag.StringVar(&relayConfigPath, "conf", relayConfigPath, "Set custom configuration file path")
	flag.Parse()
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}
