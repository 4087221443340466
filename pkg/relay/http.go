package relay

import (
	"net/http"

	"github.com/questrover/relay/pkg/config"
	"github.com/questrover/relay/pkg/logger"
	"github.com/questrover/relay/pkg/network/httpx"
)

func NewHTTPServer(conf config.Config, log *logger.Logger, hub *Hub, proxy *Proxy) (*httpx.Server, error) {
	return httpx.NewServer(
		conf.Relay.Server.GetAddr(),
		func(*httpx.Server) http.Handler {
			h := http.NewServeMux()
			h.Handle("/", httpx.FileServer(conf.Relay.WebDir))
			h.HandleFunc("/ws", hub.handleWebsocketConnection)
			h.Handle(conf.Relay.Proxy.Path, proxy)
			return h
		},
		httpx.WithServerConfig(conf.Relay.Server),
		httpx.WithLogger(log),
	)
}
