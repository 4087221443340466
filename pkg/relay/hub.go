package relay

import (
	"net/http"
	"strings"
	"sync"

	gws "github.com/gorilla/websocket"
	"github.com/goccy/go-json"
	"github.com/questrover/relay/pkg/api"
	"github.com/questrover/relay/pkg/bridge"
	"github.com/questrover/relay/pkg/com"
	"github.com/questrover/relay/pkg/config"
	"github.com/questrover/relay/pkg/logger"
	"github.com/questrover/relay/pkg/network/websocket"
)

const evictionReason = "new configurator connected, closing old session"

// Hub is the connection registry and message router. All registry state
// (the single configurator, the viewer set, the shared camera URL) is
// mutated only under one lock, so every message handler runs to completion
// against a consistent view, same as a single-threaded event loop would.
type Hub struct {
	conf   config.Relay
	log    *logger.Logger
	bridge *bridge.Bridge

	mu           sync.Mutex
	viewers      com.Map[com.Uid, *Peer]
	configurator *Peer
	cameraUrl    string
}

func NewHub(conf config.Relay, b *bridge.Bridge, log *logger.Logger) *Hub {
	return &Hub{
		conf:    conf,
		log:     log,
		bridge:  b,
		viewers: com.NewMap[com.Uid, *Peer](),
	}
}

// CameraUrl returns the shared camera source URL, "" until a configurator
// sets one.
func (h *Hub) CameraUrl() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cameraUrl
}

// handleWebsocketConnection owns one peer connection from upgrade to close.
func (h *Hub) handleWebsocketConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("socket upgrade failed")
		return
	}
	peer := NewPeer(ws.Id(), ws, h.log)
	peer.log.Debug().Msg("connect")
	ws.OnMessage = func(message []byte, err error) {
		if err != nil {
			return
		}
		h.Handle(peer, message)
	}
	ws.Listen()
	<-ws.Done
	h.Disconnect(peer)
}

// Handle routes one inbound frame. Handlers run under the hub lock in
// arrival order per connection.
func (h *Hub) Handle(p *Peer, raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	in, err := api.Decode(raw)
	if err != nil {
		p.Send(api.NewError("invalid JSON format"))
		return
	}
	switch in.Type {
	case api.RegisterMobileConfigurator:
		h.registerConfigurator(p)
	case api.RegisterQuestViewer:
		h.registerViewer(p)
	case api.SetCameraUrl:
		h.setCameraUrl(p, in.Url)
	case api.ControllerInput:
		h.controllerInput(p, raw, in.Input)
	case api.RoverStickInput:
		h.roverStickInput(p, in.Input)
	case api.RoverCommand:
		h.roverCommand(p, in.Command)
	default:
		metricMessages.WithLabelValues("unknown").Inc()
		p.Send(api.NewError("unknown command: " + in.Type))
		return
	}
	metricMessages.WithLabelValues(in.Type).Inc()
}

// Disconnect drops the peer from whatever it is a member of. A stale
// configurator never clears a newer holder.
func (h *Hub) Disconnect(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.viewers.Has(p.id) {
		h.viewers.RemoveByKey(p.id)
		metricViewers.Set(float64(h.viewers.Len()))
	}
	if h.configurator == p {
		h.configurator = nil
	}
	p.log.Debug().Str("role", p.role.String()).Msg("disconnect")
}

func (h *Hub) registerConfigurator(p *Peer) {
	if p.role != Unassigned && p.role != MobileConfigurator {
		p.Send(api.NewError("already registered as " + p.role.String()))
		return
	}
	if prev := h.configurator; prev != nil && prev != p {
		prev.log.Info().Msg("configurator superseded")
		prev.conn.CloseWithReason(gws.CloseNormalClosure, evictionReason)
	}
	h.configurator = p
	p.role = MobileConfigurator
	p.log.Info().Msg("mobile configurator registered")
	if h.cameraUrl != "" {
		url := h.cameraUrl
		p.Send(api.NewUrlAck(&url, "Retrieved current URL from server"))
	} else {
		p.Send(api.NewUrlAck(nil, "No URL set on server yet"))
	}
}

func (h *Hub) registerViewer(p *Peer) {
	if p.role != Unassigned && p.role != QuestViewer {
		p.Send(api.NewError("already registered as " + p.role.String()))
		return
	}
	p.role = QuestViewer
	h.viewers.Put(p.id, p)
	metricViewers.Set(float64(h.viewers.Len()))
	p.log.Info().Msg("quest viewer registered")
	if h.cameraUrl != "" {
		p.Send(api.NewUrlUpdate(h.cameraUrl))
	} else {
		p.Send(api.NewNoStreamUrl())
	}
}

func (h *Hub) setCameraUrl(p *Peer, url string) {
	if p.role != MobileConfigurator || h.configurator != p {
		p.Send(api.NewError("not authorized to set URL"))
		return
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		p.Send(api.NewError("invalid URL format, must start with http:// or https://"))
		return
	}
	h.cameraUrl = url
	h.log.Info().Msgf("camera URL set to %v", url)
	p.Send(api.NewUrlAck(&url, "URL successfully updated on server"))
	update := api.NewUrlUpdate(url)
	h.viewers.ForEach(func(viewer *Peer) { viewer.Send(update) })
}

func (h *Hub) controllerInput(p *Peer, raw []byte, input json.RawMessage) {
	if p.role != QuestViewer {
		p.Send(api.NewError("not authorized to send controller input"))
		return
	}
	// echo back for the client's own telemetry display, sender only
	p.SendRaw(raw)

	if len(input) == 0 {
		return
	}
	state := api.XRInputState{}
	if err := json.Unmarshal(input, &state); err != nil || state.Inputs == nil {
		return
	}
	x, y := state.Stick()
	h.bridge.ForwardSample(api.StickSample{X: x, Y: y})
}

func (h *Hub) roverStickInput(p *Peer, input json.RawMessage) {
	if p.role != QuestViewer {
		p.Send(api.NewError("not authorized to drive the rover"))
		return
	}
	stick := api.StickInput{}
	if err := json.Unmarshal(input, &stick); err != nil {
		p.Send(api.NewError("malformed stick input"))
		return
	}
	h.bridge.ForwardStick(stick)
}

func (h *Hub) roverCommand(p *Peer, command string) {
	if p.role != QuestViewer {
		p.Send(api.NewError("not authorized to drive the rover"))
		return
	}
	if command == "" {
		p.Send(api.NewError("empty rover command"))
		return
	}
	h.bridge.ForwardCommand(bridge.Command(command))
}
