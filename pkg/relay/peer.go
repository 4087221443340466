package relay

import (
	"github.com/goccy/go-json"
	"github.com/questrover/relay/pkg/com"
	"github.com/questrover/relay/pkg/logger"
)

// Role tags a peer connection. A connection is born unassigned and gets its
// role from its first registration message.
type Role uint8

const (
	Unassigned Role = iota
	MobileConfigurator
	QuestViewer
)

func (r Role) String() string {
	switch r {
	case MobileConfigurator:
		return "mobile_configurator"
	case QuestViewer:
		return "quest_viewer"
	}
	return "unassigned"
}

// Conn is the message transport under a peer.
// Real peers sit on a websocket; tests substitute their own.
type Conn interface {
	Write(data []byte)
	Close()
	CloseWithReason(code int, reason string)
}

type Peer struct {
	id   com.Uid
	conn Conn
	log  *logger.Logger

	// guarded by the hub lock
	role Role
}

func NewPeer(id com.Uid, conn Conn, log *logger.Logger) *Peer {
	return &Peer{
		id:   id,
		conn: conn,
		log:  log.Extend(log.With().Str("cid", id.Short())),
	}
}

func (p *Peer) Id() com.Uid { return p.id }

// Send marshals and queues an outbound message.
func (p *Peer) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error().Err(err).Msg("reply marshal failed")
		return
	}
	p.conn.Write(data)
}

// SendRaw queues an already-encoded frame as is.
func (p *Peer) SendRaw(data []byte) { p.conn.Write(data) }
