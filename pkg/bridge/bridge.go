// Package bridge derives rover control commands from viewer telemetry and
// forwards them to an external message sink.
//
// Delivery is fire-and-forget: a failed publish is logged and dropped, the
// sender is never told and nothing is retried here. Reconnecting is the
// sink's own business.
package bridge

import (
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/questrover/relay/pkg/api"
	"github.com/questrover/relay/pkg/config"
	"github.com/questrover/relay/pkg/logger"
)

var ErrSinkUnavailable = errors.New("sink is not connected")

// Sink is the external publish target, at-most-once from our perspective.
type Sink interface {
	Publish(topic string, payload []byte) error
}

type Bridge struct {
	sink       Sink
	topic      string
	classifier Classifier
	interval   time.Duration
	log        *logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	lastRaw  time.Time
	lastCmd  Command
	haveCmd  bool
}

func New(conf config.Bridge, topic string, sink Sink, log *logger.Logger) *Bridge {
	return &Bridge{
		sink:       sink,
		topic:      topic,
		classifier: Classifier{Deadzone: conf.Deadzone, StrongPush: conf.StrongPush},
		interval:   conf.SendInterval,
		log:        log,
		now:        time.Now,
	}
}

// ForwardSample publishes a reduced controller telemetry sample,
// throttled to at most one publish per interval.
func (b *Bridge) ForwardSample(s api.StickSample) {
	b.mu.Lock()
	now := b.now()
	if now.Sub(b.lastRaw) < b.interval {
		b.mu.Unlock()
		return
	}
	b.lastRaw = now
	b.mu.Unlock()
	b.publish(mustMarshal(s))
}

// ForwardStick handles a raw stick sample: the sample itself goes out
// throttled, and its classified command goes out on transitions.
func (b *Bridge) ForwardStick(s api.StickInput) {
	b.mu.Lock()
	now := b.now()
	throttled := now.Sub(b.lastRaw) < b.interval
	if !throttled {
		b.lastRaw = now
	}
	b.mu.Unlock()
	if !throttled {
		b.publish(mustMarshal(s))
	}
	b.ForwardCommand(b.classifier.Classify(s.X, s.Y))
}

// ForwardCommand publishes a discrete command, edge-triggered: only value
// transitions go out, so a return to neutral always yields one Stop.
func (b *Bridge) ForwardCommand(cmd Command) {
	b.mu.Lock()
	if b.haveCmd && cmd == b.lastCmd {
		b.mu.Unlock()
		return
	}
	b.lastCmd, b.haveCmd = cmd, true
	b.mu.Unlock()
	b.publish([]byte(cmd))
}

// Classify exposes the bridge's classifier.
func (b *Bridge) Classify(x, y float64) Command { return b.classifier.Classify(x, y) }

func (b *Bridge) publish(payload []byte) {
	if err := b.sink.Publish(b.topic, payload); err != nil {
		b.log.Warn().Err(err).Msg("rover command dropped")
		return
	}
	metricPublished.Inc()
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// all payload types here are plain structs of scalars
		panic(err)
	}
	return data
}
