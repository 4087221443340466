package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/questrover/relay/pkg/bridge"
	"github.com/questrover/relay/pkg/com"
	"github.com/questrover/relay/pkg/config"
	"github.com/questrover/relay/pkg/logger"
)

type fakeConn struct {
	mu        sync.Mutex
	sent      [][]byte
	closed    bool
	closeCode int
	reason    string
}

func (c *fakeConn) Write(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) CloseWithReason(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed, c.closeCode, c.reason = true, code, reason
}

// reply mirrors every server-side message shape for assertions.
type reply struct {
	Type     string  `json:"type"`
	Url      *string `json:"url"`
	Message  string  `json:"message"`
	UseProxy bool    `json:"useProxy"`
}

func (c *fakeConn) replies(t *testing.T) []reply {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]reply, 0, len(c.sent))
	for _, data := range c.sent {
		r := reply{}
		if err := json.Unmarshal(data, &r); err != nil {
			t.Fatalf("bad reply %s: %v", data, err)
		}
		out = append(out, r)
	}
	return out
}

func (c *fakeConn) lastReply(t *testing.T) reply {
	t.Helper()
	rs := c.replies(t)
	if len(rs) == 0 {
		t.Fatal("no replies")
	}
	return rs[len(rs)-1]
}

type hubSink struct {
	mu       sync.Mutex
	payloads []string
}

func (s *hubSink) Publish(_ string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, string(payload))
	return nil
}

func (s *hubSink) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...)
}

func newTestHub(sink bridge.Sink) *Hub {
	log := logger.Default()
	conf := config.Bridge{SendInterval: 100 * time.Millisecond, Deadzone: 0.25, StrongPush: 0.7}
	b := bridge.New(conf, "rover/test", sink, log)
	return NewHub(config.Relay{}, b, log)
}

func newTestPeer() (*Peer, *fakeConn) {
	conn := &fakeConn{}
	return NewPeer(com.NewUid(), conn, logger.Default()), conn
}

func TestConfiguratorRegistration(t *testing.T) {
	h := newTestHub(&hubSink{})
	p, conn := newTestPeer()

	h.Handle(p, []byte(`{"type":"register_mobile_configurator"}`))

	r := conn.lastReply(t)
	if r.Type != "url_ack" || r.Url != nil {
		t.Errorf("expected url_ack with null url, got %+v", r)
	}
}

func TestConfiguratorEviction(t *testing.T) {
	h := newTestHub(&hubSink{})
	a, connA := newTestPeer()
	b, _ := newTestPeer()

	h.Handle(a, []byte(`{"type":"register_mobile_configurator"}`))
	h.Handle(b, []byte(`{"type":"register_mobile_configurator"}`))

	connA.mu.Lock()
	closed, code, reason := connA.closed, connA.closeCode, connA.reason
	connA.mu.Unlock()
	if !closed || code != 1000 || reason != evictionReason {
		t.Fatalf("expected old session closed with 1000 %q, got closed=%v code=%v reason=%q",
			evictionReason, closed, code, reason)
	}

	// the stale peer's disconnect must not clear the new holder
	h.Disconnect(a)
	h.Handle(b, []byte(`{"type":"set_camera_url","url":"http://cam.local/video"}`))
	if got := h.CameraUrl(); got != "http://cam.local/video" {
		t.Errorf("camera URL = %q, want set by the new configurator", got)
	}
}

func TestViewerRegistration(t *testing.T) {
	t.Run("noUrl", func(t *testing.T) {
		h := newTestHub(&hubSink{})
		v, conn := newTestPeer()
		h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))
		if r := conn.lastReply(t); r.Type != "no_stream_url_set" {
			t.Errorf("expected no_stream_url_set, got %+v", r)
		}
	})
	t.Run("idempotent", func(t *testing.T) {
		h := newTestHub(&hubSink{})
		c, _ := newTestPeer()
		v, conn := newTestPeer()
		h.Handle(c, []byte(`{"type":"register_mobile_configurator"}`))
		h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))
		h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))

		h.Handle(c, []byte(`{"type":"set_camera_url","url":"http://cam.local/video"}`))

		conn.mu.Lock()
		n := len(conn.sent)
		conn.mu.Unlock()
		// two registration replies and a single broadcast copy
		if n != 3 {
			t.Errorf("viewer got %v messages, want 3", n)
		}
	})
	t.Run("urlAlreadySet", func(t *testing.T) {
		h := newTestHub(&hubSink{})
		c, _ := newTestPeer()
		h.Handle(c, []byte(`{"type":"register_mobile_configurator"}`))
		h.Handle(c, []byte(`{"type":"set_camera_url","url":"http://cam.local/video"}`))

		v, conn := newTestPeer()
		h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))
		r := conn.lastReply(t)
		if r.Type != "ip_webcam_url_update" || r.Url == nil || *r.Url != "http://cam.local/video" || !r.UseProxy {
			t.Errorf("expected proxied url update, got %+v", r)
		}
	})
}

func TestSetCameraUrl(t *testing.T) {
	t.Run("broadcast", func(t *testing.T) {
		h := newTestHub(&hubSink{})
		c, connC := newTestPeer()
		v, connV := newTestPeer()
		h.Handle(c, []byte(`{"type":"register_mobile_configurator"}`))
		h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))

		h.Handle(c, []byte(`{"type":"set_camera_url","url":"https://cam.local/video"}`))

		if r := connC.lastReply(t); r.Type != "url_ack" || r.Url == nil || *r.Url != "https://cam.local/video" {
			t.Errorf("expected url_ack to configurator, got %+v", r)
		}
		if r := connV.lastReply(t); r.Type != "ip_webcam_url_update" || !r.UseProxy {
			t.Errorf("expected url update to viewer, got %+v", r)
		}
	})
	t.Run("sameUrlRebroadcast", func(t *testing.T) {
		h := newTestHub(&hubSink{})
		c, _ := newTestPeer()
		v, connV := newTestPeer()
		h.Handle(c, []byte(`{"type":"register_mobile_configurator"}`))
		h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))

		h.Handle(c, []byte(`{"type":"set_camera_url","url":"http://cam.local/video"}`))
		h.Handle(c, []byte(`{"type":"set_camera_url","url":"http://cam.local/video"}`))

		if got := h.CameraUrl(); got != "http://cam.local/video" {
			t.Errorf("camera URL = %q after repeated set", got)
		}
		rs := connV.replies(t)
		// registration reply plus one update per set
		if len(rs) != 3 || rs[2].Type != "ip_webcam_url_update" {
			t.Errorf("viewer replies = %+v, want a rebroadcast per set", rs)
		}
	})
	t.Run("badScheme", func(t *testing.T) {
		h := newTestHub(&hubSink{})
		c, conn := newTestPeer()
		h.Handle(c, []byte(`{"type":"register_mobile_configurator"}`))
		h.Handle(c, []byte(`{"type":"set_camera_url","url":"ftp://cam.local/video"}`))
		if r := conn.lastReply(t); r.Type != "error" {
			t.Errorf("expected error, got %+v", r)
		}
		if h.CameraUrl() != "" {
			t.Errorf("camera URL must stay unset after a rejected update")
		}
	})
	t.Run("viewerNotAuthorized", func(t *testing.T) {
		h := newTestHub(&hubSink{})
		v, conn := newTestPeer()
		h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))
		h.Handle(v, []byte(`{"type":"set_camera_url","url":"http://cam.local/video"}`))
		if r := conn.lastReply(t); r.Type != "error" {
			t.Errorf("expected error, got %+v", r)
		}
		if h.CameraUrl() != "" {
			t.Errorf("camera URL must stay unset after an unauthorized update")
		}
	})
}

func TestRoleConflict(t *testing.T) {
	h := newTestHub(&hubSink{})
	p, conn := newTestPeer()
	h.Handle(p, []byte(`{"type":"register_quest_viewer"}`))
	h.Handle(p, []byte(`{"type":"register_mobile_configurator"}`))
	if r := conn.lastReply(t); r.Type != "error" {
		t.Errorf("expected error on role switch, got %+v", r)
	}
}

func TestUnknownAndMalformed(t *testing.T) {
	h := newTestHub(&hubSink{})
	p, conn := newTestPeer()

	h.Handle(p, []byte(`{"type":"fly_to_the_moon"}`))
	if r := conn.lastReply(t); r.Type != "error" || r.Message != "unknown command: fly_to_the_moon" {
		t.Errorf("expected unknown command error, got %+v", r)
	}

	h.Handle(p, []byte(`{"type":`))
	if r := conn.lastReply(t); r.Type != "error" || r.Message != "invalid JSON format" {
		t.Errorf("expected invalid JSON error, got %+v", r)
	}
}

func TestControllerInputEcho(t *testing.T) {
	sink := &hubSink{}
	h := newTestHub(sink)
	v, connV := newTestPeer()
	other, connOther := newTestPeer()
	h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))
	h.Handle(other, []byte(`{"type":"register_quest_viewer"}`))

	frame := []byte(`{"type":"controller_input","input":{"inputs":[{"handedness":"right","axes":[0,0,0.1,-0.9]}]}}`)
	h.Handle(v, frame)

	connV.mu.Lock()
	echoed := string(connV.sent[len(connV.sent)-1])
	senderN := len(connV.sent)
	connV.mu.Unlock()
	if echoed != string(frame) {
		t.Errorf("echo = %s, want the frame verbatim", echoed)
	}
	if senderN != 2 {
		t.Errorf("sender got %v messages, want registration reply + echo", senderN)
	}
	connOther.mu.Lock()
	otherN := len(connOther.sent)
	connOther.mu.Unlock()
	if otherN != 1 {
		t.Errorf("input leaked to another viewer, got %v messages", otherN)
	}

	want := `{"stickX":0.1,"stickY":-0.9}`
	if got := sink.published(); len(got) != 1 || got[0] != want {
		t.Errorf("forwarded %v, want [%v]", got, want)
	}
}

func TestControllerInputRequiresViewer(t *testing.T) {
	sink := &hubSink{}
	h := newTestHub(sink)
	p, conn := newTestPeer()

	h.Handle(p, []byte(`{"type":"controller_input","input":{"inputs":[]}}`))

	if r := conn.lastReply(t); r.Type != "error" {
		t.Errorf("expected error, got %+v", r)
	}
	if got := sink.published(); len(got) != 0 {
		t.Errorf("nothing may reach the rover, got %v", got)
	}
}

func TestRoverCommand(t *testing.T) {
	sink := &hubSink{}
	h := newTestHub(sink)
	v, conn := newTestPeer()
	h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))

	h.Handle(v, []byte(`{"type":"rover_command","command":"MOVE_FORWARD"}`))
	h.Handle(v, []byte(`{"type":"rover_command","command":"MOVE_FORWARD"}`))
	h.Handle(v, []byte(`{"type":"rover_command","command":"STOP"}`))

	want := []string{"MOVE_FORWARD", "STOP"}
	got := sink.published()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command #%v = %v, want %v", i, got[i], want[i])
		}
	}

	h.Handle(v, []byte(`{"type":"rover_command"}`))
	if r := conn.lastReply(t); r.Type != "error" {
		t.Errorf("expected error on empty command, got %+v", r)
	}
}

func TestViewerDisconnectLeavesBroadcastList(t *testing.T) {
	h := newTestHub(&hubSink{})
	c, _ := newTestPeer()
	v, connV := newTestPeer()
	h.Handle(c, []byte(`{"type":"register_mobile_configurator"}`))
	h.Handle(v, []byte(`{"type":"register_quest_viewer"}`))
	h.Disconnect(v)

	h.Handle(c, []byte(`{"type":"set_camera_url","url":"http://cam.local/video"}`))

	connV.mu.Lock()
	n := len(connV.sent)
	connV.mu.Unlock()
	if n != 1 {
		t.Errorf("disconnected viewer still receives broadcasts, got %v messages", n)
	}
}
