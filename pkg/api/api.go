// Package api defines the wire vocabulary between the relay and its browser peers.
//
// Every frame is a JSON object with a required "type" field; the rest of the
// payload sits on the top level next to it:
//
//	{"type":"set_camera_url","url":"http://192.168.0.12:8080/video"}
//
// Inbound frames are decoded in two passes: the envelope first, then the
// type-specific fields that are needed by the handler.
package api

import (
	"github.com/goccy/go-json"
)

// Client → server message types.
const (
	RegisterMobileConfigurator = "register_mobile_configurator"
	RegisterQuestViewer        = "register_quest_viewer"
	SetCameraUrl               = "set_camera_url"
	ControllerInput            = "controller_input"
	RoverCommand               = "rover_command"
	RoverStickInput            = "rover_stick_input"
)

// Server → client message types.
const (
	UrlAck         = "url_ack"
	UrlUpdate      = "ip_webcam_url_update"
	NoStreamUrlSet = "no_stream_url_set"
	Error          = "error"
)

// In is the envelope of an inbound frame with the payload fields
// of every known type.
type In struct {
	Type    string          `json:"type"`
	Url     string          `json:"url,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Command string          `json:"command,omitempty"`
}

func Decode(data []byte) (*In, error) {
	in := In{}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

type UrlAckMsg struct {
	Type    string  `json:"type"`
	Url     *string `json:"url"`
	Message string  `json:"message"`
}

// NewUrlAck builds a url_ack reply; a nil url marks the no-URL-set state
// explicitly (the field is sent as null).
func NewUrlAck(url *string, message string) UrlAckMsg {
	return UrlAckMsg{Type: UrlAck, Url: url, Message: message}
}

type UrlUpdateMsg struct {
	Type     string `json:"type"`
	Url      string `json:"url"`
	UseProxy bool   `json:"useProxy"`
}

// NewUrlUpdate builds the viewer camera-URL update.
// Viewers always consume the stream through the relay proxy path.
func NewUrlUpdate(url string) UrlUpdateMsg {
	return UrlUpdateMsg{Type: UrlUpdate, Url: url, UseProxy: true}
}

type NoStreamUrlMsg struct {
	Type string `json:"type"`
}

func NewNoStreamUrl() NoStreamUrlMsg { return NoStreamUrlMsg{Type: NoStreamUrlSet} }

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorMsg { return ErrorMsg{Type: Error, Message: message} }

// StickInput is the raw two-axis sample of rover_stick_input.
type StickInput struct {
	Pressed bool    `json:"pressed"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// StickSample is the reduced controller telemetry published to the rover.
type StickSample struct {
	X float64 `json:"stickX"`
	Y float64 `json:"stickY"`
}

// XRInputState mirrors the WebXR input snapshot sent with controller_input.
// Everything besides handedness and axes is opaque to the relay.
type XRInputState struct {
	Inputs []XRController `json:"inputs"`
}

type XRController struct {
	Handedness string    `json:"handedness"`
	Axes       []float64 `json:"axes"`
}

// Stick reduces the snapshot to a two-axis sample. The right-hand
// controller's third and fourth axes hold the thumbstick on Quest hardware;
// older or single-stick controllers fall back to the first two axes.
func (s XRInputState) Stick() (x, y float64) {
	for _, c := range s.Inputs {
		if c.Handedness == "right" && len(c.Axes) >= 4 {
			return c.Axes[2], c.Axes[3]
		}
	}
	if len(s.Inputs) > 0 {
		first := s.Inputs[0]
		if len(first.Axes) >= 4 {
			return first.Axes[2], first.Axes[3]
		}
		if len(first.Axes) >= 2 {
			return first.Axes[0], first.Axes[1]
		}
	}
	return 0, 0
}
