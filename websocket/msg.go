package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	vhttp "github.com/aukilabs/voxcull/http"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeUnknownMsgType = "unknown_msg_type"
	ErrTypeNoGraph        = "no_graph"
	ErrTypeMsgDecode      = "msg_decode"
)

// HeaderClientID is the request header carrying the id of a client.
const HeaderClientID = vhttp.HeaderClientID

// MsgType identifies the content of a message.
type MsgType string

const (
	MsgTypePing          MsgType = "ping"
	MsgTypePong          MsgType = "pong"
	MsgTypeGraphCreate   MsgType = "graph_create"
	MsgTypeGraphCreated  MsgType = "graph_created"
	MsgTypeSectionSet    MsgType = "section_set"
	MsgTypeSectionRemove MsgType = "section_remove"
	MsgTypeGraphRecenter MsgType = "graph_recenter"
	MsgTypeGraphSearch   MsgType = "graph_search"
	MsgTypeSearchResult  MsgType = "search_result"
	MsgTypeGraphDestroy  MsgType = "graph_destroy"
	MsgTypeOK            MsgType = "ok"
	MsgTypeError         MsgType = "error"
)

// Msg is a message exchanged with a client. Requests and most responses are
// JSON text frames. Search results are binary frames, see EncodeSearchResult.
type Msg struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	// Binary is the payload of a message sent as a binary frame.
	Binary []byte `json:"-"`
}

// TypeString returns the message type as a string.
func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// DataTo decodes the data of the message into v.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return errors.New("message without data").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

// NewMsg creates a JSON message carrying data.
func NewMsg(t MsgType, requestID uint32, data any) (Msg, error) {
	msg := Msg{
		Type:      t,
		RequestID: requestID,
	}

	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Msg{}, errors.New("encoding message data failed").
				WithTag("msg_type", t).
				Wrap(err)
		}
		msg.Data = b
	}
	return msg, nil
}

// Receiver reads the next message of a connection. It returns the number of
// bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message to a connection. It returns the number of bytes
// written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages for a connection.
type ResponseSender interface {
	Send(Msg)
}

// Receive reads a message from conn. Text and binary frames both carry a JSON
// message.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").
			WithType(ErrTypeMsgDecode).
			Wrap(err)
	}
	return msg, len(b), nil
}

// Send writes msg to conn, as a binary frame when it has a binary payload.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	if msg.Binary != nil {
		return len(msg.Binary), websocket.Message.Send(conn, msg.Binary)
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").Wrap(err)
	}
	return len(b), websocket.Message.Send(conn, string(b))
}

type GraphCreateRequest struct {
	RenderDistance uint8 `json:"render_distance"`
	MinSectionY    int8  `json:"min_section_y"`
	MaxSectionY    int8  `json:"max_section_y"`
}

type GraphCreateResponse struct {
	GraphUUID string       `json:"graph_uuid"`
	Bounds    graph.Bounds `json:"bounds"`
}

// SectionSetRequest sets a section. Visibility is the raw 6x6 matrix; when
// OpaqueFaces is not empty, it is used instead.
type SectionSetRequest struct {
	X           int32             `json:"x"`
	Y           int32             `json:"y"`
	Z           int32             `json:"z"`
	Visibility  uint64            `json:"visibility"`
	OpaqueFaces []graph.Direction `json:"opaque_faces,omitempty"`
	Flags       uint8             `json:"flags,omitempty"`
}

func (r SectionSetRequest) VisibilityData() graph.VisibilityData {
	if len(r.OpaqueFaces) != 0 {
		return graph.OpaqueFaces(graph.DirectionSetOf(r.OpaqueFaces...))
	}
	return graph.VisibilityData(r.Visibility)
}

type SectionRemoveRequest struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

type GraphRecenterRequest struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

// GraphSearchRequest searches the graph of the connection. The frustum is
// either its binary layout, base64 encoded, or six planes with the camera
// offset.
type GraphSearchRequest struct {
	Frustum          []byte       `json:"frustum,omitempty"`
	Planes           [][4]float32 `json:"planes,omitempty"`
	Offset           [3]float64   `json:"offset"`
	SearchDistance   float32      `json:"search_distance"`
	OcclusionCulling *bool        `json:"occlusion_culling,omitempty"`
	Frame            uint64       `json:"frame,omitempty"`
}

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
