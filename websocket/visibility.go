package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/engine"
	"github.com/aukilabs/voxcull/featureflag"
	"github.com/aukilabs/voxcull/graph"
	"github.com/aukilabs/voxcull/receipt"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// VisibilityHandler serves the graph of a single connection: a renderer in
// another process creates, mutates and searches it over the connection.
type VisibilityHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The engine where graphs are created. engine.Default is used when nil.
	Engine *engine.Engine

	FeatureFlags featureflag.FeatureFlag

	conn      *websocket.Conn
	clientID  string
	graph     engine.Handle
	graphUUID string
	hasGraph  bool
	frame     uint64
}

func (h *VisibilityHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *VisibilityHandler) HandleDisconnect(_ error) {
	h.destroyGraph()
}

func (h *VisibilityHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

// HandleGraphCreate creates the graph of the connection, replacing the
// previous one.
func (h *VisibilityHandler) HandleGraphCreate(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req GraphCreateRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	e := h.engine()
	handle, err := e.Create(req.RenderDistance, req.MinSectionY, req.MaxSectionY)
	if err != nil {
		return err
	}

	info, err := e.DebugInfo(handle)
	if err != nil {
		e.Destroy(handle)
		return err
	}

	h.destroyGraph()
	h.graph = handle
	h.graphUUID = info.UUID
	h.hasGraph = true
	h.frame = 0

	res, err := NewMsg(MsgTypeGraphCreated, msg.RequestID, GraphCreateResponse{
		GraphUUID: info.UUID,
		Bounds:    info.Bounds,
	})
	if err != nil {
		return err
	}
	respond.Send(res)
	return nil
}

func (h *VisibilityHandler) HandleSectionSet(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req SectionSetRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}
	if err := h.checkGraph(); err != nil {
		return err
	}

	err := h.engine().SetSection(h.graph, req.X, req.Y, req.Z,
		req.VisibilityData(),
		graph.SectionFlags(req.Flags),
	)
	if err != nil {
		return err
	}

	respond.Send(Msg{Type: MsgTypeOK, RequestID: msg.RequestID})
	return nil
}

func (h *VisibilityHandler) HandleSectionRemove(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req SectionRemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}
	if err := h.checkGraph(); err != nil {
		return err
	}

	if err := h.engine().RemoveSection(h.graph, req.X, req.Y, req.Z); err != nil {
		return err
	}

	respond.Send(Msg{Type: MsgTypeOK, RequestID: msg.RequestID})
	return nil
}

func (h *VisibilityHandler) HandleGraphRecenter(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req GraphRecenterRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}
	if err := h.checkGraph(); err != nil {
		return err
	}

	if err := h.engine().SetCenter(h.graph, req.X, req.Z); err != nil {
		return err
	}

	respond.Send(Msg{Type: MsgTypeOK, RequestID: msg.RequestID})
	return nil
}

// HandleGraphSearch searches the graph and responds with a binary search
// result frame. Frames without an explicit number are numbered after the
// previous search.
func (h *VisibilityHandler) HandleGraphSearch(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req GraphSearchRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}
	if err := h.checkGraph(); err != nil {
		return err
	}

	f, err := req.frustum()
	if err != nil {
		return err
	}

	culling := req.OcclusionCulling == nil || *req.OcclusionCulling
	h.FeatureFlags.IfSet(featureflag.FlagDisableOcclusionCulling, func() {
		culling = false
	})

	rs, err := h.engine().Search(h.graph, f, req.SearchDistance, culling)
	if err != nil {
		return err
	}

	if req.Frame != 0 {
		h.frame = req.Frame
	} else {
		h.frame++
	}

	res := SearchResult{
		RequestID: msg.RequestID,
		Frame:     h.frame,
		GraphUUID: h.graphUUID,
		Visible:   rs.Len(),
		Tiles:     rs.Tiles,
	}
	h.FeatureFlags.IfNotSet(featureflag.FlagDisableSearchReceipts, func() {
		res.Receipt = receipt.New(h.graphUUID, h.frame, rs).Hash
	})

	// The frame is encoded before the graph is touched again, so the tiles
	// can be read in place.
	respond.Send(Msg{
		Type:      MsgTypeSearchResult,
		RequestID: msg.RequestID,
		Binary:    EncodeSearchResult(nil, res),
	})
	return nil
}

func (h *VisibilityHandler) HandleGraphDestroy(ctx context.Context, respond ResponseSender, msg Msg) error {
	if err := h.checkGraph(); err != nil {
		return err
	}

	handle := h.graph
	h.hasGraph = false
	h.graphUUID = ""
	if err := h.engine().Destroy(handle); err != nil {
		return err
	}

	respond.Send(Msg{Type: MsgTypeOK, RequestID: msg.RequestID})
	return nil
}

func (h *VisibilityHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *VisibilityHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *VisibilityHandler) Close() {
	h.destroyGraph()
}

func (h *VisibilityHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *VisibilityHandler) GetClientID() string {
	return h.clientID
}

// GraphUUID returns the uuid of the graph of the connection.
func (h *VisibilityHandler) GraphUUID() string {
	return h.graphUUID
}

func (h *VisibilityHandler) engine() *engine.Engine {
	if h.Engine == nil {
		return engine.Default
	}
	return h.Engine
}

func (h *VisibilityHandler) checkGraph() error {
	if !h.hasGraph {
		return errors.New("no graph created").
			WithType(ErrTypeNoGraph).
			WithTag("client_id", h.clientID)
	}
	return nil
}

func (h *VisibilityHandler) destroyGraph() {
	if !h.hasGraph {
		return
	}

	h.hasGraph = false
	h.graphUUID = ""
	h.engine().Destroy(h.graph)
}

func (r GraphSearchRequest) frustum() (graph.Frustum, error) {
	switch {
	case len(r.Frustum) != 0 && len(r.Planes) != 0:
		return graph.Frustum{}, errors.New("frustum and planes both set").
			WithType(graph.ErrTypeInvalidArgument)

	case len(r.Frustum) != 0:
		return graph.UnmarshalFrustum(r.Frustum)

	case len(r.Planes) == 6:
		var planes [6]mgl32.Vec4
		for i, p := range r.Planes {
			planes[i] = mgl32.Vec4(p)
		}
		f := graph.NewFrustum(planes, mgl64.Vec3(r.Offset))
		return f, f.Validate()

	case len(r.Planes) == 0:
		return graph.SphereFrustum(mgl64.Vec3(r.Offset)), nil

	default:
		return graph.Frustum{}, errors.New("a frustum has six planes").
			WithType(graph.ErrTypeMalformedFrustum).
			WithTag("planes", len(r.Planes))
	}
}
