package smoketest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/aukilabs/voxcull/scenario"
	vwebsocket "github.com/aukilabs/voxcull/websocket"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const remoteRequestTimeout = 5 * time.Second

// RemoteReport is the outcome of replaying a scenario over the visibility
// service.
type RemoteReport struct {
	Name    string        `json:"name"`
	Passed  bool          `json:"passed"`
	Receipt common.Hash   `json:"receipt"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// replay replays the scenarios on the endpoint, expecting the receipts of the
// local runs.
func replay(ctx context.Context, opts Options, scenarios []scenario.Scenario, local []scenario.Report) []RemoteReport {
	expected := make(map[string]common.Hash, len(local))
	for _, r := range local {
		expected[r.Name] = r.Receipt
	}

	reports := make([]RemoteReport, 0, len(scenarios))
	for _, s := range scenarios {
		if ctx.Err() != nil {
			break
		}

		report := RemoteReport{Name: s.Name}
		start := time.Now()

		receipt, err := replayScenario(ctx, opts, s)
		report.Latency = time.Since(start)
		report.Receipt = receipt

		switch {
		case err != nil:
			report.Error = err.Error()

		case receipt != expected[s.Name]:
			report.Error = "receipt does not match the local run"

		default:
			report.Passed = true
		}
		reports = append(reports, report)
	}
	return reports
}

func replayScenario(ctx context.Context, opts Options, s scenario.Scenario) (common.Hash, error) {
	c, err := dial(opts)
	if err != nil {
		return common.Hash{}, err
	}
	defer c.close()

	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	if _, err := c.request(vwebsocket.MsgTypeGraphCreate, vwebsocket.GraphCreateRequest{
		RenderDistance: s.Graph.RenderDistance,
		MinSectionY:    s.Graph.MinSectionY,
		MaxSectionY:    s.Graph.MaxSectionY,
	}); err != nil {
		return common.Hash{}, err
	}

	if _, err := c.request(vwebsocket.MsgTypeGraphRecenter, vwebsocket.GraphRecenterRequest{
		X: s.Center.X,
		Z: s.Center.Z,
	}); err != nil {
		return common.Hash{}, err
	}

	for _, section := range s.Sections {
		flags, err := section.SectionFlags()
		if err != nil {
			return common.Hash{}, err
		}

		_, err = c.request(vwebsocket.MsgTypeSectionSet, vwebsocket.SectionSetRequest{
			X:          section.At.X,
			Y:          section.At.Y,
			Z:          section.At.Z,
			Visibility: uint64(section.Visibility()),
			Flags:      uint8(flags),
		})
		if s.SkipRejected && errors.IsType(err, graph.ErrTypeOutOfBounds) {
			continue
		}
		if err != nil {
			return common.Hash{}, err
		}
	}

	for _, coord := range s.Removed {
		if _, err := c.request(vwebsocket.MsgTypeSectionRemove, vwebsocket.SectionRemoveRequest{
			X: coord.X,
			Y: coord.Y,
			Z: coord.Z,
		}); err != nil {
			return common.Hash{}, err
		}
	}

	if s.Recenter != nil {
		if _, err := c.request(vwebsocket.MsgTypeGraphRecenter, vwebsocket.GraphRecenterRequest{
			X: s.Recenter.X,
			Z: s.Recenter.Z,
		}); err != nil {
			return common.Hash{}, err
		}
	}

	frustum, err := s.BuildFrustum().MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}

	res, err := c.request(vwebsocket.MsgTypeGraphSearch, vwebsocket.GraphSearchRequest{
		Frustum:          frustum,
		SearchDistance:   s.SearchDistance,
		OcclusionCulling: &s.OcclusionCulling,
	})
	if err != nil {
		return common.Hash{}, err
	}

	result, err := vwebsocket.DecodeSearchResult(res.Binary)
	if err != nil {
		return common.Hash{}, err
	}
	if result.Receipt == (common.Hash{}) {
		return common.Hash{}, errors.New("search result without receipt").
			WithType(ErrTypeCheckFailed).
			WithTag("scenario", s.Name)
	}
	return result.Receipt, nil
}

type client struct {
	conn      *websocket.Conn
	requestID uint32
	closeOnce sync.Once
}

func dial(opts Options) (*client, error) {
	endpoint := strings.Replace(opts.Endpoint, "http", "ws", 1)

	config, err := websocket.NewConfig(endpoint, opts.Endpoint)
	if err != nil {
		return nil, errors.New("invalid smoke test endpoint").
			WithTag("endpoint", opts.Endpoint).
			Wrap(err)
	}
	config.Header.Set("User-Agent", opts.UserAgent)
	config.Header.Set(vwebsocket.HeaderClientID, uuid.NewString())
	if opts.AuthToken != "" {
		config.Header.Set("Authorization", "Bearer "+opts.AuthToken)
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, errors.New("dialing visibility service failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}

	return &client{conn: conn}, nil
}

// request sends a request and waits for its response. Error responses are
// returned as errors carrying the remote error type.
func (c *client) request(t vwebsocket.MsgType, data any) (vwebsocket.Msg, error) {
	c.requestID++

	msg, err := vwebsocket.NewMsg(t, c.requestID, data)
	if err != nil {
		return vwebsocket.Msg{}, err
	}

	c.conn.SetDeadline(time.Now().Add(remoteRequestTimeout))
	if _, err := vwebsocket.Send(c.conn, msg); err != nil {
		return vwebsocket.Msg{}, errors.New("sending request failed").
			WithTag("msg_type", t).
			Wrap(err)
	}

	var b []byte
	if err := websocket.Message.Receive(c.conn, &b); err != nil {
		return vwebsocket.Msg{}, errors.New("receiving response failed").
			WithTag("msg_type", t).
			Wrap(err)
	}

	if t == vwebsocket.MsgTypeGraphSearch && len(b) != 0 && b[0] != '{' {
		return vwebsocket.Msg{Type: vwebsocket.MsgTypeSearchResult, Binary: b}, nil
	}

	var res vwebsocket.Msg
	if err := json.Unmarshal(b, &res); err != nil {
		return vwebsocket.Msg{}, errors.New("decoding response failed").
			WithTag("msg_type", t).
			Wrap(err)
	}

	if res.Type == vwebsocket.MsgTypeError {
		var e vwebsocket.ErrorResponse
		res.DataTo(&e)
		return vwebsocket.Msg{}, errors.New(e.Message).
			WithType(e.Type).
			WithTag("msg_type", t)
	}
	return res, nil
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}
