package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const graphUUIDTag = "graph_uuid"

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	graphMutex sync.Mutex
	graphUUID  string
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	h.originalRequest = conn.Request()

	entry := logs.WithTag(logs.ClientIDTag, h.GetClientID())
	if h.originalRequest != nil {
		entry = entry.WithTag("http_headers", struct {
			UserAgent     string `json:"user_agent,omitempty"`
			XForwardedFor string `json:"x_forwarded_for,omitempty"`
		}{
			UserAgent:     h.originalRequest.UserAgent(),
			XForwardedFor: h.originalRequest.Header.Get("X-Forwarded-For"),
		})
	}
	entry.Info("new client is connected")
}

func (h *handlerWithLogs) HandleGraphCreate(ctx context.Context, sender ResponseSender, msg Msg) error {
	if err := h.Handler.HandleGraphCreate(ctx, sender, msg); err != nil {
		logs.WithTag(logs.ClientIDTag, h.GetClientID()).
			WithTag("request_id", msg.RequestID).
			Warn(errors.New("creating graph failed").Wrap(err))
		return err
	}

	var req GraphCreateRequest
	// Check for error here is unecessary since it would never go here if the
	// request parsing failed in h.Handler.HandleGraphCreate.
	msg.DataTo(&req)

	uuid := h.currentGraphUUID()
	h.graphMutex.Lock()
	h.graphUUID = uuid
	h.graphMutex.Unlock()

	logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag(graphUUIDTag, uuid).
		WithTag("render_distance", req.RenderDistance).
		WithTag("min_section_y", req.MinSectionY).
		WithTag("max_section_y", req.MaxSectionY).
		Info("graph created")
	return nil
}

func (h *handlerWithLogs) HandleGraphDestroy(ctx context.Context, sender ResponseSender, msg Msg) error {
	if err := h.Handler.HandleGraphDestroy(ctx, sender, msg); err != nil {
		return err
	}

	logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag(graphUUIDTag, h.loggedGraphUUID()).
		Info("graph destroyed")

	h.graphMutex.Lock()
	h.graphUUID = ""
	h.graphMutex.Unlock()
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag(graphUUIDTag, h.loggedGraphUUID())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag(graphUUIDTag, h.loggedGraphUUID()).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag(graphUUIDTag, h.loggedGraphUUID()).
				WithTag("msg_type", msg.TypeString()).
				WithTag("request_id", msg.RequestID).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag(graphUUIDTag, h.loggedGraphUUID()).
				WithTag("msg_type", msgType).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(logs.ClientIDTag, h.GetClientID()).
				WithTag(graphUUIDTag, h.loggedGraphUUID()).
				WithTag("msg_type", msgType).
				WithTag("request_id", msg.RequestID).
				WithTag("bytes", n).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithTag(logs.ClientIDTag, h.GetClientID()).
		WithTag(graphUUIDTag, h.loggedGraphUUID()).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}

func (h *handlerWithLogs) loggedGraphUUID() string {
	h.graphMutex.Lock()
	defer h.graphMutex.Unlock()

	return h.graphUUID
}

// currentGraphUUID asks the wrapped handler for the uuid of its graph, when it
// exposes one.
func (h *handlerWithLogs) currentGraphUUID() string {
	if g, ok := h.Handler.(interface{ GraphUUID() string }); ok {
		return g.GraphUUID()
	}
	return ""
}
