package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/voxcull/engine"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents a visibility service handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to create the graph of the connection.
	HandleGraphCreate(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to add or replace a section.
	HandleSectionSet(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to remove a section.
	HandleSectionRemove(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to move the horizontal center of the graph.
	HandleGraphRecenter(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to search the graph.
	HandleGraphSearch(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to destroy the graph.
	HandleGraphDestroy(ctx context.Context, respond ResponseSender, msg Msg) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the id of the connected client.
	GetClientID() string
}

// Handle handles a connection with the given handler. It returns when the
// connection is closed or the context canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Handler:        h,
		Conn:           conn,
		sendChan:       make(chan Msg, sendChanSize),
		receiveChan:    make(chan Msg, receiveChanSize),
		disconnectChan: make(chan error, 8),
	}
	handler.handle(ctx)
}

type handler struct {
	Handler
	Conn *websocket.Conn

	sendChan       chan Msg
	receiveChan    chan Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)
	h.sender = h.Handler.Sender()
	h.receiver = h.Handler.Receiver()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	responder := responseSender{send: h.send}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			// cancel context so go routines can cleanly exit
			cancel()
		}
	}

	wg.Wait()
}

func (h *handler) send(msg Msg) {
	select {
	case h.sendChan <- msg:
	default:
		logs.WithTag(logs.ClientIDTag, h.Handler.GetClientID()).
			WithTag("msg_type", msg.TypeString()).
			Warn(errors.New("send queue full, dropping message"))
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if errors.IsType(err, ErrTypeMsgDecode) {
				h.send(errorMsg(msg, err))
				continue
			}
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case h.receiveChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleMessage dispatches msg. Request errors are answered with an error
// message; only internal faults end the connection.
func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	var err error

	switch msg.Type {
	case MsgTypePing:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeGraphCreate:
		err = h.Handler.HandleGraphCreate(ctx, responder, msg)

	case MsgTypeSectionSet:
		err = h.Handler.HandleSectionSet(ctx, responder, msg)

	case MsgTypeSectionRemove:
		err = h.Handler.HandleSectionRemove(ctx, responder, msg)

	case MsgTypeGraphRecenter:
		err = h.Handler.HandleGraphRecenter(ctx, responder, msg)

	case MsgTypeGraphSearch:
		err = h.Handler.HandleGraphSearch(ctx, responder, msg)

	case MsgTypeGraphDestroy:
		err = h.Handler.HandleGraphDestroy(ctx, responder, msg)

	default:
		err = errors.New("unknown message type").
			WithType(ErrTypeUnknownMsgType).
			WithTag("msg_type", msg.Type)
	}

	if err == nil {
		return nil
	}

	responder.Send(errorMsg(msg, err))
	if errors.IsType(err, engine.ErrTypeInternal) {
		return err
	}
	return nil
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

func errorMsg(req Msg, err error) Msg {
	errType := errors.Type(err)
	if errType == "" {
		errType = engine.ErrTypeInternal
	}

	msg, _ := NewMsg(MsgTypeError, req.RequestID, ErrorResponse{
		Type:    errType,
		Message: err.Error(),
	})
	return msg
}

type responseSender struct {
	send func(Msg)
}

func (r responseSender) Send(msg Msg) {
	r.send(msg)
}
