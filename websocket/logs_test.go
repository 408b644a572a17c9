package websocket

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/stretchr/testify/require"
)

func TestHandlerWithLogsIncCounter(t *testing.T) {
	h := HandlerWithLogs(&VisibilityHandler{}, time.Second).(*handlerWithLogs)
	defer h.Close()

	h.incCounter("test")
	require.Equal(t, 1, h.counter["test"])
}

func TestHandlerWithLogsLogSummary(t *testing.T) {
	testClientID := "test-client"
	h := HandlerWithLogs(&VisibilityHandler{clientID: testClientID}, time.Second).(*handlerWithLogs)
	defer h.Close()

	h.incCounter(string(MsgTypeGraphSearch))
	h.incCounter(string(MsgTypeGraphSearch))
	h.incCounter(string(MsgTypeSectionSet))

	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&b, e)
	})

	h.logSummary()
	require.Empty(t, h.counter)

	logString := b.String()
	clientIDTag := fmt.Sprintf(`"%s":"%s"`, logs.ClientIDTag, testClientID)
	require.Contains(t, logString, `"graph_search":2`)
	require.Contains(t, logString, `"section_set":1`)
	require.Contains(t, logString, clientIDTag)
	t.Log(b.String())
}

func TestHandlerWithLogsStartSummaryWorker(t *testing.T) {
	var wg sync.WaitGroup
	var once sync.Once

	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&b, e)
		once.Do(wg.Done)
	})

	wg.Add(1)
	h := HandlerWithLogs(&VisibilityHandler{}, time.Millisecond).(*handlerWithLogs)
	defer h.Close()

	// This is to avoid the test block since no summary is sent if no counter is
	// incremented.
	h.incCounter(string(MsgTypePing))

	wg.Wait()
	out := b.String()
	require.NotEmpty(t, out)
	t.Log(out)
}

func TestHandlerWithLogsGraphUUID(t *testing.T) {
	vh := &VisibilityHandler{graphUUID: "graph-1", hasGraph: false}
	h := HandlerWithLogs(vh, time.Second).(*handlerWithLogs)
	defer h.Close()

	require.Equal(t, "graph-1", h.currentGraphUUID())
	require.Empty(t, h.loggedGraphUUID())

	m := HandlerWithMetrics(h, "test").(*handlerWithMetrics)
	require.Empty(t, m.GraphUUID())

	m = HandlerWithMetrics(vh, "test").(*handlerWithMetrics)
	require.Equal(t, "graph-1", m.GraphUUID())
}
