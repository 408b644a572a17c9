package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aukilabs/voxcull/engine"
	"github.com/aukilabs/voxcull/graph"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestMetricsPathFormatter(t *testing.T) {
	require.Equal(t, "", MetricsPathFormatter(http.StatusNotFound, "/nope"))
	require.Equal(t, "", MetricsPathFormatter(http.StatusMethodNotAllowed, "/health"))
	require.Equal(t, "", MetricsPathFormatter(http.StatusUnauthorized, "/smoke-test"))
	require.Equal(t, "/health", MetricsPathFormatter(http.StatusOK, "/health"))
	require.Equal(t, "/debug", MetricsPathFormatter(http.StatusOK, "/debug/graphs"))
}

func TestHandleReadyCheck(t *testing.T) {
	ready := false
	h := HandleReadyCheck(func() bool { return ready })

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleVersion(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleWithCORS(HandleVersion("v1.2.3")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "v1.2.3", rec.Body.String())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleWithCORS(HandleVersion("v1.2.3")).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/version", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, rec.Body.String())
	})
}

func TestVerifyAuthTokenHandler(t *testing.T) {
	next := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}

	tests := []struct {
		name     string
		token    string
		header   string
		query    string
		expected int
	}{
		{name: "no token configured", expected: http.StatusTeapot},
		{name: "bearer token", token: "secret", header: "Bearer secret", expected: http.StatusTeapot},
		{name: "query token", token: "secret", query: "?token=secret", expected: http.StatusTeapot},
		{name: "wrong token", token: "secret", header: "Bearer guess", expected: http.StatusUnauthorized},
		{name: "missing token", token: "secret", expected: http.StatusUnauthorized},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/smoke-test"+test.query, nil)
			if test.header != "" {
				req.Header.Set("Authorization", test.header)
			}

			rec := httptest.NewRecorder()
			VerifyAuthTokenHandler(test.token, next)(rec, req)
			require.Equal(t, test.expected, rec.Code)
		})
	}

	t.Run("websocket handshake", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		require.Error(t, VerifyAuthToken("secret")(nil, req))

		req.Header.Set("Authorization", "Bearer secret")
		require.NoError(t, VerifyAuthToken("secret")(nil, req))
	})
}

func TestHandleGraphDebug(t *testing.T) {
	e := &engine.Engine{}

	t.Run("unsupported engine", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleGraphDebug(e)(rec, httptest.NewRequest(http.MethodGet, "/debug/graphs", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	err := e.Init(engine.Options{
		PanicHandler: func(msg string) { t.Errorf("engine panic: %s", msg) },
		Allocator:    graph.DefaultAllocator,
	})
	require.NoError(t, err)
	defer e.Shutdown()

	h, err := e.Create(4, -2, 2)
	require.NoError(t, err)
	err = e.SetSection(h, 1, 0, 1, graph.Transparent, 0)
	require.NoError(t, err)

	t.Run("all graphs", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleGraphDebug(e)(rec, httptest.NewRequest(http.MethodGet, "/debug/graphs", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var graphs []GraphDebugInfo
		err := json.Unmarshal(rec.Body.Bytes(), &graphs)
		require.NoError(t, err)
		require.Len(t, graphs, 1)
		require.Equal(t, h, graphs[0].Handle)
		require.Equal(t, 1, graphs[0].Sections)
		require.Equal(t, uint8(4), graphs[0].Config.RenderDistance)
	})

	t.Run("single graph", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleGraphDebug(e)(rec, httptest.NewRequest(http.MethodGet, "/debug/graphs?handle=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var info GraphDebugInfo
		err := json.Unmarshal(rec.Body.Bytes(), &info)
		require.NoError(t, err)
		require.Equal(t, h, info.Handle)
		require.NotEmpty(t, info.UUID)
	})

	t.Run("unknown graph", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleGraphDebug(e)(rec, httptest.NewRequest(http.MethodGet, "/debug/graphs?handle=99", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)

		var res errorResponse
		err := json.Unmarshal(rec.Body.Bytes(), &res)
		require.NoError(t, err)
		require.Equal(t, engine.ErrTypeInvalidHandle, res.Type)
	})

	t.Run("invalid handle", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleGraphDebug(e)(rec, httptest.NewRequest(http.MethodGet, "/debug/graphs?handle=x", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
